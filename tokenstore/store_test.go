package tokenstore_test

import (
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func freezeTime(t *testing.T, now *time.Time) {
	t.Helper()
	orig := tokenstore.NowTimeFunc
	tokenstore.NowTimeFunc = func() time.Time { return *now }
	t.Cleanup(func() { tokenstore.NowTimeFunc = orig })
}

// storeFactories runs each test against every backend.
func storeFactories(t *testing.T) map[string]func() tokenstore.Store {
	t.Helper()
	return map[string]func() tokenstore.Store{
		"memory": func() tokenstore.Store { return tokenstore.NewMemoryStore() },
		"sqlite": func() tokenstore.Store {
			s, err := tokenstore.NewSQLiteStore(filepath.Join(t.TempDir(), "tokens.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"sqlite sealed": func() tokenstore.Store {
			s, err := tokenstore.NewSQLiteStore(filepath.Join(t.TempDir(), "tokens.db"), tokenstore.WithSealKey("seal-secret"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestPolicyForBaseURL(t *testing.T) {
	secure := tokenstore.PolicyForBaseURL("https://app.example.com")
	require.True(t, secure.Secure)
	require.Equal(t, "/", secure.Path)
	require.Equal(t, http.SameSiteStrictMode, secure.SameSite)
	require.Equal(t, 1, secure.AccessExpiryDays)
	require.Equal(t, 7, secure.RefreshExpiryDays)

	require.False(t, tokenstore.PolicyForBaseURL("http://localhost:8085").Secure)
}

func TestStore_SetGetClear(t *testing.T) {
	now := fixedNow
	freezeTime(t, &now)

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			pair, err := s.Get()
			require.NoError(t, err)
			require.Nil(t, pair)

			require.NoError(t, s.Set(tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, tokenstore.DefaultPolicy(true)))

			pair, err = s.Get()
			require.NoError(t, err)
			require.Equal(t, &tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, pair)

			cookies, err := s.Cookies()
			require.NoError(t, err)
			require.Len(t, cookies, 2)
			byName := map[string]*http.Cookie{}
			for _, c := range cookies {
				byName[c.Name] = c
			}
			require.WithinDuration(t, fixedNow.Add(24*time.Hour), byName[tokenstore.AccessTokenName].Expires, time.Second)
			require.WithinDuration(t, fixedNow.Add(7*24*time.Hour), byName[tokenstore.RefreshTokenName].Expires, time.Second)
			for _, c := range cookies {
				require.True(t, c.Secure)
				require.True(t, c.HttpOnly)
				require.Equal(t, "/", c.Path)
				require.Equal(t, http.SameSiteStrictMode, c.SameSite)
			}

			require.NoError(t, s.Clear())
			pair, err = s.Get()
			require.NoError(t, err)
			require.Nil(t, pair)
		})
	}
}

func TestStore_RejectsEmptyAccessToken(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			err := s.Set(tokenstore.TokenPair{RefreshToken: "ref"}, tokenstore.DefaultPolicy(false))
			require.ErrorIs(t, err, errors.ErrMissingAccessToken)
		})
	}
}

func TestStore_SetWithoutRefreshDropsPreviousRefresh(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			require.NoError(t, s.Set(tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, tokenstore.DefaultPolicy(false)))
			require.NoError(t, s.Set(tokenstore.TokenPair{AccessToken: "acc2"}, tokenstore.DefaultPolicy(false)))

			pair, err := s.Get()
			require.NoError(t, err)
			require.Equal(t, &tokenstore.TokenPair{AccessToken: "acc2"}, pair)
		})
	}
}

func TestStore_ExpiredAccessTokenIsOmitted(t *testing.T) {
	now := fixedNow
	freezeTime(t, &now)

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			now = fixedNow
			s := newStore()
			require.NoError(t, s.Set(tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, tokenstore.DefaultPolicy(false)))

			now = fixedNow.Add(2 * 24 * time.Hour)
			pair, err := s.Get()
			require.NoError(t, err)
			require.Equal(t, &tokenstore.TokenPair{RefreshToken: "ref1"}, pair)

			now = fixedNow.Add(8 * 24 * time.Hour)
			pair, err = s.Get()
			require.NoError(t, err)
			require.Nil(t, pair)
		})
	}
}

func TestStore_ClearIsAtomicForReaders(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			for round := 0; round < 20; round++ {
				require.NoError(t, s.Set(tokenstore.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, tokenstore.DefaultPolicy(false)))

				var wg sync.WaitGroup
				partial := make(chan tokenstore.TokenPair, 64)
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						for j := 0; j < 10; j++ {
							pair, err := s.Get()
							if err != nil || pair == nil {
								continue
							}
							if (pair.AccessToken == "") != (pair.RefreshToken == "") {
								partial <- *pair
							}
						}
					}()
				}
				require.NoError(t, s.Clear())
				wg.Wait()
				close(partial)
				for p := range partial {
					t.Fatalf("observed a partially cleared pair: %+v", p)
				}
			}
		})
	}
}

func TestSQLiteStore_SurvivesReopenAndSealsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")

	s, err := tokenstore.NewSQLiteStore(path, tokenstore.WithSealKey("k1"))
	require.NoError(t, err)
	require.NoError(t, s.Set(tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, tokenstore.DefaultPolicy(false)))
	require.NoError(t, s.Close())

	reopened, err := tokenstore.NewSQLiteStore(path, tokenstore.WithSealKey("k1"))
	require.NoError(t, err)
	pair, err := reopened.Get()
	require.NoError(t, err)
	require.Equal(t, "acc1", pair.AccessToken)
	require.NoError(t, reopened.Close())

	// Without the key the sealed values are not readable as tokens
	plain, err := tokenstore.NewSQLiteStore(path)
	require.NoError(t, err)
	defer plain.Close()
	pair, err = plain.Get()
	require.NoError(t, err)
	require.NotEqual(t, "acc1", pair.AccessToken)

	wrongKey, err := tokenstore.NewSQLiteStore(path, tokenstore.WithSealKey("k2"))
	require.NoError(t, err)
	defer wrongKey.Close()
	_, err = wrongKey.Get()
	require.Error(t, err)
}

func TestTokenSource(t *testing.T) {
	s := tokenstore.NewMemoryStore()
	ts := tokenstore.NewTokenSource(s)

	_, err := ts.Token()
	require.ErrorIs(t, err, errors.ErrMissingAccessToken)

	require.NoError(t, s.Set(tokenstore.TokenPair{AccessToken: "acc1"}, tokenstore.DefaultPolicy(false)))
	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, "acc1", tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)

	// Reads through on every call
	require.NoError(t, s.Set(tokenstore.TokenPair{AccessToken: "acc2"}, tokenstore.DefaultPolicy(false)))
	tok, err = ts.Token()
	require.NoError(t, err)
	require.Equal(t, "acc2", tok.AccessToken)
}
