package exchange_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-auth-session/exchange"
	"github.com/jrsteele09/go-auth-session/exchange/exchangefake"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *exchangefake.Backend
	store   *tokenstore.MemoryStore
	client  *exchange.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend := exchangefake.NewBackend()
	t.Cleanup(backend.Close)

	store := tokenstore.NewMemoryStore()
	client, err := exchange.New(backend.URL+"/", store, exchange.WithHTTPClient(backend.Client()))
	require.NoError(t, err)
	return &testFixture{backend: backend, store: store, client: client}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := exchange.New("", tokenstore.NewMemoryStore())
	require.Error(t, err)
	_, err = exchange.New("http://api", nil)
	require.Error(t, err)
}

func TestExchange_ReturnsTokenPair(t *testing.T) {
	f := setupTestFixture(t)

	pair, err := f.client.Exchange(context.Background(), "cred123")
	require.NoError(t, err)
	require.Equal(t, &tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, pair)
	require.Equal(t, []string{"cred123"}, f.backend.Credentials())
}

func TestExchange_APIErrorCarriesMessage(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.OnExchange(func(string) exchangefake.Reply {
		return exchangefake.Envelope(http.StatusUnauthorized, "Invalid Google token", nil)
	})

	pair, err := f.client.Exchange(context.Background(), "cred123")
	require.Nil(t, pair)

	var apiErr *exchange.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Invalid Google token", apiErr.Error())
}

func TestExchange_EnvelopeStatusSignalsFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.OnExchange(func(string) exchangefake.Reply {
		r := exchangefake.Envelope(http.StatusForbidden, "account disabled", nil)
		r.Status = http.StatusOK
		return r
	})

	_, err := f.client.Exchange(context.Background(), "cred123")
	var apiErr *exchange.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, "account disabled", apiErr.Message)
}

func TestExchange_APIErrorWithoutMessage(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.OnExchange(func(string) exchangefake.Reply {
		return exchangefake.Reply{Status: http.StatusBadGateway, Body: "upstream down"}
	})

	_, err := f.client.Exchange(context.Background(), "cred123")
	var apiErr *exchange.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Contains(t, apiErr.Error(), "502")
}

func TestExchange_MissingDataYieldsNilPair(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.OnExchange(func(string) exchangefake.Reply {
		return exchangefake.Envelope(http.StatusOK, "ok", nil)
	})

	pair, err := f.client.Exchange(context.Background(), "cred123")
	require.NoError(t, err)
	require.Nil(t, pair)
}

func TestExchange_EmptyAccessTokenPassedThrough(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.OnExchange(func(string) exchangefake.Reply {
		return exchangefake.Envelope(http.StatusOK, "ok", map[string]string{"refreshToken": "ref1"})
	})

	pair, err := f.client.Exchange(context.Background(), "cred123")
	require.NoError(t, err)
	require.NotNil(t, pair)
	require.Empty(t, pair.AccessToken)
}

func TestExchange_MalformedBody(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.OnExchange(func(string) exchangefake.Reply {
		return exchangefake.Reply{Status: http.StatusOK, Body: "<html>"}
	})

	_, err := f.client.Exchange(context.Background(), "cred123")
	require.ErrorIs(t, err, exchange.ErrMalformedResponse)
}

func TestRefresh_ReturnsNewPair(t *testing.T) {
	f := setupTestFixture(t)

	pair, err := f.client.Refresh(context.Background(), "ref1")
	require.NoError(t, err)
	require.Equal(t, "acc2", pair.AccessToken)
	require.Equal(t, []string{"ref1"}, f.backend.Refreshes())
}

func TestProfile_UsesPersistedAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Set(tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, tokenstore.DefaultPolicy(false)))

	profile, err := f.client.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), profile.ID)
	require.Equal(t, "a@b.com", profile.Email)
	require.Equal(t, "alice", profile.Username)
	require.True(t, profile.Confirmed)
	require.Nil(t, profile.RoleID)
	require.Equal(t, []string{"acc1"}, f.backend.Bearers())

	// The token is read from the store on every request
	require.NoError(t, f.store.Set(tokenstore.TokenPair{AccessToken: "acc9"}, tokenstore.DefaultPolicy(false)))
	_, err = f.client.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"acc1", "acc9"}, f.backend.Bearers())
}

func TestProfile_WithoutTokenFailsLocally(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.Profile(context.Background())
	require.Error(t, err)
	require.Empty(t, f.backend.Bearers())
}

func TestProfile_DecodesRoleShapes(t *testing.T) {
	tests := []struct {
		name string
		role any
		want *int64
	}{
		{"numeric", 3, ptr(3)},
		{"object", map[string]any{"id": 4, "name": "admin"}, ptr(4)},
		{"null", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			require.NoError(t, f.store.Set(tokenstore.TokenPair{AccessToken: "acc1"}, tokenstore.DefaultPolicy(false)))
			f.backend.OnProfile(func(string) exchangefake.Reply {
				body := exchangefake.AliceProfile()
				body["role"] = tt.role
				return exchangefake.Envelope(http.StatusOK, "ok", body)
			})

			profile, err := f.client.Profile(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.want, profile.RoleID)
		})
	}
}

func TestProfile_Unauthorized(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Set(tokenstore.TokenPair{AccessToken: "acc1"}, tokenstore.DefaultPolicy(false)))
	f.backend.OnProfile(func(string) exchangefake.Reply {
		return exchangefake.Envelope(http.StatusUnauthorized, "token expired", nil)
	})

	_, err := f.client.Profile(context.Background())
	var apiErr *exchange.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestProfile_MissingID(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Set(tokenstore.TokenPair{AccessToken: "acc1"}, tokenstore.DefaultPolicy(false)))
	f.backend.OnProfile(func(string) exchangefake.Reply {
		return exchangefake.Reply{Status: http.StatusOK, Body: map[string]any{"email": "a@b.com"}}
	})

	_, err := f.client.Profile(context.Background())
	require.ErrorIs(t, err, exchange.ErrMalformedResponse)
}

func ptr(v int64) *int64 {
	return &v
}
