package tokenstore

import (
	"net/http"
	"sync"

	"github.com/jrsteele09/go-auth-session/internal/errors"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the entries for the lifetime of the process.
type MemoryStore struct {
	entries map[string]*http.Cookie
	lock    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*http.Cookie),
	}
}

func (s *MemoryStore) Set(pair TokenPair, policy Policy) error {
	if pair.AccessToken == "" {
		return errors.ErrMissingAccessToken
	}
	entries := make(map[string]*http.Cookie, 2)
	for _, c := range cookiesForPair(pair, policy, NowTimeFunc()) {
		entries[c.Name] = c
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = entries
	return nil
}

func (s *MemoryStore) Get() (*TokenPair, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return pairFromCookies(s.snapshot(), NowTimeFunc()), nil
}

func (s *MemoryStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = make(map[string]*http.Cookie)
	return nil
}

func (s *MemoryStore) Cookies() ([]*http.Cookie, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	now := NowTimeFunc()
	var live []*http.Cookie
	for _, c := range s.snapshot() {
		if now.Before(c.Expires) {
			live = append(live, c)
		}
	}
	return live, nil
}

// snapshot copies the entries; callers hold the lock.
func (s *MemoryStore) snapshot() []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(s.entries))
	for _, name := range []string{AccessTokenName, RefreshTokenName} {
		if c, ok := s.entries[name]; ok {
			copied := *c
			cookies = append(cookies, &copied)
		}
	}
	return cookies
}
