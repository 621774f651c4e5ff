package exchangefake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/tokenstore"
)

// Reply is a scripted backend response. Body is JSON encoded unless it is a string.
type Reply struct {
	Status int
	Body   any
}

// Envelope wraps data in the backend's standard response shape.
func Envelope(status int, message string, data any) Reply {
	return Reply{Status: status, Body: map[string]any{
		"statusCode": status,
		"message":    message,
		"data":       data,
	}}
}

// Backend is an httptest server standing in for the first-party API. By default it
// issues acc1/ref1 for any credential, acc2/ref2 on refresh, and returns the alice
// profile to any bearer token.
type Backend struct {
	*httptest.Server

	lock         sync.Mutex
	exchangeFunc func(credential string) Reply
	refreshFunc  func(refreshToken string) Reply
	profileFunc  func(accessToken string) Reply
	credentials  []string
	refreshes    []string
	bearers      []string
}

func NewBackend() *Backend {
	b := &Backend{
		exchangeFunc: func(string) Reply {
			return Envelope(http.StatusOK, "ok", tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"})
		},
		refreshFunc: func(string) Reply {
			return Envelope(http.StatusOK, "ok", tokenstore.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"})
		},
		profileFunc: func(string) Reply {
			return Reply{Status: http.StatusOK, Body: AliceProfile()}
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/google", b.handleExchange)
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("GET /users/me", b.handleProfile)
	b.Server = httptest.NewServer(mux)
	return b
}

// AliceProfile is the default profile body: no role assigned.
func AliceProfile() map[string]any {
	return map[string]any{
		"id":        7,
		"email":     "a@b.com",
		"username":  "alice",
		"confirmed": true,
	}
}

func (b *Backend) OnExchange(f func(credential string) Reply) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.exchangeFunc = f
}

func (b *Backend) OnRefresh(f func(refreshToken string) Reply) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.refreshFunc = f
}

func (b *Backend) OnProfile(f func(accessToken string) Reply) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.profileFunc = f
}

// Credentials returns the credentials received by the exchange endpoint.
func (b *Backend) Credentials() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.credentials...)
}

func (b *Backend) Refreshes() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.refreshes...)
}

// Bearers returns the access tokens presented to the profile endpoint.
func (b *Backend) Bearers() []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.bearers...)
}

func (b *Backend) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReply(w, Envelope(http.StatusBadRequest, "invalid body", nil))
		return
	}
	b.lock.Lock()
	b.credentials = append(b.credentials, req.Credential)
	f := b.exchangeFunc
	b.lock.Unlock()
	writeReply(w, f(req.Credential))
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReply(w, Envelope(http.StatusBadRequest, "invalid body", nil))
		return
	}
	b.lock.Lock()
	b.refreshes = append(b.refreshes, req.RefreshToken)
	f := b.refreshFunc
	b.lock.Unlock()
	writeReply(w, f(req.RefreshToken))
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		writeReply(w, Envelope(http.StatusUnauthorized, "unauthorized", nil))
		return
	}
	b.lock.Lock()
	b.bearers = append(b.bearers, token)
	f := b.profileFunc
	b.lock.Unlock()
	writeReply(w, f(token))
}

func writeReply(w http.ResponseWriter, reply Reply) {
	if s, ok := reply.Body.(string); ok {
		w.WriteHeader(reply.Status)
		_, _ = w.Write([]byte(s))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_ = json.NewEncoder(w).Encode(reply.Body)
}
