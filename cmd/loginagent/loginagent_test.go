package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/idp/idpfake"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/notify"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/stretchr/testify/require"
)

// agentStub serves resp for every request and returns the requests it saw.
func agentStub(t *testing.T, resp server.StateResponse) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		calls []string
		lock  sync.Mutex
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lock.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		lock.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		lock.Lock()
		defer lock.Unlock()
		return append([]string(nil), calls...)
	}
}

func TestRunStatus_Authenticated(t *testing.T) {
	srv, calls := agentStub(t, server.StateResponse{
		State: session.State{
			Status: session.StatusAuthenticated,
			User:   &users.Profile{ID: 7, Email: "a@b.com", Username: "alice", Confirmed: true},
		},
	})

	var out bytes.Buffer
	code := runStatus(context.Background(), &out, newAgentClient(srv.URL))
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "Status: authenticated")
	require.Contains(t, out.String(), "alice <a@b.com> (id 7)")
	require.Equal(t, []string{"GET /auth/state"}, calls())
}

func TestRunStatus_FailedWithNotification(t *testing.T) {
	srv, _ := agentStub(t, server.StateResponse{
		State:         session.State{Status: session.StatusFailed, Error: "failed to fetch user details"},
		Notifications: []notify.Notification{{Level: notify.LevelError, Message: "failed to fetch user details"}},
	})

	var out bytes.Buffer
	code := runStatus(context.Background(), &out, newAgentClient(srv.URL))
	require.Equal(t, 1, code)
	require.Contains(t, out.String(), "Error:  failed to fetch user details")
	require.Contains(t, out.String(), "[error] failed to fetch user details")
}

func TestRunStatus_AgentUnreachable(t *testing.T) {
	var out bytes.Buffer
	code := runStatus(context.Background(), &out, newAgentClient("http://127.0.0.1:1"))
	require.Equal(t, 2, code)
	require.Contains(t, out.String(), "Error:")
}

func TestRunLogout(t *testing.T) {
	srv, calls := agentStub(t, server.StateResponse{State: session.State{Status: session.StatusIdle}})

	var out bytes.Buffer
	code := runLogout(context.Background(), &out, newAgentClient(srv.URL))
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "Signed out")
	require.Equal(t, []string{"POST /auth/logout"}, calls())
}

func TestNewAgent_Wiring(t *testing.T) {
	provider, err := idpfake.New()
	require.NoError(t, err)
	t.Cleanup(provider.Close)

	for name, dbPath := range map[string]string{
		"memory": config.MemoryTokenStore,
		"sqlite": filepath.Join(t.TempDir(), "tokens.db"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("ENV", "TEST")
			t.Setenv("IDP_ISSUER", provider.URL)
			t.Setenv("IDP_CLIENT_ID", "client-123")
			t.Setenv("TOKEN_DB_PATH", dbPath)
			t.Setenv("TOKEN_SEAL_KEY", "seal-secret")
			t.Setenv("SCRIPT_SETTLE_MS", "0")

			a, err := newAgent(config.New())
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, a.close()) })

			require.NoError(t, a.controller.Restore(context.Background()))
			require.Equal(t, session.StatusIdle, a.state.Snapshot().Status)

			rec := httptest.NewRecorder()
			a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
			require.Contains(t, rec.Body.String(), provider.URL+"/authorize")
		})
	}
}

func TestRefreshable(t *testing.T) {
	overdue := time.Now().Add(-13 * time.Hour)
	recent := time.Now()

	require.False(t, refreshable(nil, overdue))
	require.False(t, refreshable(&tokenstore.TokenPair{AccessToken: "acc1"}, overdue), "no refresh token keeps the pair")
	require.True(t, refreshable(&tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, overdue))
	require.False(t, refreshable(&tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, recent))
	require.True(t, refreshable(&tokenstore.TokenPair{RefreshToken: "ref1"}, recent), "lapsed access token")
}
