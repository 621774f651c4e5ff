package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-session/bridge"
	"github.com/jrsteele09/go-auth-session/notify"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/jrsteele09/go-auth-session/users"
)

// ScriptLoader makes the identity provider's SDK available.
type ScriptLoader interface {
	EnsureReady(ctx context.Context) error
}

// CredentialBridge is the SDK surface the controller drives.
type CredentialBridge interface {
	Initialize(clientID string, onCredential bridge.CredentialFunc) error
	RenderButton(target bridge.MountTarget, opts bridge.ButtonOptions) error
	Prompt(ctx context.Context) error
}

// SessionExchanger talks to the first-party backend. Profile must authenticate
// with the access token currently persisted in the token store.
type SessionExchanger interface {
	Exchange(ctx context.Context, credential string) (*tokenstore.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*tokenstore.TokenPair, error)
	Profile(ctx context.Context) (*users.Profile, error)
}

// Collaborators holds all dependencies of the Controller.
type Collaborators struct {
	Loader   ScriptLoader     // Identity SDK bootstrap
	Bridge   CredentialBridge // Sign-in affordance and credential callback
	Exchange SessionExchanger // First-party backend
	Tokens   tokenstore.Store // Persisted token pair
	State    *session.Store   // Published authentication state
	Notifier notify.Notifier  // One-shot user notifications
}
