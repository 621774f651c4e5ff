package auth

import (
	"errors"

	"github.com/jrsteele09/go-auth-session/exchange"
	"github.com/jrsteele09/go-auth-session/loader"
	pkgerrors "github.com/pkg/errors"
)

// Failure taxonomy of an authentication attempt. The error text of each sentinel is
// the reason published in the session state, except for ErrExchange which carries
// the backend's own message.
var (
	ErrScriptLoad        = errors.New("authentication unavailable")
	ErrMissingCredential = errors.New("missing credential")
	ErrExchange          = errors.New("credential exchange failed")
	ErrInvalidResponse   = errors.New("invalid server response")
	ErrProfileFetch      = errors.New("failed to fetch user details")
	ErrSessionExpired    = errors.New("session expired")
	ErrNoSession         = errors.New("no session")
	ErrPersist           = errors.New("failed to store session")

	// ErrNoRefreshToken is returned by Refresh when the provider issued no refresh
	// token. The session is kept until its access token lapses.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrSuperseded is returned by an attempt whose result was discarded because a
	// later attempt or a logout started after it.
	ErrSuperseded = errors.New("attempt superseded")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrScriptLoad, "script_load"},
	{ErrMissingCredential, "missing_credential"},
	{ErrExchange, "exchange"},
	{ErrInvalidResponse, "invalid_response"},
	{ErrProfileFetch, "profile_fetch"},
	{ErrSessionExpired, "session_expired"},
	{ErrNoSession, "no_session"},
	{ErrPersist, "persist"},
	{ErrNoRefreshToken, "no_refresh_token"},
	{ErrSuperseded, "superseded"},
}

// Kind names the taxonomy member err belongs to, or "" when it belongs to none.
func Kind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// AttemptError is a failed attempt: Kind is a taxonomy sentinel, Message the reason
// shown to the user, Err the underlying cause (if any).
type AttemptError struct {
	Kind    error
	Message string
	Err     error
}

func newAttemptError(kind error, cause error) *AttemptError {
	return &AttemptError{Kind: kind, Message: kind.Error(), Err: cause}
}

func (e *AttemptError) Error() string {
	if e.Err != nil && e.Message != e.Err.Error() {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AttemptError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// exchangeFailure classifies an exchange or refresh error. Backend rejections keep
// their message; malformed bodies are a contract violation.
func exchangeFailure(err error) *AttemptError {
	if errors.Is(err, exchange.ErrMalformedResponse) {
		return newAttemptError(ErrInvalidResponse, err)
	}
	ae := newAttemptError(ErrExchange, err)
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		ae.Message = apiErr.Error()
	} else {
		ae.Message = pkgerrors.Cause(err).Error()
	}
	return ae
}

func scriptFailure(err error) *AttemptError {
	if errors.Is(err, loader.ErrScriptLoad) {
		return newAttemptError(ErrScriptLoad, err)
	}
	return newAttemptError(ErrScriptLoad, pkgerrors.Wrap(loader.ErrScriptLoad, err.Error()))
}
