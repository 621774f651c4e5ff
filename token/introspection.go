package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Introspection is what the agent can learn about a first-party access token
// without holding the issuer's keys. Tokens that are not JWTs are opaque and
// report no claims.
type Introspection struct {
	Opaque bool       `json:"opaque"`
	Sub    string     `json:"sub,omitempty"`
	Iss    string     `json:"iss,omitempty"`
	Aud    []string   `json:"aud,omitempty"`
	Iat    *time.Time `json:"iat,omitempty"`
	Exp    *time.Time `json:"exp,omitempty"`
}

// Inspect parses the claims of rawToken without verifying its signature. The
// result is only used for scheduling and logging, never for authorization.
func Inspect(rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("[token.Inspect] empty token")
	}
	if strings.Count(rawToken, ".") != 2 {
		return &Introspection{Opaque: true}, nil
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return &Introspection{Opaque: true}, nil
	}
	claims := parsed.Claims

	result := &Introspection{}
	if result.Sub, err = claims.GetSubject(); err != nil {
		return nil, errors.Wrap(err, "[token.Inspect] sub")
	}
	if result.Iss, err = claims.GetIssuer(); err != nil {
		return nil, errors.Wrap(err, "[token.Inspect] iss")
	}
	if result.Aud, err = claims.GetAudience(); err != nil {
		return nil, errors.Wrap(err, "[token.Inspect] aud")
	}
	iat, err := claims.GetIssuedAt()
	if err != nil {
		return nil, errors.Wrap(err, "[token.Inspect] iat")
	}
	if iat != nil {
		result.Iat = &iat.Time
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, errors.Wrap(err, "[token.Inspect] exp")
	}
	if exp != nil {
		result.Exp = &exp.Time
	}
	return result, nil
}

// Subject returns the sub claim of rawToken, or "" when it has none.
func Subject(rawToken string) string {
	info, err := Inspect(rawToken)
	if err != nil {
		return ""
	}
	return info.Sub
}

// ExpiresWithin reports whether the token lapses before now+margin. Tokens
// without an exp claim never report true.
func (i *Introspection) ExpiresWithin(margin time.Duration) bool {
	if i == nil || i.Exp == nil {
		return false
	}
	return !NowTimeFunc().Add(margin).Before(*i.Exp)
}

// RefreshDue decides whether a session holding accessToken should be renewed.
// JWTs are renewed once they come within margin of expiry. Opaque tokens, and
// JWTs without exp, are renewed once fallback has passed since lastRefresh.
func RefreshDue(accessToken string, lastRefresh time.Time, margin, fallback time.Duration) bool {
	if accessToken == "" {
		return true
	}
	info, err := Inspect(accessToken)
	if err == nil && info.Exp != nil {
		return info.ExpiresWithin(margin)
	}
	return !NowTimeFunc().Before(lastRefresh.Add(fallback))
}
