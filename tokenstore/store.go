package tokenstore

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Entry names and the fixed lifetime policy for first-party tokens.
const (
	AccessTokenName  = "accessToken"
	RefreshTokenName = "refreshToken"

	AccessTokenExpiryDays  = 1
	RefreshTokenExpiryDays = 7
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenPair is the first-party credential issued by the exchange endpoint.
// AccessToken is always present when a pair is stored; RefreshToken is optional.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Policy describes how each entry is persisted.
type Policy struct {
	Path              string
	AccessExpiryDays  int
	RefreshExpiryDays int
	SameSite          http.SameSite
	Secure            bool // must be true whenever the hosting context is served over https
	HttpOnly          bool
}

// DefaultPolicy returns the fixed policy: whole-application path, one day for the
// access token, seven days for the refresh token, same-site requests only.
func DefaultPolicy(secure bool) Policy {
	return Policy{
		Path:              "/",
		AccessExpiryDays:  AccessTokenExpiryDays,
		RefreshExpiryDays: RefreshTokenExpiryDays,
		SameSite:          http.SameSiteStrictMode,
		Secure:            secure,
		HttpOnly:          true,
	}
}

// PolicyForBaseURL mirrors the transport security of the hosting context into the Secure flag.
func PolicyForBaseURL(baseURL string) Policy {
	u, err := url.Parse(baseURL)
	return DefaultPolicy(err == nil && strings.EqualFold(u.Scheme, "https"))
}

// Store persists the token pair. Implementations must make Set and Clear atomic
// from the perspective of concurrent readers: no reader may observe only one of
// the two entries changed.
type Store interface {
	// Set replaces any stored pair. An empty access token is rejected.
	Set(pair TokenPair, policy Policy) error

	// Get returns the live entries, or nil when nothing is stored. Expired entries
	// are omitted, so an empty AccessToken with a RefreshToken means the access
	// token lapsed and a refresh is due.
	Get() (*TokenPair, error)

	// Clear removes both entries.
	Clear() error

	// Cookies renders the live entries for mirroring into a browser.
	Cookies() ([]*http.Cookie, error)
}

// newCookie builds an entry according to the policy, valid for days from now.
func newCookie(name, value string, days int, policy Policy, now time.Time) *http.Cookie {
	lifetime := time.Duration(days) * 24 * time.Hour
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     policy.Path,
		Expires:  now.Add(lifetime),
		MaxAge:   int(lifetime.Seconds()),
		Secure:   policy.Secure,
		HttpOnly: policy.HttpOnly,
		SameSite: policy.SameSite,
	}
}

// cookiesForPair returns the entries a Set call must write. The refresh entry is
// omitted when the provider did not issue one.
func cookiesForPair(pair TokenPair, policy Policy, now time.Time) []*http.Cookie {
	cookies := []*http.Cookie{newCookie(AccessTokenName, pair.AccessToken, policy.AccessExpiryDays, policy, now)}
	if pair.RefreshToken != "" {
		cookies = append(cookies, newCookie(RefreshTokenName, pair.RefreshToken, policy.RefreshExpiryDays, policy, now))
	}
	return cookies
}

// pairFromCookies folds live entries into a pair, or nil when none are live.
func pairFromCookies(cookies []*http.Cookie, now time.Time) *TokenPair {
	var pair TokenPair
	found := false
	for _, c := range cookies {
		if !c.Expires.IsZero() && !now.Before(c.Expires) {
			continue
		}
		switch c.Name {
		case AccessTokenName:
			pair.AccessToken = c.Value
			found = true
		case RefreshTokenName:
			pair.RefreshToken = c.Value
			found = true
		}
	}
	if !found {
		return nil
	}
	return &pair
}

// ExpiredCookies returns deletion cookies for both entries, used to clear a browser mirror.
func ExpiredCookies(policy Policy) []*http.Cookie {
	var cookies []*http.Cookie
	for _, name := range []string{AccessTokenName, RefreshTokenName} {
		cookies = append(cookies, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     policy.Path,
			MaxAge:   -1,
			Secure:   policy.Secure,
			HttpOnly: policy.HttpOnly,
			SameSite: policy.SameSite,
		})
	}
	return cookies
}
