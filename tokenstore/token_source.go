package tokenstore

import (
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"golang.org/x/oauth2"
)

type storeTokenSource struct {
	store Store
}

// NewTokenSource reads the access token from store on every call, so an
// oauth2.Transport built on it always sends the currently persisted token.
func NewTokenSource(store Store) oauth2.TokenSource {
	return &storeTokenSource{store: store}
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	pair, err := ts.store.Get()
	if err != nil {
		return nil, errors.Wrapf(err, "read token store")
	}
	if pair == nil || pair.AccessToken == "" {
		return nil, errors.ErrMissingAccessToken
	}
	return &oauth2.Token{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	}, nil
}
