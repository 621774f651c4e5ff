package exchangefake

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/jrsteele09/go-auth-session/users"
)

// Exchanger is an in-process backend. Unless overridden, Exchange issues
// acc1/ref1, Refresh issues acc2/ref2, and Profile returns alice provided the
// store holds an access token, which lets tests observe that tokens are persisted
// before the profile is fetched.
//
// The func fields must be set before the Exchanger is used.
type Exchanger struct {
	ExchangeFunc func(ctx context.Context, credential string) (*tokenstore.TokenPair, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (*tokenstore.TokenPair, error)
	ProfileFunc  func(ctx context.Context, accessToken string) (*users.Profile, error)

	store     tokenstore.Store
	exchanges int
	refreshes int
	profiles  int
	lock      sync.Mutex
}

func NewExchanger(store tokenstore.Store) *Exchanger {
	return &Exchanger{store: store}
}

// Alice is the default signed-in profile.
func Alice() *users.Profile {
	return &users.Profile{ID: 7, Email: "a@b.com", Username: "alice", Confirmed: true}
}

func (e *Exchanger) Exchange(ctx context.Context, credential string) (*tokenstore.TokenPair, error) {
	e.lock.Lock()
	e.exchanges++
	e.lock.Unlock()
	if e.ExchangeFunc != nil {
		return e.ExchangeFunc(ctx, credential)
	}
	return &tokenstore.TokenPair{AccessToken: "acc1", RefreshToken: "ref1"}, nil
}

func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (*tokenstore.TokenPair, error) {
	e.lock.Lock()
	e.refreshes++
	e.lock.Unlock()
	if e.RefreshFunc != nil {
		return e.RefreshFunc(ctx, refreshToken)
	}
	return &tokenstore.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}, nil
}

func (e *Exchanger) Profile(ctx context.Context) (*users.Profile, error) {
	e.lock.Lock()
	e.profiles++
	e.lock.Unlock()

	pair, err := e.store.Get()
	if err != nil {
		return nil, err
	}
	if pair == nil || pair.AccessToken == "" {
		return nil, errors.New("unauthorized: no access token")
	}
	if e.ProfileFunc != nil {
		return e.ProfileFunc(ctx, pair.AccessToken)
	}
	return Alice(), nil
}

// Calls returns how often each endpoint was called.
func (e *Exchanger) Calls() (exchanges, refreshes, profiles int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.exchanges, e.refreshes, e.profiles
}
