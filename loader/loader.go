package loader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Readiness of the identity script for the lifetime of a Loader.
type Readiness int32

const (
	NotRequested Readiness = iota
	Loading
	Ready
)

func (r Readiness) String() string {
	switch r {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "not-requested"
	}
}

// ErrScriptLoad is returned when the identity script cannot be fetched or its API
// never becomes observable. A later EnsureReady call retries.
var ErrScriptLoad = errors.New("identity script unavailable")

const (
	defaultSettleDelay = 100 * time.Millisecond
	defaultTimeout     = 10 * time.Second
	flightKey          = "identity-script"
)

// Script is the third-party identity library the bridge depends on.
type Script interface {
	// Fetch retrieves the library over the network.
	Fetch(ctx context.Context) error

	// Present reports whether the library's API surface is observable,
	// e.g. because another part of the application already loaded it.
	Present() bool
}

// Loader makes a Script ready at most once. Concurrent callers share a single
// in-flight fetch and all observe its outcome.
type Loader struct {
	script  Script
	settle  time.Duration
	timeout time.Duration
	state   atomic.Int32
	group   singleflight.Group
}

type Option func(*Loader)

// WithSettleDelay sets how long to wait after a fetch before probing the script's
// API. The library initializes asynchronously and offers no completion signal.
func WithSettleDelay(d time.Duration) Option {
	return func(l *Loader) {
		l.settle = d
	}
}

// WithTimeout bounds a single fetch, independent of any caller's context.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.timeout = d
	}
}

func New(script Script, options ...Option) (*Loader, error) {
	if script == nil {
		return nil, errors.New("[loader.New] script is required")
	}
	l := &Loader{
		script:  script,
		settle:  defaultSettleDelay,
		timeout: defaultTimeout,
	}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// Readiness returns the current tri-state.
func (l *Loader) Readiness() Readiness {
	return Readiness(l.state.Load())
}

// EnsureReady returns nil once the script is ready. If a fetch is already in
// flight the caller waits for it instead of starting another. A caller whose ctx
// ends stops waiting with ctx.Err(); the shared fetch carries on for the others.
func (l *Loader) EnsureReady(ctx context.Context) error {
	if l.Readiness() == Ready {
		return nil
	}

	result := l.group.DoChan(flightKey, func() (any, error) {
		return nil, l.load()
	})
	select {
	case res := <-result:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) load() error {
	if l.Readiness() == Ready {
		return nil
	}
	if l.script.Present() {
		l.state.Store(int32(Ready))
		log.Debug().Msg("identity script already present, skipping fetch")
		return nil
	}

	l.state.Store(int32(Loading))
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	start := time.Now()
	if err := l.script.Fetch(ctx); err != nil {
		return l.fail(fmt.Errorf("%w: %w", ErrScriptLoad, err))
	}

	settle := time.NewTimer(l.settle)
	defer settle.Stop()
	select {
	case <-settle.C:
	case <-ctx.Done():
		return l.fail(fmt.Errorf("%w: %w", ErrScriptLoad, ctx.Err()))
	}

	if !l.script.Present() {
		return l.fail(fmt.Errorf("%w: api not observable %s after load", ErrScriptLoad, l.settle))
	}

	l.state.Store(int32(Ready))
	log.Info().Dur("elapsed", time.Since(start)).Msg("identity script ready")
	return nil
}

func (l *Loader) fail(err error) error {
	l.state.Store(int32(NotRequested))
	log.Err(err).Msg("identity script load failed")
	return err
}
