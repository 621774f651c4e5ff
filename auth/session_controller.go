package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/bridge"
	"github.com/jrsteele09/go-auth-session/notify"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoginObserver is called after every successful sign-in.
type LoginObserver func(users.Profile)

// attempt identifies one run of the state machine. Only the attempt holding the
// current sequence number may write the token store or the session state.
type attempt struct {
	seq uint64
	id  string
}

func (a attempt) log(e *zerolog.Event) *zerolog.Event {
	return e.Uint64("attempt", a.seq).Str("attempt_id", a.id)
}

// Controller drives the sign-in lifecycle: it loads the identity SDK, receives the
// provider credential through the bridge, exchanges it for a token pair, persists
// the pair and publishes the resulting session state.
//
// Attempts may overlap. Each one is tagged with a monotonically increasing sequence
// number and a completion is applied only if no later attempt, and no logout, has
// started since; otherwise it returns ErrSuperseded and changes nothing.
//
// State listeners are invoked while the controller holds its lock and must not
// call back into the Controller.
type Controller struct {
	deps      Collaborators
	clientID  string
	policy    tokenstore.Policy
	seq       uint64
	observers []LoginObserver
	lock      sync.Mutex
}

type ControllerOption func(*Controller)

// WithPolicy sets the persistence policy for issued tokens.
func WithPolicy(p tokenstore.Policy) ControllerOption {
	return func(c *Controller) {
		c.policy = p
	}
}

func NewController(deps Collaborators, clientID string, options ...ControllerOption) (*Controller, error) {
	if deps.Loader == nil {
		return nil, errors.New("[NewController] Loader is required")
	}
	if deps.Bridge == nil {
		return nil, errors.New("[NewController] Bridge is required")
	}
	if deps.Exchange == nil {
		return nil, errors.New("[NewController] Exchange is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewController] Tokens is required")
	}
	if deps.State == nil {
		return nil, errors.New("[NewController] State is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.LogNotifier{}
	}

	c := &Controller{
		deps:     deps,
		clientID: clientID,
		policy:   tokenstore.DefaultPolicy(false),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// OnLogin registers an observer for successful sign-ins.
func (c *Controller) OnLogin(observer LoginObserver) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.observers = append(c.observers, observer)
}

// Start makes the sign-in affordance available: it waits for the identity SDK,
// registers the controller as the credential callback and renders the button into
// target. If the SDK cannot be loaded the session fails with ErrScriptLoad.
func (c *Controller) Start(ctx context.Context, target bridge.MountTarget, opts bridge.ButtonOptions) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	if err := c.deps.Bridge.RenderButton(target, opts); err != nil {
		return errors.Wrap(err, "[Controller.Start] render button")
	}
	return nil
}

// Prompt asks the identity provider to show its sign-in prompt.
func (c *Controller) Prompt(ctx context.Context) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	return errors.Wrap(c.deps.Bridge.Prompt(ctx), "[Controller.Prompt]")
}

func (c *Controller) ready(ctx context.Context) error {
	if err := c.deps.Loader.EnsureReady(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		a := c.next()
		return c.fail(a, scriptFailure(err))
	}
	if err := c.deps.Bridge.Initialize(c.clientID, c.credentialCallback); err != nil {
		return errors.Wrap(err, "[Controller.ready] initialize bridge")
	}
	return nil
}

func (c *Controller) credentialCallback(ctx context.Context, credential string) {
	// Failures are already published and notified.
	_ = c.HandleCredential(ctx, credential)
}

// HandleCredential runs one sign-in attempt for a provider credential. The attempt
// is not cancelled with ctx: it runs to completion and its result is discarded if
// it has been superseded.
func (c *Controller) HandleCredential(ctx context.Context, credential string) error {
	ctx = context.WithoutCancel(ctx)

	if credential == "" {
		a := c.next()
		a.log(log.Warn()).Msg("empty credential delivered")
		return c.fail(a, newAttemptError(ErrMissingCredential, nil))
	}

	a := c.begin()
	a.log(log.Info()).Str("subject", token.Subject(credential)).Msg("exchanging credential")

	pair, err := c.deps.Exchange.Exchange(ctx, credential)
	if err != nil {
		return c.fail(a, exchangeFailure(err))
	}
	if pair == nil || pair.AccessToken == "" {
		return c.fail(a, newAttemptError(ErrInvalidResponse, nil))
	}

	if err := c.persist(a, *pair); err != nil {
		return err
	}
	return c.loadProfile(ctx, a)
}

// RetryProfile fetches the profile again using the persisted tokens, for instance
// after a sign-in failed with ErrProfileFetch.
func (c *Controller) RetryProfile(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	pair, err := c.deps.Tokens.Get()
	if err != nil {
		return errors.Wrap(err, "[Controller.RetryProfile] read tokens")
	}
	if pair == nil || pair.AccessToken == "" {
		return c.fail(c.next(), newAttemptError(ErrNoSession, nil))
	}

	a := c.begin()
	a.log(log.Info()).Msg("retrying profile fetch")
	return c.loadProfile(ctx, a)
}

// Restore resumes a session persisted by an earlier run. Nothing happens when no
// tokens are stored. An expired access token is renewed with the refresh token first.
func (c *Controller) Restore(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	pair, err := c.deps.Tokens.Get()
	if err != nil {
		return errors.Wrap(err, "[Controller.Restore] read tokens")
	}
	if pair == nil {
		return nil
	}
	if pair.AccessToken == "" {
		if err := c.Refresh(ctx); err != nil {
			return err
		}
	}

	a := c.begin()
	a.log(log.Info()).Msg("restoring persisted session")
	return c.loadProfile(ctx, a)
}

// Refresh renews the token pair with the persisted refresh token. It does not start
// a new attempt. It refuses to run while a sign-in is in progress, and the renewed
// pair is only stored if no sign-in or logout started meanwhile and the store still
// holds the session that was renewed. A pair without a refresh token is left alone
// and ErrNoRefreshToken returned. Any other failure destroys the pair and fails the
// session with ErrSessionExpired.
func (c *Controller) Refresh(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	c.lock.Lock()
	if c.deps.State.Snapshot().Status == session.StatusAuthenticating {
		c.lock.Unlock()
		return ErrSuperseded
	}
	a := attempt{seq: c.seq, id: uuid.NewString()}
	pair, err := c.deps.Tokens.Get()
	c.lock.Unlock()

	if err != nil {
		return errors.Wrap(err, "[Controller.Refresh] read tokens")
	}
	if pair == nil {
		return ErrNoSession
	}
	if pair.RefreshToken == "" {
		a.log(log.Debug()).Msg("no refresh token, keeping the current pair")
		return ErrNoRefreshToken
	}

	renewed, err := c.deps.Exchange.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		return c.expire(a, pair.RefreshToken, err)
	}
	if renewed == nil || renewed.AccessToken == "" {
		return c.expire(a, pair.RefreshToken, ErrInvalidResponse)
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = pair.RefreshToken
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.holdsSession(a, pair.RefreshToken) {
		a.log(log.Debug()).Msg("discarding superseded refresh")
		return ErrSuperseded
	}
	if err := c.deps.Tokens.Set(*renewed, c.policy); err != nil {
		return errors.Wrap(err, "[Controller.Refresh] persist tokens")
	}
	a.log(log.Info()).Msg("tokens refreshed")
	return nil
}

// holdsSession reports whether a is still current and the store still holds the
// session identified by refreshToken. The caller must hold c.lock.
func (c *Controller) holdsSession(a attempt, refreshToken string) bool {
	if a.seq != c.seq {
		return false
	}
	current, err := c.deps.Tokens.Get()
	return err == nil && current != nil && current.RefreshToken == refreshToken
}

// Logout clears the persisted tokens and returns the session to idle. Any attempt
// still in flight is superseded.
func (c *Controller) Logout() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.seq++
	if err := c.deps.Tokens.Clear(); err != nil {
		return errors.Wrap(err, "[Controller.Logout] clear tokens")
	}
	c.deps.State.Reset(c.seq)
	log.Info().Uint64("attempt", c.seq).Msg("logged out")
	return nil
}

// next reserves a new sequence number, superseding every earlier attempt.
func (c *Controller) next() attempt {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.seq++
	return attempt{seq: c.seq, id: uuid.NewString()}
}

// begin reserves a new sequence number and publishes the authenticating state.
func (c *Controller) begin() attempt {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.seq++
	a := attempt{seq: c.seq, id: uuid.NewString()}
	c.deps.State.Begin(a.seq)
	return a
}

func (c *Controller) persist(a attempt, pair tokenstore.TokenPair) error {
	c.lock.Lock()
	if a.seq != c.seq {
		c.lock.Unlock()
		a.log(log.Debug()).Msg("discarding superseded token pair")
		return ErrSuperseded
	}
	err := c.deps.Tokens.Set(pair, c.policy)
	if err == nil {
		c.lock.Unlock()
		return nil
	}
	ae := newAttemptError(ErrPersist, err)
	c.deps.State.Fail(a.seq, Kind(ae), ae.Message)
	c.lock.Unlock()

	c.notifyFailure(a, ae)
	return ae
}

func (c *Controller) loadProfile(ctx context.Context, a attempt) error {
	profile, err := c.deps.Exchange.Profile(ctx)
	if err != nil {
		return c.fail(a, newAttemptError(ErrProfileFetch, err))
	}
	if profile == nil {
		return c.fail(a, newAttemptError(ErrProfileFetch, ErrInvalidResponse))
	}

	c.lock.Lock()
	if a.seq != c.seq {
		c.lock.Unlock()
		a.log(log.Debug()).Msg("discarding superseded profile")
		return ErrSuperseded
	}
	c.deps.State.Succeed(a.seq, *profile)
	observers := append([]LoginObserver(nil), c.observers...)
	c.lock.Unlock()

	a.log(log.Info()).Int64("user_id", profile.ID).Msg("signed in")
	for _, observer := range observers {
		observer(*profile.Clone())
	}
	return nil
}

// fail publishes ae as the outcome of a unless a has been superseded.
func (c *Controller) fail(a attempt, ae *AttemptError) error {
	c.lock.Lock()
	if a.seq != c.seq {
		c.lock.Unlock()
		a.log(log.Debug()).Err(ae).Msg("discarding superseded failure")
		return ErrSuperseded
	}
	c.deps.State.Fail(a.seq, Kind(ae), ae.Message)
	c.lock.Unlock()

	c.notifyFailure(a, ae)
	return ae
}

// expire destroys the token pair after a failed refresh of the session identified
// by refreshToken.
func (c *Controller) expire(a attempt, refreshToken string, cause error) error {
	ae := newAttemptError(ErrSessionExpired, cause)

	c.lock.Lock()
	if !c.holdsSession(a, refreshToken) {
		c.lock.Unlock()
		a.log(log.Debug()).Err(cause).Msg("discarding superseded refresh failure")
		return ErrSuperseded
	}
	if err := c.deps.Tokens.Clear(); err != nil {
		c.lock.Unlock()
		return errors.Wrap(err, "[Controller.expire] clear tokens")
	}
	c.deps.State.Fail(a.seq, Kind(ae), ae.Message)
	c.lock.Unlock()

	c.notifyFailure(a, ae)
	return ae
}

func (c *Controller) notifyFailure(a attempt, ae *AttemptError) {
	a.log(log.Warn()).Err(ae).Str("kind", Kind(ae)).Msg("authentication attempt failed")
	c.deps.Notifier.Notify(notify.Notification{Level: notify.LevelError, Message: ae.Message})
}
