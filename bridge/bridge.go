package bridge

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/loader"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrNotReady is returned when the identity script has not finished loading.
var ErrNotReady = pkgerrors.New("identity script not ready")

// CredentialFunc receives provider credentials. It is the only way a credential
// enters the application.
type CredentialFunc func(ctx context.Context, credential string)

// ReadinessSource reports whether the identity script is usable.
type ReadinessSource interface {
	Readiness() loader.Readiness
}

// Bridge adapts the identity SDK to a surface that is safe to call on every UI
// mount: the SDK is initialized once per client id with the bridge's own
// dispatcher, and the application callback sits in a single replaceable slot.
type Bridge struct {
	sdk      SDK
	script   ReadinessSource
	clientID string
	callback CredentialFunc
	lock     sync.Mutex
}

func New(sdk SDK, script ReadinessSource) (*Bridge, error) {
	if sdk == nil {
		return nil, pkgerrors.New("[bridge.New] sdk is required")
	}
	if script == nil {
		return nil, pkgerrors.New("[bridge.New] script readiness is required")
	}
	return &Bridge{sdk: sdk, script: script}, nil
}

// Initialize registers onCredential for clientID. Calling it again replaces the
// callback; a credential event is never delivered more than once.
func (b *Bridge) Initialize(clientID string, onCredential CredentialFunc) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	if clientID == "" {
		return errors.ErrMissingClient
	}
	if onCredential == nil {
		return pkgerrors.New("[Bridge.Initialize] callback is required")
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	b.callback = onCredential
	if b.clientID == clientID {
		return nil
	}
	if err := b.sdk.Initialize(SDKConfig{ClientID: clientID, Callback: b.dispatch}); err != nil {
		return pkgerrors.Wrap(err, "[Bridge.Initialize] sdk.Initialize")
	}
	b.clientID = clientID
	log.Debug().Str("client_id", clientID).Msg("identity sdk initialized")
	return nil
}

// RenderButton replaces whatever the target holds with a freshly rendered sign-in button.
func (b *Bridge) RenderButton(target MountTarget, opts ButtonOptions) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	if target == nil {
		return pkgerrors.New("[Bridge.RenderButton] mount target is required")
	}
	target.Clear()
	return pkgerrors.Wrap(b.sdk.RenderButton(target, opts), "[Bridge.RenderButton] sdk.RenderButton")
}

// Prompt asks the SDK to surface its own sign-in prompt.
func (b *Bridge) Prompt(ctx context.Context) error {
	if err := b.checkReady(); err != nil {
		return err
	}
	return pkgerrors.Wrap(b.sdk.Prompt(ctx), "[Bridge.Prompt] sdk.Prompt")
}

func (b *Bridge) dispatch(ctx context.Context, resp CredentialResponse) {
	b.lock.Lock()
	callback := b.callback
	b.lock.Unlock()

	if callback == nil {
		log.Warn().Msg("credential received before a callback was registered")
		return
	}
	callback(ctx, resp.Credential)
}

func (b *Bridge) checkReady() error {
	if r := b.script.Readiness(); r != loader.Ready {
		return pkgerrors.Wrapf(ErrNotReady, "readiness %s", r)
	}
	return nil
}
