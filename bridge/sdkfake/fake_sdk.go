package sdkfake

import (
	"context"
	"fmt"
	"html/template"
	"sync"

	"github.com/jrsteele09/go-auth-session/bridge"
)

var _ bridge.SDK = (*FakeSDK)(nil)

// FakeSDK behaves like a naive identity library: every Initialize adds another
// callback and every RenderButton appends without clearing.
type FakeSDK struct {
	InitializeErr error
	RenderErr     error

	callbacks []func(ctx context.Context, resp bridge.CredentialResponse)
	inits     []bridge.SDKConfig
	renders   int
	prompts   int
	lock      sync.Mutex
}

func NewFakeSDK() *FakeSDK {
	return &FakeSDK{}
}

func (f *FakeSDK) Initialize(cfg bridge.SDKConfig) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.InitializeErr != nil {
		return f.InitializeErr
	}
	f.inits = append(f.inits, cfg)
	f.callbacks = append(f.callbacks, cfg.Callback)
	return nil
}

func (f *FakeSDK) RenderButton(target bridge.MountTarget, opts bridge.ButtonOptions) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.RenderErr != nil {
		return f.RenderErr
	}
	f.renders++
	target.Append(template.HTML(fmt.Sprintf(`<button data-render="%d">%s</button>`, f.renders, template.HTMLEscapeString(opts.Text))))
	return nil
}

func (f *FakeSDK) Prompt(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.prompts++
	return nil
}

// Emit simulates the provider delivering a credential to every registered callback.
func (f *FakeSDK) Emit(ctx context.Context, credential string) {
	f.lock.Lock()
	callbacks := append([]func(context.Context, bridge.CredentialResponse){}, f.callbacks...)
	f.lock.Unlock()
	for _, cb := range callbacks {
		cb(ctx, bridge.CredentialResponse{Credential: credential, SelectBy: "btn"})
	}
}

func (f *FakeSDK) Initializations() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.inits)
}

func (f *FakeSDK) Prompts() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.prompts
}
