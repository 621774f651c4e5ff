package bridge

import (
	"context"
	"html/template"
)

// CredentialResponse is what the identity SDK hands to its registered callback.
type CredentialResponse struct {
	Credential string // signed ID token issued by the provider
	SelectBy   string // how the user picked the account, e.g. "btn"
}

// SDKConfig is passed to the SDK's initialize call.
type SDKConfig struct {
	ClientID string
	Callback func(ctx context.Context, resp CredentialResponse)
}

// ButtonOptions are forwarded to the SDK unchanged.
type ButtonOptions struct {
	Text  string
	Theme string
	Size  string
}

// MountTarget is a caller-owned container the SDK renders its sign-in affordance into.
type MountTarget interface {
	Clear()
	Append(fragment template.HTML)
}

// SDK is the contract expected from the third-party identity library.
type SDK interface {
	Initialize(cfg SDKConfig) error
	RenderButton(target MountTarget, opts ButtonOptions) error
	Prompt(ctx context.Context) error
}
