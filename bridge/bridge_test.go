package bridge_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-auth-session/bridge"
	"github.com/jrsteele09/go-auth-session/bridge/sdkfake"
	interrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/loader"
	"github.com/stretchr/testify/require"
)

type readiness struct{ r loader.Readiness }

func (s *readiness) Readiness() loader.Readiness { return s.r }

func setupBridge(t *testing.T) (*bridge.Bridge, *sdkfake.FakeSDK, *readiness) {
	t.Helper()
	sdk := sdkfake.NewFakeSDK()
	ready := &readiness{r: loader.Ready}
	b, err := bridge.New(sdk, ready)
	require.NoError(t, err)
	return b, sdk, ready
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := bridge.New(nil, &readiness{})
	require.Error(t, err)
	_, err = bridge.New(sdkfake.NewFakeSDK(), nil)
	require.Error(t, err)
}

func TestBridge_RequiresReadyScript(t *testing.T) {
	b, sdk, ready := setupBridge(t)
	ready.r = loader.Loading

	err := b.Initialize("client-1", func(context.Context, string) {})
	require.ErrorIs(t, err, bridge.ErrNotReady)
	require.ErrorIs(t, b.RenderButton(bridge.NewHTMLMount(), bridge.ButtonOptions{}), bridge.ErrNotReady)
	require.ErrorIs(t, b.Prompt(context.Background()), bridge.ErrNotReady)
	require.Zero(t, sdk.Initializations())
}

func TestBridge_ReinitializeDeliversOnce(t *testing.T) {
	b, sdk, _ := setupBridge(t)

	var calls atomic.Int32
	var got string
	onCredential := func(_ context.Context, credential string) {
		calls.Add(1)
		got = credential
	}

	require.NoError(t, b.Initialize("client-1", onCredential))
	require.NoError(t, b.Initialize("client-1", onCredential))

	sdk.Emit(context.Background(), "cred123")
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, "cred123", got)
	require.Equal(t, 1, sdk.Initializations())
}

func TestBridge_ReinitializeReplacesCallback(t *testing.T) {
	b, sdk, _ := setupBridge(t)

	var first, second atomic.Int32
	require.NoError(t, b.Initialize("client-1", func(context.Context, string) { first.Add(1) }))
	require.NoError(t, b.Initialize("client-1", func(context.Context, string) { second.Add(1) }))

	sdk.Emit(context.Background(), "cred")
	require.Zero(t, first.Load())
	require.Equal(t, int32(1), second.Load())
}

func TestBridge_InitializeValidation(t *testing.T) {
	b, sdk, _ := setupBridge(t)
	require.ErrorIs(t, b.Initialize("", func(context.Context, string) {}), interrors.ErrMissingClient)
	require.Error(t, b.Initialize("client-1", nil))

	sdk.InitializeErr = errors.New("boom")
	err := b.Initialize("client-1", func(context.Context, string) {})
	require.ErrorContains(t, err, "boom")

	// A failed SDK initialization is retried on the next call
	sdk.InitializeErr = nil
	require.NoError(t, b.Initialize("client-1", func(context.Context, string) {}))
	require.Equal(t, 1, sdk.Initializations())
}

func TestBridge_RenderButtonClearsPreviousAffordance(t *testing.T) {
	b, _, _ := setupBridge(t)
	mount := bridge.NewHTMLMount()
	mount.Append("<p>stale</p>")

	for i := 0; i < 3; i++ {
		require.NoError(t, b.RenderButton(mount, bridge.ButtonOptions{Text: "Sign in"}))
	}

	require.Equal(t, 1, mount.Len())
	html := string(mount.HTML())
	require.Equal(t, 1, strings.Count(html, "<button"))
	require.NotContains(t, html, "stale")
	require.Error(t, b.RenderButton(nil, bridge.ButtonOptions{}))
}

func TestBridge_Prompt(t *testing.T) {
	b, sdk, _ := setupBridge(t)
	require.NoError(t, b.Prompt(context.Background()))
	require.Equal(t, 1, sdk.Prompts())
}
