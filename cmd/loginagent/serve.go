package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/bridge"
	"github.com/jrsteele09/go-auth-session/exchange"
	"github.com/jrsteele09/go-auth-session/idp"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/loader"
	"github.com/jrsteele09/go-auth-session/notify"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	refreshCheckInterval = time.Minute
	refreshMargin        = 5 * time.Minute
	refreshFallback      = 12 * time.Hour
)

var openBrowserOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sign-in agent",
	Long:  `Serve the local sign-in page, receive the provider credential and keep the session until logout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&openBrowserOnStart, "open", false, "Open the provider sign-in page in a browser when no session is restored")
	rootCmd.AddCommand(serveCmd)
}

// agent is the wired session core behind the HTTP surface.
type agent struct {
	controller *auth.Controller
	state      *session.Store
	tokens     tokenstore.Store
	handler    http.Handler
	close      func() error
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	a, err := newAgent(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Err(err).Msg("close token store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.controller.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore the previous session")
	}
	if openBrowserOnStart && a.state.Snapshot().Status != session.StatusAuthenticated {
		go func() {
			if err := a.controller.Prompt(ctx); err != nil {
				log.Warn().Err(err).Msg("could not open the sign-in page")
			}
		}()
	}
	go refreshLoop(ctx, a.controller, a.state, a.tokens)

	srv := &http.Server{Addr: c.GetPort(), Handler: a.handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(srv, c.GetBaseURL())
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// newAgent wires the session core from configuration.
func newAgent(c config.Config) (*agent, error) {
	store, closeStore, err := openTokenStore(c)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: c.GetRequestTimeout()}

	provider, err := idp.New(c.GetIssuerURL(), c.GetBaseURL()+server.RouteCallback, server.RouteIndex,
		idp.WithHTTPClient(httpClient),
		idp.WithCallbackRate(c.GetCallbackRatePerMinute()),
		idp.WithOpener(openBrowser),
	)
	if err != nil {
		return nil, err
	}
	scriptLoader, err := loader.New(provider,
		loader.WithSettleDelay(c.GetScriptSettleDelay()),
		loader.WithTimeout(c.GetScriptTimeout()),
	)
	if err != nil {
		return nil, err
	}
	credentialBridge, err := bridge.New(provider, scriptLoader)
	if err != nil {
		return nil, err
	}
	client, err := exchange.New(c.GetAPIBaseURL(), store, exchange.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	state := session.New()
	notes := notify.NewQueue()
	controller, err := auth.NewController(auth.Collaborators{
		Loader:   scriptLoader,
		Bridge:   credentialBridge,
		Exchange: client,
		Tokens:   store,
		State:    state,
		Notifier: notify.Fanout{notify.LogNotifier{}, notes},
	}, c.GetClientID(), auth.WithPolicy(tokenstore.PolicyForBaseURL(c.GetBaseURL())))
	if err != nil {
		return nil, err
	}
	controller.OnLogin(func(p users.Profile) {
		log.Info().Int64("user_id", p.ID).Str("username", p.Username).Msg("user signed in")
	})
	state.Subscribe(func(s session.State) {
		log.Debug().Str("status", string(s.Status)).Uint64("attempt", s.Attempt).Str("error", s.Error).Msg("session state")
	})

	handler, err := server.New(c, server.Deps{
		Controller: controller,
		State:      state,
		Tokens:     store,
		Notes:      notes,
		Mount:      bridge.NewHTMLMount(),
		Callback:   provider.CallbackHandler(),
	})
	if err != nil {
		return nil, err
	}
	return &agent{controller: controller, state: state, tokens: store, handler: handler, close: closeStore}, nil
}

func openTokenStore(c config.SessionConfig) (tokenstore.Store, func() error, error) {
	path := c.GetTokenDBPath()
	if path == config.MemoryTokenStore {
		return tokenstore.NewMemoryStore(), func() error { return nil }, nil
	}
	var options []tokenstore.SQLiteOption
	if key := c.GetTokenSealKey(); key != "" {
		options = append(options, tokenstore.WithSealKey(key))
	} else {
		log.Warn().Str("path", path).Msg("TOKEN_SEAL_KEY not set, tokens are stored unsealed")
	}
	store, err := tokenstore.NewSQLiteStore(path, options...)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// refreshLoop renews the token pair while a user is signed in, shortly before
// the access token lapses or, for opaque tokens, every refreshFallback.
func refreshLoop(ctx context.Context, controller *auth.Controller, state *session.Store, store tokenstore.Store) {
	ticker := time.NewTicker(refreshCheckInterval)
	defer ticker.Stop()
	lastRefresh := token.NowTimeFunc()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if state.Snapshot().Status != session.StatusAuthenticated {
				continue
			}
			pair, err := store.Get()
			if err != nil || !refreshable(pair, lastRefresh) {
				continue
			}
			switch err := controller.Refresh(ctx); {
			case err == nil:
			case errors.Is(err, auth.ErrSuperseded), errors.Is(err, auth.ErrNoRefreshToken):
				log.Debug().Err(err).Msg("token refresh skipped")
			default:
				log.Warn().Err(err).Msg("token refresh failed")
			}
			lastRefresh = token.NowTimeFunc()
		}
	}
}

func listenAndServe(srv *http.Server, baseURL string) error {
	log.Info().Str("addr", srv.Addr).Str("url", baseURL).Msg("agent listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	log.Info().Msg("agent stopped")
	return nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

// refreshable reports whether pair can and should be renewed now. A pair without
// a refresh token is kept until its access token lapses.
func refreshable(pair *tokenstore.TokenPair, lastRefresh time.Time) bool {
	if pair == nil || pair.RefreshToken == "" {
		return false
	}
	return token.RefreshDue(pair.AccessToken, lastRefresh, refreshMargin, refreshFallback)
}
