package idp

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/bridge"
	"github.com/jrsteele09/go-auth-session/loader"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var (
	_ loader.Script = (*Provider)(nil)
	_ bridge.SDK    = (*Provider)(nil)
)

const (
	loginTimeout          = 10 * time.Minute
	defaultCallbackPerMin = 30
)

var errNotLoaded = errors.New("identity provider not loaded")

var buttonTemplate = template.Must(template.New("button").Parse(
	`<a class="idp-signin" data-theme="{{.Theme}}" data-size="{{.Size}}" href="{{.URL}}">{{.Text}}</a>`,
))

type pendingLogin struct {
	nonce     string
	expiresAt time.Time
}

// Provider is the identity SDK for an OpenID Connect provider using the implicit
// flow: the rendered button sends the user to the provider, which form-posts a
// signed ID token (the credential) back to the callback handler.
//
// Loading the provider means fetching its discovery document.
type Provider struct {
	issuer      string
	redirectURL string
	returnURL   string
	httpClient  *http.Client
	opener      func(url string) error
	verify      bool
	limiter     *rate.Limiter
	nowFunc     func() time.Time

	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	sdkConfig    *bridge.SDKConfig
	pending      map[string]pendingLogin
	lock         sync.RWMutex
}

type Option func(*Provider)

// WithDiscovered marks the provider as already loaded, so no fetch is issued.
func WithDiscovered(p *oidc.Provider) Option {
	return func(pr *Provider) {
		pr.provider = p
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithOpener sets how Prompt surfaces the sign-in URL, e.g. by launching a browser.
func WithOpener(opener func(url string) error) Option {
	return func(p *Provider) {
		p.opener = opener
	}
}

// WithVerification toggles ID token verification on the callback. It is on by
// default; the first-party backend verifies the credential again on exchange.
func WithVerification(verify bool) Option {
	return func(p *Provider) {
		p.verify = verify
	}
}

// WithCallbackRate limits credential submissions per minute.
func WithCallbackRate(perMinute int) Option {
	return func(p *Provider) {
		if perMinute > 0 {
			p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

// New creates a provider for issuer. redirectURL is where the provider posts the
// credential; returnURL is where the user lands afterwards.
func New(issuer, redirectURL, returnURL string, options ...Option) (*Provider, error) {
	if issuer == "" {
		return nil, errors.New("[idp.New] issuer is required")
	}
	if redirectURL == "" {
		return nil, errors.New("[idp.New] redirect url is required")
	}
	p := &Provider{
		issuer:      issuer,
		redirectURL: redirectURL,
		returnURL:   returnURL,
		httpClient:  http.DefaultClient,
		opener:      func(string) error { return errors.New("no opener configured") },
		verify:      true,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/defaultCallbackPerMin), defaultCallbackPerMin),
		nowFunc:     time.Now,
		pending:     make(map[string]pendingLogin),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.returnURL == "" {
		p.returnURL = "/"
	}
	return p, nil
}

// Fetch discovers the provider configuration.
func (p *Provider) Fetch(ctx context.Context) error {
	discovered, err := oidc.NewProvider(oidc.ClientContext(ctx, p.httpClient), p.issuer)
	if err != nil {
		return errors.Wrap(err, "[Provider.Fetch] oidc.NewProvider")
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	p.provider = discovered
	return nil
}

// Present reports whether discovery yielded the endpoints the flow needs.
func (p *Provider) Present() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.provider == nil || p.provider.Endpoint().AuthURL == "" {
		return false
	}
	var claims struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := p.provider.Claims(&claims); err != nil {
		return false
	}
	return claims.JWKSURI != ""
}

// Initialize registers the client and the credential callback.
func (p *Provider) Initialize(cfg bridge.SDKConfig) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.provider == nil {
		return errNotLoaded
	}
	p.sdkConfig = &cfg
	p.oauth2Config = &oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    p.provider.Endpoint(),
		RedirectURL: p.redirectURL,
		Scopes:      []string{oidc.ScopeOpenID, "email", "profile"},
	}
	return nil
}

// RenderButton appends a sign-in link bound to a fresh state and nonce.
func (p *Provider) RenderButton(target bridge.MountTarget, opts bridge.ButtonOptions) error {
	authURL, err := p.beginLogin()
	if err != nil {
		return err
	}
	if opts.Text == "" {
		opts.Text = "Sign in"
	}

	var buf bytes.Buffer
	err = buttonTemplate.Execute(&buf, struct {
		bridge.ButtonOptions
		URL string
	}{opts, authURL})
	if err != nil {
		return errors.Wrap(err, "[Provider.RenderButton] execute template")
	}
	target.Append(template.HTML(buf.String()))
	return nil
}

// Prompt opens the sign-in URL through the configured opener.
func (p *Provider) Prompt(ctx context.Context) error {
	authURL, err := p.beginLogin()
	if err != nil {
		return err
	}
	return p.opener(authURL)
}

// beginLogin records a one-time state/nonce pair and returns the authorization URL.
func (p *Provider) beginLogin() (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.oauth2Config == nil {
		return "", errors.New("[Provider.beginLogin] sdk not initialized")
	}

	now := p.nowFunc()
	for state, pl := range p.pending {
		if now.After(pl.expiresAt) {
			delete(p.pending, state)
		}
	}

	state := uuid.New().String()
	nonce := uuid.New().String()
	p.pending[state] = pendingLogin{nonce: nonce, expiresAt: now.Add(loginTimeout)}

	return p.oauth2Config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "id_token"),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
		oauth2.SetAuthURLParam("nonce", nonce),
	), nil
}

// consumeLogin returns the nonce for state and forgets it.
func (p *Provider) consumeLogin(state string) (string, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	pl, ok := p.pending[state]
	if !ok {
		return "", false
	}
	delete(p.pending, state)
	if p.nowFunc().After(pl.expiresAt) {
		return "", false
	}
	return pl.nonce, true
}
