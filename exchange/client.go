package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Backend endpoints, relative to the API base URL.
const (
	ExchangePath = "/auth/google"
	RefreshPath  = "/auth/refresh"
	ProfilePath  = "/users/me"
)

// ErrMalformedResponse is returned when a response body is not the expected JSON.
var ErrMalformedResponse = errors.New("malformed response body")

// Client talks to the first-party backend: it exchanges an identity provider
// credential for a TokenPair, refreshes the pair and fetches the signed-in profile.
// Profile requests authenticate with the access token currently held by the store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func New(baseURL string, store tokenstore.Store, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[exchange.New] base url is required")
	}
	if store == nil {
		return nil, errors.New("[exchange.New] token store is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(c)
	}
	c.authClient = &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: tokenstore.NewTokenSource(store),
			Base:   c.httpClient.Transport,
		},
	}
	return c, nil
}

// Exchange trades a provider credential for a first-party TokenPair. A successful
// response without a data object yields a nil pair; validating the pair is left
// to the caller.
func (c *Client) Exchange(ctx context.Context, credential string) (*tokenstore.TokenPair, error) {
	var pair *tokenstore.TokenPair
	if err := c.postJSON(ctx, ExchangePath, map[string]string{"credential": credential}, &pair); err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange]")
	}
	return pair, nil
}

// Refresh trades a refresh token for a new TokenPair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*tokenstore.TokenPair, error) {
	var pair *tokenstore.TokenPair
	if err := c.postJSON(ctx, RefreshPath, map[string]string{"refreshToken": refreshToken}, &pair); err != nil {
		return nil, errors.Wrap(err, "[Client.Refresh]")
	}
	return pair, nil
}

// Profile fetches the account the persisted access token belongs to.
func (c *Client) Profile(ctx context.Context) (*users.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ProfilePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Profile] create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.authClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Profile] send request")
	}
	body, err := readResponse(resp)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Profile]")
	}

	profile, err := decodeProfile(body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Profile]")
	}
	return profile, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, target any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	body, err := readResponse(resp)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return errors.Wrap(ErrMalformedResponse, err.Error())
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return nil
}

// readResponse returns the body of a successful response and an *APIError otherwise.
// The backend may also report failure through the envelope's statusCode.
func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	var env envelope
	_ = json.Unmarshal(body, &env)

	status := resp.StatusCode
	if status < 300 && env.StatusCode >= 400 {
		status = env.StatusCode
	}
	if status >= 300 {
		return nil, &APIError{StatusCode: status, Message: env.Message}
	}
	return body, nil
}
