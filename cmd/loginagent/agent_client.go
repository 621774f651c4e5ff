package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-session/server"
	"github.com/pkg/errors"
)

// agentClient talks to a running agent's state API.
type agentClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAgentClient(baseURL string) *agentClient {
	return &agentClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *agentClient) State(ctx context.Context) (*server.StateResponse, error) {
	return c.do(ctx, http.MethodGet, server.RouteAuthState)
}

func (c *agentClient) Logout(ctx context.Context) (*server.StateResponse, error) {
	return c.do(ctx, http.MethodPost, server.RouteAuthLogout)
}

func (c *agentClient) do(ctx context.Context, method, path string) (*server.StateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "agent not reachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("agent returned %d: %s", resp.StatusCode, body)
	}

	var state server.StateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, errors.Wrap(err, "decode agent response")
	}
	return &state, nil
}
