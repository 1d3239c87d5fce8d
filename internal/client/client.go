// Package client talks to the HubViewer server: it logs accounts in and
// walks registry listings through the server's proxy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds every single request, not a whole listing.
	DefaultTimeout = 10 * time.Second

	proxyPrefix = "/api/proxy/"
	// AccountHeader carries the encrypted account bundle.
	AccountHeader = "Account"
)

// Client is a HubViewer API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	account string
	log     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client, typically one from NewHTTPClient so
// session cookies survive between calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout changes the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithAccount sends bundle in the Account header of proxy calls.
func WithAccount(bundle string) Option {
	return func(c *Client) { c.account = bundle }
}

// WithLogger sets the logger used for failed requests.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getJSON fetches a registry-relative path through the proxy and decodes
// the JSON answer into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	target := c.baseURL + proxyPrefix + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.account != "" {
		req.Header.Set(AccountHeader, c.account)
	}

	return c.do(req, path, out)
}

// postJSON sends body to an API endpoint and decodes the JSON answer into
// out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(req.Context(), path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return &UpstreamError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.transportError(req.Context(), path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, path string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrRequestTimeout, path)
	}
	return fmt.Errorf("%s: %w", path, err)
}

// LoginResponse is the server's answer to an account login.
type LoginResponse struct {
	// Account is the encrypted bundle to store and send back later.
	Account string `json:"account"`
	// Organization is the organization the bundle is scoped to.
	Organization string `json:"organization"`
}

// Login registers an account with the server and returns its bundle. The
// session cookies set by the server live in the HTTP client's jar for the
// lifetime of the client; later processes authenticate with the bundle.
func (c *Client) Login(ctx context.Context, organization, user, token string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.postJSON(ctx, "/api/login", map[string]string{
		"organization": organization,
		"user":         user,
		"token":        token,
	}, &resp)
	return resp, err
}
