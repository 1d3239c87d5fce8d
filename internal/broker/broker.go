// Package broker exchanges long-lived registry credentials for short-lived
// bearer tokens and decides whether a cached token is still usable.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const tokenPath = "/v2/auth/token"

var (
	// ErrAuthenticationFailed is returned when the upstream rejects credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrUpstreamUnavailable wraps transport failures talking to the upstream.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// AuthError carries the status code the upstream answered a credential
// exchange or validation with.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: upstream status %d", e.Status)
}

// Unwrap lets errors.Is match ErrAuthenticationFailed.
func (e *AuthError) Unwrap() error {
	return ErrAuthenticationFailed
}

// Broker talks to the registry's token endpoint.
type Broker struct {
	upstream string
	scheme   string
	client   *http.Client
	log      *zap.Logger
}

// Option customizes a Broker.
type Option func(*Broker)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Broker) { b.client = c }
}

// WithAuthScheme sets the Authorization scheme used with issued tokens.
func WithAuthScheme(scheme string) Option {
	return func(b *Broker) {
		if scheme != "" {
			b.scheme = scheme
		}
	}
}

// New returns a Broker for the registry at upstream (e.g. https://hub.docker.com).
func New(upstream string, log *zap.Logger, opts ...Option) *Broker {
	b := &Broker{
		upstream: strings.TrimRight(upstream, "/"),
		scheme:   "Bearer",
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Upstream returns the registry base URL without a trailing slash.
func (b *Broker) Upstream() string {
	return b.upstream
}

// AuthorizationHeader formats the Authorization header value for token.
func (b *Broker) AuthorizationHeader(token string) string {
	return b.scheme + " " + token
}

type tokenRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
}

// ObtainToken exchanges user credentials for a bearer token.
func (b *Broker) ObtainToken(ctx context.Context, user, secret string) (string, error) {
	body, err := json.Marshal(tokenRequest{Identifier: user, Secret: secret})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.upstream+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		b.log.Warn("token exchange rejected",
			zap.String("user", user),
			zap.Int("status", resp.StatusCode),
		)
		return "", &AuthError{Status: resp.StatusCode}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrAuthenticationFailed, err)
	}
	token := tr.AccessToken
	if token == "" {
		token = tr.Token
	}
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrAuthenticationFailed)
	}

	b.log.Debug("obtained registry token", zap.String("user", user))
	return token, nil
}

// ValidateToken checks that token grants access to repository by fetching
// the repository listing once. It returns the upstream status code.
func (b *Broker) ValidateToken(ctx context.Context, token, repository string) (int, error) {
	target := b.upstream + "/v2/repositories/" + strings.Trim(repository, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("build validation request: %w", err)
	}
	req.Header.Set("Authorization", b.AuthorizationHeader(token))
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &AuthError{Status: resp.StatusCode}
	}
	return resp.StatusCode, nil
}
