// Package proxy forwards registry listing calls on behalf of the client,
// attaching a bearer token the client never sees.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/HubViewer/internal/broker"
	"github.com/atinyakov/HubViewer/internal/metrics"
	"github.com/atinyakov/HubViewer/internal/models"
	"github.com/atinyakov/HubViewer/internal/session"
)

// AccountHeader carries the encrypted account bundle in multi-account mode.
const AccountHeader = "Account"

// listingPrefix is the only upstream subtree the proxy will reach.
var listingPrefix = []string{"v2", "repositories"}

var (
	// ErrInvalidPath is returned for paths outside the listing prefix.
	ErrInvalidPath = errors.New("invalid proxy path, must start with v2/repositories")
	// ErrCredentialsRequired is returned when no live token and no account bundle exist.
	ErrCredentialsRequired = errors.New("account credentials required")
)

// TokenSource mints bearer tokens and formats them for the upstream.
type TokenSource interface {
	ObtainToken(ctx context.Context, user, secret string) (string, error)
	AuthorizationHeader(token string) string
	Upstream() string
}

// CredentialOpener decrypts an account bundle.
type CredentialOpener interface {
	OpenCredentials(bundle string) (models.Credentials, error)
}

// Gateway is the credential-injecting proxy to the registry.
type Gateway struct {
	tokens    TokenSource
	opener    CredentialOpener
	client    *http.Client
	log       *zap.Logger
	metrics   *metrics.Metrics
	isExpired func(string) bool
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the client used for upstream calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithMetrics records upstream calls and token refreshes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithExpiryCheck replaces broker.IsExpired, mostly for tests.
func WithExpiryCheck(fn func(string) bool) Option {
	return func(g *Gateway) { g.isExpired = fn }
}

// New builds a Gateway.
func New(tokens TokenSource, opener CredentialOpener, log *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		tokens: tokens,
		opener: opener,
		client: &http.Client{
			Timeout: 30 * time.Second,
			// Redirects go back to the caller untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log:       log,
		isExpired: broker.IsExpired,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Forward relays r to the registry. proxyPath is the registry-relative path
// (e.g. "v2/repositories/app/tags"); the organization segment is injected
// from the resolved session.
func (g *Gateway) Forward(w http.ResponseWriter, r *http.Request, proxyPath string) {
	rest, err := splitListingPath(proxyPath)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	creds, ok := g.resolve(w, r)
	if !ok {
		return
	}

	target := g.targetURL(creds.Organization, rest, r.URL.RawQuery)

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		g.log.Error("build upstream request", zap.Error(err))
		http.Error(w, "Proxy error", http.StatusInternalServerError)
		return
	}
	upstreamReq.Header.Set("Authorization", g.tokens.AuthorizationHeader(creds.Token))
	if accept := r.Header.Get("Accept"); accept != "" {
		upstreamReq.Header.Set("Accept", accept)
	}

	start := time.Now()
	resp, err := g.client.Do(upstreamReq)
	if err != nil {
		g.metrics.ObserveProxy(0, time.Since(start))
		g.log.Error("proxy error", zap.String("target", target), zap.Error(err))
		http.Error(w, "Proxy error", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()
	g.metrics.ObserveProxy(resp.StatusCode, time.Since(start))

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		g.log.Warn("relay upstream body", zap.String("target", target), zap.Error(err))
	}
}

// resolved is the token and namespace a request is forwarded with.
type resolved struct {
	Token        string
	Organization string
}

// resolve finds a live token for the request, refreshing it from the
// account bundle when needed. On failure it writes the response itself.
func (g *Gateway) resolve(w http.ResponseWriter, r *http.Request) (resolved, bool) {
	bundle := r.Header.Get(AccountHeader)
	sess, cookieErr := session.Read(r)

	if bundle == "" {
		return g.resolveFromCookies(w, sess, cookieErr)
	}

	creds, err := g.opener.OpenCredentials(bundle)
	if err != nil {
		g.log.Warn("rejecting account bundle", zap.Error(err))
		g.teardown(w)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return resolved{}, false
	}

	// A cookie minted for another account is not reused.
	if cookieErr == nil && sess.Token != "" && sess.Organization == creds.Organization && !g.isExpired(sess.Token) {
		return resolved{Token: sess.Token, Organization: creds.Organization}, true
	}

	token, err := g.tokens.ObtainToken(r.Context(), creds.User, creds.Token)
	g.metrics.TokenRefresh(err == nil)
	if err != nil {
		g.writeExchangeError(w, err)
		return resolved{}, false
	}

	session.Write(w, session.Session{Token: token, Organization: creds.Organization}, session.DefaultMaxAge)
	g.log.Debug("refreshed session token", zap.String("organization", creds.Organization))
	return resolved{Token: token, Organization: creds.Organization}, true
}

func (g *Gateway) resolveFromCookies(w http.ResponseWriter, sess session.Session, cookieErr error) (resolved, bool) {
	if cookieErr != nil {
		g.teardown(w)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return resolved{}, false
	}
	if !sess.Complete() || g.isExpired(sess.Token) {
		if !sess.Empty() {
			g.teardown(w)
		}
		http.Error(w, ErrCredentialsRequired.Error(), http.StatusBadRequest)
		return resolved{}, false
	}
	return resolved{Token: sess.Token, Organization: sess.Organization}, true
}

func (g *Gateway) writeExchangeError(w http.ResponseWriter, err error) {
	var authErr *broker.AuthError
	switch {
	case errors.As(err, &authErr) && authErr.Status >= 400 && authErr.Status < 500:
		http.Error(w, "Authentication failed", authErr.Status)
	case errors.Is(err, broker.ErrAuthenticationFailed):
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
	default:
		g.log.Error("token exchange failed", zap.Error(err))
		http.Error(w, "Proxy error", http.StatusInternalServerError)
	}
}

func (g *Gateway) teardown(w http.ResponseWriter) {
	session.Clear(w)
	g.metrics.SessionTeardown()
}

func (g *Gateway) targetURL(organization, rest, rawQuery string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(g.tokens.Upstream(), "/"))
	b.WriteString("/v2/repositories/")
	b.WriteString(url.PathEscape(organization))
	if rest != "" {
		b.WriteByte('/')
		b.WriteString(rest)
	}
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	return b.String()
}

// splitListingPath validates the listing prefix and returns the remainder,
// each segment re-escaped for the upstream URL. Segments are compared after
// percent-decoding so encoded dot segments cannot leave the listing subtree.
func splitListingPath(p string) (string, error) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < len(listingPrefix) {
		return "", ErrInvalidPath
	}

	decoded := make([]string, len(parts))
	for i, part := range parts {
		seg, err := url.PathUnescape(part)
		if err != nil || seg == "." || seg == ".." || strings.ContainsAny(seg, "/\\") {
			return "", ErrInvalidPath
		}
		decoded[i] = seg
	}

	for i, want := range listingPrefix {
		if decoded[i] != want {
			return "", ErrInvalidPath
		}
	}

	rest := decoded[len(listingPrefix):]
	for i, seg := range rest {
		rest[i] = url.PathEscape(seg)
	}
	return strings.Join(rest, "/"), nil
}
