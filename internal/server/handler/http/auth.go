// Package http provides the HTTP handlers of the HubViewer API: login,
// logout, session inspection and the registry proxy.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/HubViewer/internal/broker"
	"github.com/atinyakov/HubViewer/internal/metrics"
	"github.com/atinyakov/HubViewer/internal/service"
	"github.com/atinyakov/HubViewer/internal/session"
)

// AuthService defines the login operations required by the HTTP handlers.
type AuthService interface {
	// LoginAccount verifies and seals a multi-account login.
	LoginAccount(ctx context.Context, organization, user, secret string) (service.AccountLogin, error)
	// LoginToken validates a token against a repository and returns the
	// normalized repository name.
	LoginToken(ctx context.Context, token, repository string) (string, error)
}

// AuthHandler handles login, logout and session requests.
type AuthHandler struct {
	// AuthService performs the underlying login operations.
	AuthService AuthService
	// Log receives login failures. Nil disables logging.
	Log *zap.Logger
	// Metrics counts login attempts. Nil disables metrics.
	Metrics *metrics.Metrics
}

// LoginRequest is the JSON payload of POST /api/login. Either Organization,
// User and Token (account login) or Token and Repository (token login) are set.
type LoginRequest struct {
	// Organization is the namespace of an account login.
	Organization string `json:"organization"`
	// User is the registry login of an account login.
	User string `json:"user"`
	// Token is the access token of an account login or the bearer token of
	// a token login.
	Token string `json:"token"`
	// Repository is the namespace of a token login.
	Repository string `json:"repository"`
	// Remember extends the token login cookies from one day to 100 years.
	Remember bool `json:"remember"`
}

func (r LoginRequest) isAccount() bool {
	return r.Organization != "" || r.User != ""
}

// LoginResponse is returned by an account login.
type LoginResponse struct {
	// Account is the sealed credential bundle the client sends back in the
	// Account header.
	Account string `json:"account"`
	// Organization is the normalized organization name.
	Organization string `json:"organization"`
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	maxAge := session.DefaultMaxAge
	if req.Remember {
		maxAge = session.RememberMaxAge
	}

	if req.isAccount() {
		h.loginAccount(w, r, req, maxAge)
		return
	}
	h.loginToken(w, r, req, maxAge)
}

func (h *AuthHandler) loginAccount(w http.ResponseWriter, r *http.Request, req LoginRequest, maxAge time.Duration) {
	res, err := h.AuthService.LoginAccount(r.Context(), req.Organization, req.User, req.Token)
	h.Metrics.Login("account", err == nil)
	if err != nil {
		if errors.Is(err, service.ErrMissingFields) {
			http.Error(w, "Organization, user and token are required", http.StatusBadRequest)
			return
		}
		h.writeLoginError(w, err)
		return
	}

	session.Write(w, session.Session{Token: res.Token, Organization: res.Organization}, maxAge)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LoginResponse{
		Account:      res.Bundle,
		Organization: res.Organization,
	})
}

func (h *AuthHandler) loginToken(w http.ResponseWriter, r *http.Request, req LoginRequest, maxAge time.Duration) {
	repository, err := h.AuthService.LoginToken(r.Context(), req.Token, req.Repository)
	h.Metrics.Login("token", err == nil)
	if err != nil {
		if errors.Is(err, service.ErrMissingFields) {
			http.Error(w, "Token and repository are required", http.StatusBadRequest)
			return
		}
		h.writeLoginError(w, err)
		return
	}

	session.Write(w, session.Session{Token: req.Token, Organization: repository}, maxAge)
	_, _ = w.Write([]byte("Login successful"))
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	var authErr *broker.AuthError
	switch {
	case errors.As(err, &authErr):
		http.Error(w, "Invalid credentials or permissions", authErr.Status)
	case errors.Is(err, broker.ErrAuthenticationFailed):
		http.Error(w, "Invalid credentials or permissions", http.StatusUnauthorized)
	default:
		h.logger().Error("login failed", zap.Error(err))
		http.Error(w, "An error occurred during login", http.StatusInternalServerError)
	}
}

// Logout handles POST /api/logout by clearing both session cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session.Clear(w)
	h.Metrics.SessionTeardown()
	_, _ = w.Write([]byte("Logout successful"))
}

// DeleteAuthCookie handles POST /api/delete-auth-cookie. Only the token is
// dropped; the organization survives so the next login can prefill it.
func (h *AuthHandler) DeleteAuthCookie(w http.ResponseWriter, r *http.Request) {
	session.ClearAuth(w)
	_, _ = w.Write([]byte("Deleted auth cookie successfully"))
}

// SessionResponse describes the organization bound to the session.
type SessionResponse struct {
	BaseRepository *string `json:"baseRepository"`
}

// Session handles GET /api/session. A missing or malformed organization
// cookie yields a null baseRepository.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	var resp SessionResponse
	if s, err := session.Read(r); err == nil && s.Organization != "" {
		resp.BaseRepository = &s.Organization
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
