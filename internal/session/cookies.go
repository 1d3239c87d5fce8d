// Package session stores the registry bearer token and the organization it
// belongs to in HTTP-only cookies.
package session

import (
	"errors"
	"net/http"
	"net/url"
	"time"
)

const (
	// AuthCookie holds the bearer token.
	AuthCookie = "DTVAuth"
	// RepositoryCookie holds the organization (namespace) of the session.
	RepositoryCookie = "DTVRepository"
)

const (
	// DefaultMaxAge is the cookie lifetime of a regular login.
	DefaultMaxAge = 24 * time.Hour
	// RememberMaxAge is the cookie lifetime when the user asks to be remembered.
	RememberMaxAge = 100 * 365 * 24 * time.Hour
)

// ErrMalformedCookie is returned when a session cookie cannot be decoded.
var ErrMalformedCookie = errors.New("malformed session cookie")

// Session is the decoded content of the session cookies. Empty fields mean
// the corresponding cookie was absent.
type Session struct {
	Token        string
	Organization string
}

// Complete reports whether both cookies were present.
func (s Session) Complete() bool {
	return s.Token != "" && s.Organization != ""
}

// Empty reports whether neither cookie was present.
func (s Session) Empty() bool {
	return s.Token == "" && s.Organization == ""
}

// Read decodes the session cookies of r.
func Read(r *http.Request) (Session, error) {
	var s Session
	var err error
	if s.Token, err = readCookie(r, AuthCookie); err != nil {
		return Session{}, err
	}
	if s.Organization, err = readCookie(r, RepositoryCookie); err != nil {
		return Session{}, err
	}
	return s, nil
}

func readCookie(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", nil
	}
	if err != nil {
		return "", ErrMalformedCookie
	}
	v, err := url.QueryUnescape(c.Value)
	if err != nil || v == "" {
		return "", ErrMalformedCookie
	}
	return v, nil
}

// Write sets both session cookies.
func Write(w http.ResponseWriter, s Session, maxAge time.Duration) {
	http.SetCookie(w, newCookie(AuthCookie, url.QueryEscape(s.Token), maxAge))
	http.SetCookie(w, newCookie(RepositoryCookie, url.QueryEscape(s.Organization), maxAge))
}

// Clear expires both session cookies.
func Clear(w http.ResponseWriter) {
	ClearAuth(w)
	http.SetCookie(w, expired(RepositoryCookie))
}

// ClearAuth expires only the token cookie, keeping the organization.
func ClearAuth(w http.ResponseWriter) {
	http.SetCookie(w, expired(AuthCookie))
}

func newCookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func expired(name string) *http.Cookie {
	c := newCookie(name, "", 0)
	c.MaxAge = -1
	return c
}
