package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestWriteRead_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, Session{Token: "a.b.c", Organization: "acme corp"}, DefaultMaxAge)

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Equal(t, "/", c.Path)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, 86400, c.MaxAge)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	s, err := Read(req)
	require.NoError(t, err)
	assert.Equal(t, Session{Token: "a.b.c", Organization: "acme corp"}, s)
	assert.True(t, s.Complete())
}

func TestWrite_Remember(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, Session{Token: "t", Organization: "o"}, RememberMaxAge)
	assert.Equal(t, int(RememberMaxAge.Seconds()), cookiesByName(rec)[AuthCookie].MaxAge)
}

func TestRead_Missing(t *testing.T) {
	s, err := Read(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.False(t, s.Complete())
}

func TestRead_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookie, Value: "%zz"})

	_, err := Read(req)
	assert.ErrorIs(t, err, ErrMalformedCookie)
}

func TestClear(t *testing.T) {
	rec := httptest.NewRecorder()
	Clear(rec)
	cookies := cookiesByName(rec)
	require.Contains(t, cookies, AuthCookie)
	require.Contains(t, cookies, RepositoryCookie)
	assert.Equal(t, -1, cookies[AuthCookie].MaxAge)
	assert.Equal(t, -1, cookies[RepositoryCookie].MaxAge)

	rec = httptest.NewRecorder()
	ClearAuth(rec)
	cookies = cookiesByName(rec)
	assert.Contains(t, cookies, AuthCookie)
	assert.NotContains(t, cookies, RepositoryCookie)
}
