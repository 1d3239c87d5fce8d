package client

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pemCert(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestGetJSON_Headers(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"name":"x"}`))
	}))
	defer srv.Close()

	var out item
	c := New(srv.URL+"/", WithAccount("iv:ct"))
	require.NoError(t, c.getJSON(context.Background(), "/v2/repositories/app", nil, &out))

	assert.Equal(t, "x", out.Name)
	assert.Equal(t, "/api/proxy/v2/repositories/app", got.URL.Path)
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "iv:ct", got.Header.Get(AccountHeader))
}

func TestGetJSON_NoAccountHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header[AccountHeader]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).getJSON(context.Background(), "v2/repositories", nil, &item{}))
}

func TestGetJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnauthorized)
			},
		},
		{
			name: "upstream status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"object not found"}`, http.StatusNotFound)
			},
			check: func(t *testing.T, err error) {
				var upErr *UpstreamError
				require.ErrorAs(t, err, &upErr)
				assert.Equal(t, http.StatusNotFound, upErr.Status)
				assert.Equal(t, "Not Found", upErr.StatusText)
				assert.Contains(t, upErr.Body, "object not found")
				assert.Contains(t, err.Error(), "request failed: 404")
			},
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode response")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			err := New(srv.URL).getJSON(context.Background(), "v2/repositories", nil, &item{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetJSON_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	err := c.getJSON(context.Background(), "v2/repositories", nil, &item{})
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestGetJSON_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url).getJSON(context.Background(), "v2/repositories", nil, &item{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRequestTimeout))
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"organization": "acme", "user": "alice", "token": "pat"}, body)

		http.SetCookie(w, &http.Cookie{Name: "DTVAuth", Value: "jwt", Path: "/"})
		_, _ = w.Write([]byte(`{"account":"iv:ct","organization":"acme"}`))
	}))
	defer srv.Close()

	hc, err := NewHTTPClient("")
	require.NoError(t, err)
	c := New(srv.URL, WithHTTPClient(hc))

	resp, err := c.Login(context.Background(), "acme", "alice", "pat")
	require.NoError(t, err)
	assert.Equal(t, LoginResponse{Account: "iv:ct", Organization: "acme"}, resp)

	u, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	cookies := hc.Jar.Cookies(u.URL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Value)
}

func TestNewHTTPClient(t *testing.T) {
	hc, err := NewHTTPClient("")
	require.NoError(t, err)
	assert.NotNil(t, hc.Jar)

	_, err = NewHTTPClient(filepath.Join(t.TempDir(), "missing.crt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.crt")
	require.NoError(t, os.WriteFile(bad, []byte("not pem"), 0o600))
	_, err = NewHTTPClient(bad)
	assert.ErrorContains(t, err, "failed to parse CA cert")
}

func TestNewHTTPClient_TrustsCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"tls"}`))
	}))
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(caFile, pemCert(srv.Certificate().Raw), 0o600))

	hc, err := NewHTTPClient(caFile)
	require.NoError(t, err)

	var out item
	require.NoError(t, New(srv.URL, WithHTTPClient(hc)).getJSON(context.Background(), "v2/repositories", nil, &out))
	assert.Equal(t, "tls", out.Name)

	plain, err := NewHTTPClient("")
	require.NoError(t, err)
	err = New(srv.URL, WithHTTPClient(plain)).getJSON(context.Background(), "v2/repositories", nil, &out)
	assert.Error(t, err, "unknown authority is rejected")
}
