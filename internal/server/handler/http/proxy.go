package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Forwarder relays a registry-relative path upstream.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, proxyPath string)
}

// ProxyHandler serves GET /api/proxy/*.
type ProxyHandler struct {
	Gateway Forwarder
}

// Proxy passes the wildcard part of the route to the gateway.
func (h *ProxyHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	h.Gateway.Forward(w, r, chi.URLParam(r, "*"))
}
