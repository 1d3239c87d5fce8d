package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/HubViewer/internal/middleware"
)

// NewRouter constructs the HubViewer API handler.
//
// Routes:
//
//	POST /api/login               → authHandler.Login (JSON only)
//	POST /api/logout              → authHandler.Logout
//	POST /api/delete-auth-cookie  → authHandler.DeleteAuthCookie
//	GET  /api/session             → authHandler.Session
//	GET  /api/proxy/*             → proxyHandler.Proxy
//	GET  /metrics                 → metricsHandler (when non-nil)
func NewRouter(
	authHandler *AuthHandler,
	proxyHandler *ProxyHandler,
	metricsHandler http.Handler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.With(chiMiddleware.AllowContentType("application/json")).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/delete-auth-cookie", authHandler.DeleteAuthCookie)
		r.Get("/session", authHandler.Session)
		r.Get("/proxy/*", proxyHandler.Proxy)
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	return r
}
