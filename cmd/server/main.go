// Package main starts the HubViewer HTTPS server: the registry proxy, the
// login endpoints and the Prometheus metrics endpoint.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/HubViewer/internal/broker"
	"github.com/atinyakov/HubViewer/internal/config"
	"github.com/atinyakov/HubViewer/internal/envelope"
	"github.com/atinyakov/HubViewer/internal/logger"
	"github.com/atinyakov/HubViewer/internal/metrics"
	"github.com/atinyakov/HubViewer/internal/proxy"
	"github.com/atinyakov/HubViewer/internal/server/handler/http"
	"github.com/atinyakov/HubViewer/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	cipher, err := envelope.New(options.SecretKey)
	if err != nil {
		zapLogger.Fatal("cannot init envelope cipher", zap.Error(err))
	}

	tokenBroker := broker.New(options.UpstreamURL, zapLogger, broker.WithAuthScheme(options.AuthScheme))
	m := metrics.New()
	gateway := proxy.New(tokenBroker, cipher, zapLogger, proxy.WithMetrics(m))

	authService := service.NewAuthService(tokenBroker, cipher)

	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger, Metrics: m}
	proxyHandler := &http.ProxyHandler{Gateway: gateway}

	router := http.NewRouter(authHandler, proxyHandler, m.Handler(), zapLogger)

	cert, err := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
	if err != nil {
		zapLogger.Fatal("failed to load server TLS cert/key, run tools/certgen for a development pair",
			zap.String("cert", options.TLSCert), zap.Error(err))
	}

	server := &nethttp.Server{
		Addr:    options.Port,
		Handler: router,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("starting HTTPS server",
		zap.String("addr", options.Port),
		zap.String("upstream", options.UpstreamURL))
	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
