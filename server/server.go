// Package server wires the HTTP surface of the tic-tac backend: OAuth flow
// endpoints, the API proxy, and health checks.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
	"github.com/dhruv-db/tic-tac-sub000/internal/middleware"
	"github.com/dhruv-db/tic-tac-sub000/internal/oauth"
	"github.com/dhruv-db/tic-tac-sub000/internal/session"
	health "github.com/dhruv-db/tic-tac-sub000/server/health-handlers"
	oauthhandlers "github.com/dhruv-db/tic-tac-sub000/server/oauth-handlers"
	proxy "github.com/dhruv-db/tic-tac-sub000/server/proxy-handlers"
)

const shutdownTimeout = 10 * time.Second

// Start runs the HTTP server until it fails or receives a shutdown signal
func Start(cfg *config.Config) error {
	store, err := newSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close session store", "error", err)
		}
	}()

	provider, err := oauth.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("oauth provider: %w", err)
	}
	svc := oauth.NewService(provider, store)

	mux := http.NewServeMux()
	health.RegisterRoutes(mux, "", cfg)
	oauthhandlers.RegisterRoutes(mux, "/api/oauth", cfg, svc)
	proxy.RegisterRoutes(mux, "/api/proxy", cfg)

	handler := middleware.NewChain(
		middleware.Recover,
		middleware.RequestLogging,
		middleware.CORS,
	).Then(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// newSessionStore builds the store named by the session_backend setting.
// Backends are never mixed: a deployment is either all-memory or all-redis.
func newSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.SessionBackend {
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{cfg.RedisAddr},
		})
		return session.NewRedisStore(client), nil
	case "", "memory":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}
