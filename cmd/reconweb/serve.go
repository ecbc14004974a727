// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/reconweb/internal/auth"
	"github.com/holomush/reconweb/internal/engine"
	"github.com/holomush/reconweb/internal/observability"
	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/internal/tracing"
	"github.com/holomush/reconweb/internal/web"
	"github.com/holomush/reconweb/pkg/errutil"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// serveFlagKeys maps serve flags onto config keys.
var serveFlagKeys = map[string]string{
	"addr":            "http.addr",
	"metrics-addr":    "metrics.addr",
	"log-format":      "log.format",
	"session-backend": "session.backend",
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps, load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Run the ReconWeb HTTP server. Settings come from the config file,
RECONWEB_* environment variables and the flags below, later ones winning.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, deps, load)
		},
	}

	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().String("session-backend", "postgres", "session store (memory, postgres or redis)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *Deps, load configLoader) error {
	cfg, err := load(cmd.Flags(), serveFlagKeys)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Format, cmd.ErrOrStderr())
	logger.Info("starting reconweb",
		"addr", cfg.HTTP.Addr,
		"session_backend", cfg.Session.Backend,
		"engine_url", cfg.Engine.URL)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Setup(ctx, tracing.Config{ServiceName: serviceName, Version: version, Endpoint: cfg.Tracing.Endpoint})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			errutil.LogError(logger, "tracer shutdown failed", err)
		}
	}()

	backend, err := deps.OpenBackend(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open backend").Wrap(err)
	}
	defer backend.Close()
	logger.Info("connected to database")

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	users, err := auth.NewServiceWithLogger(backend.Users, auth.NewArgon2idHasher(), cfg.Auth.Superuser, logger)
	if err != nil {
		return err
	}
	users.SetLockoutThreshold(cfg.Auth.LockoutThreshold)
	logger.Info("accounts ready", "superuser", users.Superuser(), "lockout_threshold", cfg.Auth.LockoutThreshold)
	tokens, err := auth.NewTokenService(backend.Users, []byte(cfg.Auth.TokenSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(backend.Sessions, session.ManagerConfig{
		CookieName: cfg.HTTP.CookieName,
		Secure:     cfg.HTTP.CookieSecure,
		TTL:        cfg.HTTP.SessionTTL,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	client, err := engine.NewClient(engine.Config{
		BaseURL:  cfg.Engine.URL,
		APIKey:   cfg.Engine.APIKey,
		Timeout:  cfg.Engine.Timeout,
		Retries:  cfg.Engine.Retries,
		Observer: metrics.RecordEngineCall,
	})
	if err != nil {
		return err
	}

	srv, err := web.NewServer(web.Deps{
		Users:    users,
		Tokens:   tokens,
		Sessions: sessions,
		Engine:   client,
		Recorder: metrics,
		Logger:   logger,
		Tracer:   tp,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	var background sync.WaitGroup
	defer func() {
		cancel()
		background.Wait()
	}()
	if sweeper, ok := backend.Sessions.(session.Sweeper); ok && cfg.Session.SweepInterval > 0 {
		background.Go(func() {
			session.RunSweeper(ctx, sweeper, cfg.Session.SweepInterval, logger)
		})
	}

	var obsServer ObservabilityServer
	var obsErrChan <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, registry, backend.Ready, logger)
		obsErrChan, err = obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	listener, err := deps.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	cmd.Println("ReconWeb listening on " + listener.Addr().String())
	logger.Info("reconweb ready", "addr", listener.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serveErr:
		runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case err, ok := <-obsErrChan:
		if ok && err != nil {
			runErr = oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "http server shutdown", err)
	}
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}
