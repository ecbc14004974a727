// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/reconweb/internal/auth"
	authpg "github.com/holomush/reconweb/internal/auth/postgres"
	"github.com/holomush/reconweb/internal/config"
	"github.com/holomush/reconweb/internal/observability"
	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/internal/store"
)

// Deps holds the factories the commands use to reach external systems.
// Tests replace them; nil fields get the production implementation.
type Deps struct {
	// OpenBackend connects the user repository and session store.
	OpenBackend func(ctx context.Context, cfg *config.Config) (*Backend, error)

	NewMigrator func(databaseURL string) (Migrator, error)

	Listen func(network, address string) (net.Listener, error)

	ObservabilityServerFactory func(addr string, gatherer prometheus.Gatherer, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ReadPassword prompts for a password without echo.
	ReadPassword func(prompt string) (string, error)
}

// Backend is the persistent state ReconWeb runs on.
type Backend struct {
	Users    auth.UserRepository
	Sessions session.Store
	// Ready reports whether the database answers.
	Ready observability.ReadinessChecker
	// Close releases every connection.
	Close func()
}

// Migrator is the schema management the migrate command drives.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer serves metrics and health probes.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.OpenBackend == nil {
		out.OpenBackend = openBackend
	}
	if out.NewMigrator == nil {
		out.NewMigrator = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.Listen == nil {
		out.Listen = net.Listen
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, gatherer prometheus.Gatherer, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, gatherer, ready, logger)
		}
	}
	if out.ReadPassword == nil {
		out.ReadPassword = readPasswordFromTerminal
	}
	return &out
}

// redisPingTimeout bounds the startup check of the redis session backend.
const redisPingTimeout = 5 * time.Second

// openBackend connects to PostgreSQL and, for the redis session backend,
// to redis.
func openBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	pool, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		Users: authpg.NewUserRepository(pool),
		Ready: store.Readiness(pool, 2*time.Second),
		Close: pool.Close,
	}

	switch cfg.Session.Backend {
	case config.BackendMemory:
		b.Sessions = session.NewMemoryStore()
	case config.BackendPostgres:
		b.Sessions = session.NewPostgresStore(pool)
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			pool.Close()
			return nil, oops.Code("SESSION_BACKEND_UNAVAILABLE").
				With("backend", config.BackendRedis).
				With("addr", cfg.Redis.Addr).
				Wrap(err)
		}
		b.Sessions = session.NewRedisStore(rdb)
		b.Close = func() {
			_ = rdb.Close()
			pool.Close()
		}
	default:
		pool.Close()
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "session.backend").
			Errorf("unknown session backend %q", cfg.Session.Backend)
	}
	return b, nil
}
