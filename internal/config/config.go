// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads ReconWeb settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/reconweb/internal/auth"
	"github.com/holomush/reconweb/internal/logging"
	"github.com/holomush/reconweb/internal/xdg"
)

// EnvPrefix prefixes every environment override, e.g.
// RECONWEB_AUTH__TOKEN_SECRET sets auth.token_secret.
const EnvPrefix = "RECONWEB_"

// Session backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the complete ReconWeb configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Engine   EngineConfig   `koanf:"engine"`
	Tracing  TracingConfig  `koanf:"tracing"`
}

// HTTPConfig configures the web listener and the session cookie.
type HTTPConfig struct {
	Addr         string        `koanf:"addr"`
	CookieName   string        `koanf:"cookie_name"`
	CookieSecure bool          `koanf:"cookie_secure"`
	SessionTTL   time.Duration `koanf:"session_ttl"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig selects the log output format.
type LogConfig struct {
	Format string `koanf:"format"`
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SessionConfig selects where session state lives.
type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RedisConfig is used by the redis session backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AuthConfig configures accounts and the rotating token.
type AuthConfig struct {
	Superuser   string        `koanf:"superuser"`
	TokenSecret string        `koanf:"token_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	// LockoutThreshold is the number of consecutive failed logins that
	// lock an account. Zero disables lockout.
	LockoutThreshold int `koanf:"lockout_threshold"`
}

// EngineConfig points at the recon-ng REST API.
type EngineConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
	Retries uint64        `koanf:"retries"`
}

// TracingConfig configures span export. An empty Endpoint keeps spans in
// process, so logs still carry trace ids.
type TracingConfig struct {
	Endpoint string `koanf:"endpoint"`
}

// Defaults returns the built-in settings keyed by their dotted path.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":              ":8080",
		"http.cookie_name":       "reconweb_session",
		"http.cookie_secure":     false,
		"http.session_ttl":       "24h",
		"metrics.addr":           "127.0.0.1:9100",
		"log.format":             logging.FormatJSON,
		"database.url":           "",
		"session.backend":        BackendPostgres,
		"session.sweep_interval": "10m",
		"redis.addr":             "127.0.0.1:6379",
		"redis.password":         "",
		"redis.db":               0,
		"auth.superuser":         "admin",
		"auth.token_secret":      "",
		"auth.token_ttl":         "24h",
		"auth.lockout_threshold": auth.LockoutThreshold,
		"engine.url":             "http://127.0.0.1:5000",
		"engine.api_key":         "",
		"engine.timeout":         "10s",
		"engine.retries":         2,
		"tracing.endpoint":       "",
	}
}

// Options controls Load.
type Options struct {
	// File is an explicit config path. When empty the XDG default is used
	// if it exists.
	File string
	// Flags are applied last. Only flags the user set override earlier
	// layers.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys. Flags missing from the map
	// are ignored.
	FlagKeys map[string]string
}

// Load builds a Config from every layer. Callers validate what they need:
// Validate for the server, ValidateDatabase for maintenance commands.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}

	path := opts.File
	if path == "" {
		if p, ok := xdg.DefaultConfigFile(); ok {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("layer", "file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider("DATABASE_URL", ".", databaseURLKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", EnvKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	return &cfg, nil
}

// EnvKey maps RECONWEB_SECTION__KEY to section.key. Single underscores are
// kept because they appear inside key names.
func EnvKey(name string) string {
	name = strings.TrimPrefix(name, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

func databaseURLKey(name string) string {
	if name != "DATABASE_URL" {
		return ""
	}
	return "database.url"
}

// ValidateDatabase checks only what commands that touch the database need.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "is required")
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case len(c.Auth.TokenSecret) < auth.MinTokenSecretLen:
		return invalid("auth.token_secret", "must be at least %d bytes", auth.MinTokenSecretLen)
	case auth.ValidateUsername(c.Auth.Superuser) != nil:
		return invalid("auth.superuser", "may only contain lowercase letters")
	case c.Auth.TokenTTL <= 0:
		return invalid("auth.token_ttl", "must be positive")
	case c.Auth.LockoutThreshold < 0:
		return invalid("auth.lockout_threshold", "cannot be negative")
	case c.HTTP.Addr == "":
		return invalid("http.addr", "is required")
	case c.HTTP.CookieName == "":
		return invalid("http.cookie_name", "is required")
	case c.HTTP.SessionTTL <= 0:
		return invalid("http.session_ttl", "must be positive")
	case c.Database.URL == "":
		return invalid("database.url", "is required")
	case c.Engine.Timeout <= 0:
		return invalid("engine.timeout", "must be positive")
	}

	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Wrap(err)
	}

	switch c.Session.Backend {
	case BackendMemory, BackendPostgres:
		if c.Session.SweepInterval < 0 {
			return invalid("session.sweep_interval", "cannot be negative")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return invalid("redis.addr", "is required for the redis session backend")
		}
	default:
		return invalid("session.backend", "must be one of memory, postgres, redis; got %q", c.Session.Backend)
	}

	u, err := url.Parse(c.Engine.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("engine.url", "must be an absolute http(s) url")
	}
	if c.Tracing.Endpoint != "" {
		u, err := url.Parse(c.Tracing.Endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid("tracing.endpoint", "must be an absolute http(s) url")
		}
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}
