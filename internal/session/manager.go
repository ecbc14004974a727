// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/reconweb/pkg/errutil"
)

// cookieTokenBytes is the entropy of a session cookie.
const cookieTokenBytes = 32

// ManagerConfig configures cookie handling.
type ManagerConfig struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
	// Logger receives unreadable-session reports. Defaults to slog.Default().
	Logger *slog.Logger
}

// Manager moves session state between the cookie and a Store.
type Manager struct {
	store Store
	cfg   ManagerConfig
}

// NewManager creates a Manager.
func NewManager(store Store, cfg ManagerConfig) (*Manager, error) {
	if store == nil {
		return nil, oops.Code("SESSION_INVALID_MANAGER").Errorf("session store is required")
	}
	if cfg.CookieName == "" {
		return nil, oops.Code("SESSION_INVALID_MANAGER").Errorf("cookie name is required")
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code("SESSION_INVALID_MANAGER").
			With("ttl", cfg.TTL).
			Errorf("session ttl must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{store: store, cfg: cfg}, nil
}

// Load returns the session for r. A missing cookie, or one whose state is
// gone, yields an empty new session. State that no longer decodes is
// deleted and replaced by an empty new session.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil || c.Value == "" {
		return New(), nil
	}

	ctx := r.Context()
	key := HashKey(c.Value)
	st, err := m.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return New(), nil
	}
	if errutil.HasCode(err, "SESSION_DECODE_FAILED") {
		m.cfg.Logger.WarnContext(ctx, "discarding unreadable session", errutil.Attrs(err)...)
		if delErr := m.store.Delete(ctx, key); delErr != nil {
			errutil.LogErrorContext(ctx, m.cfg.Logger, "unreadable session delete failed", delErr)
		}
		return New(), nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_LOAD_FAILED").Wrap(err)
	}
	return &Session{State: st, token: c.Value}, nil
}

// Save persists s and writes the matching cookie to w. It must run before
// the response header is written.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.regenerate && !s.IsNew() {
		if err := m.store.Delete(ctx, HashKey(s.token)); err != nil {
			return oops.Code("SESSION_SAVE_FAILED").With("operation", "drop old key").Wrap(err)
		}
		s.token = ""
		s.regenerate = false
	}

	if s.IsZero() {
		if !s.IsNew() {
			if err := m.store.Delete(ctx, HashKey(s.token)); err != nil {
				return oops.Code("SESSION_SAVE_FAILED").With("operation", "delete empty session").Wrap(err)
			}
			s.token = ""
			m.expireCookie(w)
		}
		return nil
	}

	if s.IsNew() {
		tok, err := newCookieToken()
		if err != nil {
			return err
		}
		s.token = tok
	}

	if err := m.store.Put(ctx, HashKey(s.token), s.State, m.cfg.TTL); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").With("operation", "put").Wrap(err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    s.token,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func newCookieToken() (string, error) {
	b := make([]byte, cookieTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_TOKEN_FAILED").With("operation", "crypto/rand.Read").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
