// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"

	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/pkg/errutil"
)

// DecisionKind is the outcome of a guard check.
type DecisionKind int

// Guard outcomes.
const (
	DecisionAllow DecisionKind = iota
	DecisionRedirect
	DecisionForbidden
)

// Decision tells the serving layer whether to run the handler.
type Decision struct {
	Kind DecisionKind
	// Location is set for DecisionRedirect.
	Location string
}

// Allow runs the handler.
func Allow() Decision { return Decision{Kind: DecisionAllow} }

// RedirectTo discards the request and sends the browser to path.
func RedirectTo(path string) Decision { return Decision{Kind: DecisionRedirect, Location: path} }

// Forbidden discards the request with a 403.
func Forbidden() Decision { return Decision{Kind: DecisionForbidden} }

// Guard decision labels, as counted in metrics.
const (
	guardAllow           = "allow"
	guardUnauthenticated = "unauthenticated"
	guardForbidden       = "forbidden"
	guardTokenExpired    = "token_expired"
	guardTokenError      = "token_error"
)

const (
	loginPath       = "/login"
	msgTokenExpired = "Token expired. Please log in again."
	msgLoggedOut    = "Logged out successfully."
)

// Tokens issues and checks the per-user rotating token.
type Tokens interface {
	Generate(ctx context.Context, username string) (string, error)
	Validate(ctx context.Context, username, token string) bool
}

// Guard protects authenticated routes.
type Guard struct {
	tokens   Tokens
	recorder Recorder
	logger   *slog.Logger
}

// NewGuard creates a Guard. recorder may be nil.
func NewGuard(tokens Tokens, recorder Recorder, logger *slog.Logger) *Guard {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{tokens: tokens, recorder: recorder, logger: logger}
}

// Check decides whether a request carrying s may proceed. logout marks the
// logout action, which skips token validation; an anonymous logout is
// Forbidden while any other anonymous request is sent to the login page.
//
// On Allow the session holds a freshly issued token. A token that fails
// validation, or a failure to issue the next one, logs the session out and
// redirects to the login page. Check never returns an error.
func (g *Guard) Check(ctx context.Context, s *session.Session, logout bool) Decision {
	if !s.Authed {
		if logout {
			g.recorder.RecordGuardDecision(guardForbidden)
			return Forbidden()
		}
		g.recorder.RecordGuardDecision(guardUnauthenticated)
		return RedirectTo(loginPath)
	}

	if !logout && !g.tokens.Validate(ctx, s.Username, s.Token) {
		g.logger.InfoContext(ctx, "session token rejected, logging out", "username", s.Username)
		s.AddFlash(session.FlashInfo, msgTokenExpired)
		logOut(s)
		g.recorder.RecordGuardDecision(guardTokenExpired)
		return RedirectTo(loginPath)
	}

	token, err := g.tokens.Generate(ctx, s.Username)
	if err != nil {
		errutil.LogErrorContext(ctx, g.logger, "token rotation failed, logging out", err)
		logOut(s)
		g.recorder.RecordGuardDecision(guardTokenError)
		return RedirectTo(loginPath)
	}

	s.Token = token
	g.recorder.RecordTokenRotation()
	g.recorder.RecordGuardDecision(guardAllow)
	return Allow()
}

// logOut clears the identity, queues the logout notice and moves the
// session to a new cookie.
func logOut(s *session.Session) {
	s.Clear()
	s.AddFlash(session.FlashInfo, msgLoggedOut)
	s.Regenerate()
}
