// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/pkg/errutil"
)

const (
	msgInvalidLogin      = "Error. Invalid username or password."
	msgAccountLocked     = "Account temporarily locked. Try again later."
	msgPasswordUnchanged = "Password unchanged."
	msgPasswordChanged   = "Password changed successfully."
)

// loginContent refills the username after a failed attempt.
type loginContent struct {
	Username string
}

func (s *Server) login(r *http.Request, sess *session.Session) Response {
	if sess.Authed {
		return redirect("/")
	}
	if r.Method != http.MethodPost {
		return page("login", "Log in", loginContent{})
	}

	ctx := r.Context()
	form, err := parseLoginForm(r)
	if err != nil {
		return forbidden()
	}

	user, err := s.users.Authenticate(ctx, form.Username, form.Password)
	switch {
	case err == nil:
	case errutil.HasCode(err, "AUTH_ACCOUNT_LOCKED"):
		s.logger.WarnContext(ctx, "login refused, account locked", "username", form.Username)
		sess.AddFlash(session.FlashDanger, msgAccountLocked)
		return page("login", "Log in", loginContent{Username: form.Username})
	case errutil.HasCode(err, "AUTH_INVALID_CREDENTIALS"):
		s.logger.InfoContext(ctx, "login failed", "username", form.Username)
		sess.AddFlash(session.FlashDanger, msgInvalidLogin)
		return page("login", "Log in", loginContent{Username: form.Username})
	default:
		errutil.LogErrorContext(ctx, s.logger, "login failed", err)
		return internalError()
	}

	token, err := s.tokens.Generate(ctx, user.Username)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "issue token at login", err)
		return internalError()
	}
	s.recorder.RecordTokenRotation()

	superuser := s.users.IsSuperuser(user.Username)
	sess.Login(user.Username, superuser)
	sess.Token = token
	sess.Regenerate()

	s.logger.InfoContext(ctx, "login succeeded", "username", user.Username, "superuser", superuser)
	return redirect("/")
}

func (s *Server) changePassword(r *http.Request, sess *session.Session) Response {
	if r.Method != http.MethodPost {
		return page("change_password", "Change password", nil)
	}

	ctx := r.Context()
	form, err := parseChangePasswordForm(r)
	if err != nil {
		sess.AddFlash(session.FlashWarning, msgPasswordUnchanged)
		return page("change_password", "Change password", nil)
	}

	username := sess.Username
	if err := s.users.ChangePassword(ctx, username, form.Password); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "change password failed", err)
		return internalError()
	}

	sess.AddFlash(session.FlashSuccess, msgPasswordChanged)
	logOut(sess)
	return redirect(loginPath)
}

func (s *Server) logout(r *http.Request, sess *session.Session) Response {
	s.logger.InfoContext(r.Context(), "logout", "username", sess.Username)
	logOut(sess)
	return redirect(loginPath)
}
