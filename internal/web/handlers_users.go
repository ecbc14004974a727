// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/reconweb/internal/auth"
	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/pkg/errutil"
)

const (
	msgUsernameTaken    = "Username already exist."
	msgUsernameInvalid  = "Username can only contain lowercase letters."
	msgUserAdded        = "User successfully added."
	msgSwitchSame       = "Unable to switch to the same user."
	msgUserSwitched     = "User successfully switched."
	msgSuperuserProtect = "Unable to delete a superuser."
	msgUserDeleted      = "User successfully deleted."
)

// userRow is one line of the user table.
type userRow struct {
	ID        ulid.ULID
	Username  string
	CreatedAt time.Time
	Superuser bool
	// Active marks the identity the session currently acts as.
	Active bool
}

type usersContent struct {
	Users []userRow
}

type addUserContent struct {
	Username string
}

func (s *Server) listUsers(r *http.Request, sess *session.Session) Response {
	ctx := r.Context()
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "list users failed", err)
		return internalError()
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			ID:        u.ID,
			Username:  u.Username,
			CreatedAt: u.CreatedAt,
			Superuser: s.users.IsSuperuser(u.Username),
			Active:    u.Username == sess.Username,
		})
	}
	return page("users", "Users", usersContent{Users: rows})
}

func (s *Server) addUser(r *http.Request, sess *session.Session) Response {
	if r.Method != http.MethodPost {
		return page("add_user", "Add user", addUserContent{})
	}

	form, err := parseAddUserForm(r)
	if err != nil {
		return page("add_user", "Add user", addUserContent{Username: form.Username})
	}

	ctx := r.Context()
	_, err = s.users.CreateUser(ctx, form.Username, form.Password)
	switch {
	case err == nil:
	case errutil.HasCode(err, "AUTH_USERNAME_TAKEN"):
		sess.AddFlash(session.FlashDanger, msgUsernameTaken)
		return page("add_user", "Add user", addUserContent{Username: form.Username})
	case errutil.HasCode(err, "AUTH_INVALID_USERNAME"):
		sess.AddFlash(session.FlashDanger, msgUsernameInvalid)
		return page("add_user", "Add user", addUserContent{Username: form.Username})
	default:
		errutil.LogErrorContext(ctx, s.logger, "add user failed", err)
		return internalError()
	}

	sess.AddFlash(session.FlashSuccess, msgUserAdded)
	return redirect("/users")
}

func (s *Server) switchUser(r *http.Request, sess *session.Session) Response {
	ctx := r.Context()
	target, resp, ok := s.lookupUser(ctx, r.PathValue("id"))
	if !ok {
		return resp
	}

	if target.Username == sess.Username {
		sess.AddFlash(session.FlashDanger, msgSwitchSame)
		return redirect("/")
	}

	token, err := s.tokens.Generate(ctx, target.Username)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "issue token for switched user", err)
		return internalError()
	}
	s.recorder.RecordTokenRotation()

	s.logger.InfoContext(ctx, "user switched",
		"real_username", sess.RealUsername,
		"from", sess.Username,
		"to", target.Username)
	sess.Username = target.Username
	sess.Token = token
	sess.AddFlash(session.FlashSuccess, msgUserSwitched)
	return redirect("/")
}

func (s *Server) deleteUser(r *http.Request, sess *session.Session) Response {
	ctx := r.Context()
	target, resp, ok := s.lookupUser(ctx, r.PathValue("id"))
	if !ok {
		return resp
	}

	err := s.users.DeleteUser(ctx, target.ID)
	switch {
	case err == nil:
	case errutil.HasCode(err, "AUTH_SUPERUSER_PROTECTED"):
		sess.AddFlash(session.FlashDanger, msgSuperuserProtect)
		return redirect("/users")
	case errutil.HasCode(err, "AUTH_USER_NOT_FOUND"):
		return notFound()
	default:
		errutil.LogErrorContext(ctx, s.logger, "delete user failed", err)
		return internalError()
	}

	sess.AddFlash(session.FlashSuccess, msgUserDeleted)
	return redirect("/users")
}

// lookupUser resolves a user id from the path. An id that does not parse
// and an unknown user both give 404.
func (s *Server) lookupUser(ctx context.Context, raw string) (*auth.User, Response, bool) {
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return nil, notFound(), false
	}
	user, err := s.users.GetUser(ctx, id)
	switch {
	case err == nil:
		return user, Response{}, true
	case errutil.HasCode(err, "AUTH_USER_NOT_FOUND"):
		return nil, notFound(), false
	default:
		errutil.LogErrorContext(ctx, s.logger, "look up user failed", err)
		return nil, internalError(), false
	}
}
