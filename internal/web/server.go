// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/reconweb/internal/auth"
	"github.com/holomush/reconweb/internal/engine"
	"github.com/holomush/reconweb/internal/logging"
	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/internal/tracing"
	"github.com/holomush/reconweb/internal/web/templates"
	"github.com/holomush/reconweb/pkg/errutil"
)

// Users is the account management the handlers need.
type Users interface {
	Authenticate(ctx context.Context, username, password string) (*auth.User, error)
	CreateUser(ctx context.Context, username, password string) (*auth.User, error)
	ChangePassword(ctx context.Context, username, password string) error
	GetUser(ctx context.Context, id ulid.ULID) (*auth.User, error)
	ListUsers(ctx context.Context) ([]*auth.User, error)
	DeleteUser(ctx context.Context, id ulid.ULID) error
	IsSuperuser(username string) bool
}

// Engine is the recon-ng API surface the pages use.
type Engine interface {
	APIKeys(ctx context.Context) ([]engine.APIKey, error)
	AddAPIKey(ctx context.Context, name, value string) error
	RemoveAPIKey(ctx context.Context, name string) error
	ModulesIndex(ctx context.Context) ([]engine.Module, error)
	Reload(ctx context.Context) error
}

// Deps are the collaborators of a Server.
type Deps struct {
	Users    Users
	Tokens   Tokens
	Sessions *session.Manager
	Engine   Engine
	// Recorder receives metrics. Optional.
	Recorder Recorder
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Tracer defaults to the global otel provider.
	Tracer trace.TracerProvider
}

// Server routes ReconWeb requests.
type Server struct {
	users    Users
	tokens   Tokens
	sessions *session.Manager
	engine   Engine
	guard    *Guard
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.TracerProvider
	mux      *http.ServeMux
}

// NewServer validates deps and registers every route.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("users service is required")
	case deps.Tokens == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("token service is required")
	case deps.Sessions == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("session manager is required")
	case deps.Engine == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("engine client is required")
	}

	s := &Server{
		users:    deps.Users,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		engine:   deps.Engine,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		mux:      http.NewServeMux(),
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.guard = NewGuard(s.tokens, s.recorder, s.logger)
	s.routes()
	return s, nil
}

// Handler returns the router wrapped in tracing and request logging.
func (s *Server) Handler() http.Handler {
	return tracing.Middleware(s.tracer, logging.Middleware(s.logger, s.mux))
}

// access is the protection level of a route.
type access int

const (
	accessPublic access = iota
	accessAuthed
	accessLogout
	accessSuperuser
)

// handlerFunc is a route body. It may mutate the session; the serving layer
// persists it.
type handlerFunc func(r *http.Request, sess *session.Session) Response

func (s *Server) routes() {
	s.handle("GET /{$}", "root", accessAuthed, s.root)
	s.handle("GET /recon-ng/cli", "cli", accessAuthed, s.cli)
	s.handle("GET /recon-ng/run-module", "run_module", accessAuthed, s.runModule)
	s.handle("GET /recon-ng/run-command", "run_command", accessAuthed, s.runCommand)
	s.handle("GET /recon-ng/api-keys", "api_keys", accessAuthed, s.apiKeys)
	s.handle("POST /recon-ng/api-keys", "api_keys", accessAuthed, s.apiKeys)
	s.handle("GET /recon-ng/marketplace", "marketplace", accessAuthed, s.marketplace)
	s.handle("GET /recon-ng/refresh", "refresh", accessAuthed, s.refresh)

	s.handle("GET /users", "users", accessSuperuser, s.listUsers)
	s.handle("GET /add-user", "add_user", accessSuperuser, s.addUser)
	s.handle("POST /add-user", "add_user", accessSuperuser, s.addUser)
	s.handle("GET /switch-user/{id}", "switch_user", accessSuperuser, s.switchUser)
	s.handle("GET /delete-user/{id}", "delete_user", accessSuperuser, s.deleteUser)

	s.handle("GET /login", "login", accessPublic, s.login)
	s.handle("POST /login", "login", accessPublic, s.login)
	s.handle("GET /change-password", "change_password", accessAuthed, s.changePassword)
	s.handle("POST /change-password", "change_password", accessAuthed, s.changePassword)
	s.handle("GET /logout", "logout", accessLogout, s.logout)

	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(templates.Static())))
}

func (s *Server) handle(pattern, route string, level access, h handlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, route, level, h)
	})
}

// serve runs the request pipeline for one route.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, route string, level access, h handlerFunc) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.SetName(route)
	span.SetAttributes(attribute.String("http.route", route))

	sess, err := s.sessions.Load(r)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "session load failed", err)
		s.write(w, r, route, nil, internalError())
		return
	}

	resp := s.dispatch(w, r, sess, level, h)

	body, err := s.render(ctx, sess, resp)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "page render failed", err)
		resp = internalError()
		body = nil
	}

	if err := s.sessions.Save(ctx, w, sess); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "session save failed", err)
		s.write(w, r, route, nil, internalError())
		return
	}

	s.write(w, r, route, body, resp)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, sess *session.Session, level access, h handlerFunc) Response {
	if level != accessPublic {
		d := s.guard.Check(r.Context(), sess, level == accessLogout)
		switch d.Kind {
		case DecisionRedirect:
			return redirect(d.Location)
		case DecisionForbidden:
			return forbidden()
		}
		if level == accessSuperuser && !sess.Superuser {
			return notFound()
		}
	}

	if r.Method == http.MethodPost {
		if err := parseForm(w, r); err != nil {
			s.logger.InfoContext(r.Context(), "malformed form", "error", err)
			return badRequest()
		}
	}
	return h(r, sess)
}

// render executes the page for resp, popping the queued flashes into it.
// Redirects and error responses leave the flashes queued.
func (s *Server) render(ctx context.Context, sess *session.Session, resp Response) ([]byte, error) {
	if resp.Location != "" {
		return nil, nil
	}

	view := templates.View{
		Title:         resp.Title,
		Authed:        sess.Authed,
		Username:      sess.Username,
		RealUsername:  sess.RealUsername,
		Superuser:     sess.Superuser,
		Impersonating: sess.Impersonating(),
	}
	name := resp.Page
	if name == "" {
		name = templates.ErrorPage
		view.Title = http.StatusText(resp.Status)
		view.Content = templates.ErrorContent{Status: resp.Status, Text: http.StatusText(resp.Status)}
	} else {
		view.Content = resp.Content
		view.Flashes = sess.PopFlashes()
	}

	var buf bytes.Buffer
	if err := renderPage(ctx, &buf, name, view); err != nil {
		sess.Flashes = append(view.Flashes, sess.Flashes...)
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPage(ctx context.Context, buf *bytes.Buffer, name string, view templates.View) error {
	component, err := templates.Page(name, view)
	if err != nil {
		return err
	}
	if err := component.Render(ctx, buf); err != nil {
		return oops.Code("TEMPLATE_RENDER_FAILED").With("page", name).Wrap(err)
	}
	return nil
}

// write sends resp. A nil body for a non-redirect falls back to a plain
// status text so a broken template cannot hide the status.
func (s *Server) write(w http.ResponseWriter, r *http.Request, route string, body []byte, resp Response) {
	defer s.recorder.RecordRequest(route, resp.Status)

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	if resp.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.Status))
	}

	w.Header().Set("Cache-Control", "no-store")
	if resp.Location != "" {
		http.Redirect(w, r, resp.Location, resp.Status)
		return
	}
	if body == nil {
		http.Error(w, http.StatusText(resp.Status), resp.Status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(body)
}
