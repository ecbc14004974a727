// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/holomush/reconweb/internal/engine"
	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/pkg/errutil"
)

const (
	marketplacePath = "/recon-ng/marketplace"

	msgEngineFailed  = "Recon-ng request failed."
	msgRefreshed     = "Recon-ng refreshed successfully."
	msgInvalidFilter = "Invalid module filter."
)

type commandContent struct {
	Command string
}

type apiKeysContent struct {
	Keys []engine.APIKey
}

type marketplaceContent struct {
	Modules []engine.Module
	Filter  string
}

func (s *Server) root(*http.Request, *session.Session) Response {
	return redirect("/recon-ng/run-module")
}

func (s *Server) cli(*http.Request, *session.Session) Response {
	return page("cli", "Console", nil)
}

func (s *Server) runModule(*http.Request, *session.Session) Response {
	return page("run_module", "Run module", nil)
}

func (s *Server) runCommand(r *http.Request, _ *session.Session) Response {
	command := r.URL.Query().Get("command")
	if command == "" {
		return notFound()
	}
	return page("run_command", "Command", commandContent{Command: command})
}

// engineFailed logs err and tells the user; the page still renders.
func (s *Server) engineFailed(ctx context.Context, sess *session.Session, err error) {
	errutil.LogErrorContext(ctx, s.logger, "engine request failed", err)
	sess.AddFlash(session.FlashDanger, msgEngineFailed)
}

func (s *Server) apiKeys(r *http.Request, sess *session.Session) Response {
	ctx := r.Context()
	keys, err := s.engine.APIKeys(ctx)
	if err != nil {
		s.engineFailed(ctx, sess, err)
		return page("api_keys", "API keys", apiKeysContent{})
	}
	if r.Method != http.MethodPost {
		return page("api_keys", "API keys", apiKeysContent{Keys: keys})
	}

	form := parseAPIKeysForm(r)
	if err := s.applyKeyChanges(ctx, sess, form, keys); err != nil {
		s.engineFailed(ctx, sess, err)
	}

	keys, err = s.engine.APIKeys(ctx)
	if err != nil {
		s.engineFailed(ctx, sess, err)
		return page("api_keys", "API keys", apiKeysContent{})
	}
	return page("api_keys", "API keys", apiKeysContent{Keys: keys})
}

// applyKeyChanges pushes the edits in form to the engine, flashing each one
// that succeeds. It stops at the first engine error.
func (s *Server) applyKeyChanges(ctx context.Context, sess *session.Session, form apiKeysForm, existing []engine.APIKey) error {
	for _, c := range form.changes(existing) {
		if c.Remove {
			if err := s.engine.RemoveAPIKey(ctx, c.Name); err != nil {
				return err
			}
			sess.AddFlash(session.FlashInfo, fmt.Sprintf("Removed API key: %s", c.Name))
			continue
		}
		if err := s.engine.AddAPIKey(ctx, c.Name, c.Value); err != nil {
			return err
		}
		sess.AddFlash(session.FlashInfo, fmt.Sprintf("Updated API key: %s", c.Name))
	}

	if key, ok := form.addition(); ok {
		if err := s.engine.AddAPIKey(ctx, key.Name, key.Value); err != nil {
			return err
		}
		sess.AddFlash(session.FlashInfo, fmt.Sprintf("Added API key: %s", key.Name))
	}
	return nil
}

func (s *Server) marketplace(r *http.Request, sess *session.Session) Response {
	query := r.URL.Query()
	if query.Get("refresh") == "1" {
		return redirect("/recon-ng/refresh?next=" + marketplacePath)
	}

	ctx := r.Context()
	filter := query.Get("filter")
	content := marketplaceContent{Filter: filter}

	modules, err := s.engine.ModulesIndex(ctx)
	if err != nil {
		s.engineFailed(ctx, sess, err)
		return page("marketplace", "Marketplace", content)
	}
	engine.SortModules(modules)

	filtered, err := engine.FilterModules(modules, filter)
	if err != nil {
		s.logger.InfoContext(ctx, "invalid module filter", "filter", filter, "error", err)
		sess.AddFlash(session.FlashDanger, msgInvalidFilter)
		filtered = modules
	}
	content.Modules = filtered
	return page("marketplace", "Marketplace", content)
}

func (s *Server) refresh(r *http.Request, sess *session.Session) Response {
	ctx := r.Context()
	if err := s.engine.Reload(ctx); err != nil {
		s.engineFailed(ctx, sess, err)
	} else {
		sess.AddFlash(session.FlashInfo, msgRefreshed)
	}

	if next, ok := localPath(r.URL.Query().Get("next")); ok {
		return redirect(next)
	}
	if ref, ok := refererPath(r); ok {
		return redirect(ref)
	}
	return redirect("/")
}
