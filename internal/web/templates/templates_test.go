// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package templates_test

import (
	"bytes"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/internal/web/templates"
	"github.com/holomush/reconweb/pkg/errutil"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"add_user", "api_keys", "change_password", "cli", "error",
		"login", "marketplace", "run_command", "run_module", "users",
	}, templates.Names())
}

func TestPage_Layout(t *testing.T) {
	c, err := templates.Page(templates.ErrorPage, templates.View{
		Title:         "Not Found",
		Authed:        true,
		Username:      "alice",
		RealUsername:  "admin",
		Superuser:     true,
		Impersonating: true,
		Flashes:       []session.Flash{{Category: session.FlashDanger, Message: "<b>careful</b>"}},
		Content:       templates.ErrorContent{Status: 404, Text: "Not Found"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Render(t.Context(), &buf))
	out := buf.String()

	assert.Contains(t, out, "<title>Not Found | ReconWeb</title>")
	assert.Contains(t, out, `<span id="active-user">alice</span>`)
	assert.Contains(t, out, "switched from admin")
	assert.Contains(t, out, `href="/users"`)
	assert.Contains(t, out, `class="flash flash-danger"`)
	assert.Contains(t, out, "&lt;b&gt;careful&lt;/b&gt;")
	assert.Contains(t, out, "<h1>404</h1>")
}

func TestPage_Anonymous(t *testing.T) {
	c, err := templates.Page("login", templates.View{Content: struct{ Username string }{"bob"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Render(t.Context(), &buf))
	assert.NotContains(t, buf.String(), "Log out")
	assert.Contains(t, buf.String(), `value="bob"`)
}

func TestPage_Unknown(t *testing.T) {
	_, err := templates.Page("missing", templates.View{})
	errutil.AssertErrorCode(t, err, "TEMPLATE_NOT_FOUND")
}

func TestStatic(t *testing.T) {
	css, err := fs.ReadFile(templates.Static(), "style.css")
	require.NoError(t, err)
	assert.Contains(t, string(css), ".flash-info")
}
