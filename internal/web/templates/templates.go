// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package templates holds the embedded ReconWeb pages and stylesheet.
package templates

import (
	"embed"
	"html/template"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/a-h/templ"
	"github.com/samber/oops"

	"github.com/holomush/reconweb/internal/session"
)

//go:embed layout.html pages/*.html
var files embed.FS

//go:embed static
var static embed.FS

// ErrorPage renders status responses (403, 404, 500).
const ErrorPage = "error"

// View is the data every page is executed with.
type View struct {
	Title         string
	Authed        bool
	Username      string
	RealUsername  string
	Superuser     bool
	Impersonating bool
	Flashes       []session.Flash
	// Content is the page-specific payload.
	Content any
}

// ErrorContent is the Content of ErrorPage.
type ErrorContent struct {
	Status int
	Text   string
}

var pages = mustParse()

func mustParse() map[string]*template.Template {
	names, err := fs.Glob(files, "pages/*.html")
	if err != nil {
		panic(err)
	}
	out := make(map[string]*template.Template, len(names))
	for _, file := range names {
		name := strings.TrimSuffix(path.Base(file), ".html")
		out[name] = template.Must(template.New("layout.html").ParseFS(files, "layout.html", file))
	}
	return out
}

// Page returns the named page wrapped in the layout.
func Page(name string, v View) (templ.Component, error) {
	t, ok := pages[name]
	if !ok {
		return nil, oops.Code("TEMPLATE_NOT_FOUND").With("page", name).Errorf("unknown page %q", name)
	}
	return templ.FromGoHTML(t, v), nil
}

// Names lists the known pages in sorted order.
func Names() []string {
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Static returns the stylesheet tree, rooted so that "style.css" is at the top.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
