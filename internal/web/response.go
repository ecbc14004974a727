// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"
	"net/url"
	"strings"
)

// Response is what a handler asks the serving layer to send.
type Response struct {
	Status int
	// Location makes the response a redirect.
	Location string
	// Page names the template to render. Empty with a non-redirect status
	// renders the error page.
	Page    string
	Title   string
	Content any
}

func redirect(location string) Response {
	return Response{Status: http.StatusFound, Location: location}
}

func page(name, title string, content any) Response {
	return Response{Status: http.StatusOK, Page: name, Title: title, Content: content}
}

func errorResponse(status int) Response {
	return Response{Status: status}
}

func notFound() Response      { return errorResponse(http.StatusNotFound) }
func forbidden() Response     { return errorResponse(http.StatusForbidden) }
func badRequest() Response    { return errorResponse(http.StatusBadRequest) }
func internalError() Response { return errorResponse(http.StatusInternalServerError) }

// localPath returns target when it is a path on this site. Scheme-relative
// ("//host") and backslash forms are rejected because browsers treat them
// as other origins.
func localPath(target string) (string, bool) {
	if target == "" || target[0] != '/' {
		return "", false
	}
	if len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return "", false
	}
	if strings.ContainsAny(target, "\r\n") {
		return "", false
	}
	return target, true
}

// refererPath returns the path and query of the Referer header when it
// points at the host that served r.
func refererPath(r *http.Request) (string, bool) {
	ref := r.Referer()
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host != r.Host {
		return "", false
	}
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return localPath(target)
}
