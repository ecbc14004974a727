// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web serves the ReconWeb pages.
//
// Every request runs through the same pipeline: the session is loaded from
// its cookie, protected routes pass the Guard (which validates and rotates
// the per-user token), the route handler returns a Response, and the
// session is saved before the response is written. Handlers never touch the
// http.ResponseWriter.
package web
