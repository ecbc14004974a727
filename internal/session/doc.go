// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session keeps per-browser state on the server.
//
// The browser holds only a random cookie token. Stores are keyed by the
// sha256 of that token, so reading a store never yields a usable cookie.
// A Manager loads the State for a request and saves it afterwards; handlers
// only see the typed State.
package session
