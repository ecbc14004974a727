// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

// Session is the State of one request plus the cookie token it was loaded
// with.
type Session struct {
	State

	token      string
	regenerate bool
}

// New returns an empty session with no cookie.
func New() *Session {
	return &Session{}
}

// IsNew reports whether the session was not loaded from a store.
func (s *Session) IsNew() bool {
	return s.token == ""
}

// Regenerate asks the Manager to move the state to a fresh cookie token on
// save and to delete the old entry. Call it on privilege changes.
func (s *Session) Regenerate() {
	s.regenerate = true
}
