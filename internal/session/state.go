// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

// Flash categories, rendered as alert styles.
const (
	FlashInfo    = "info"
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// State is everything ReconWeb remembers about a browser between requests.
type State struct {
	Authed bool `json:"authed,omitempty"`
	// Username is the active identity. It differs from RealUsername while the
	// superuser is switched to another account.
	Username     string  `json:"username,omitempty"`
	RealUsername string  `json:"real_username,omitempty"`
	Superuser    bool    `json:"superuser,omitempty"`
	Token        string  `json:"token,omitempty"`
	Flashes      []Flash `json:"flashes,omitempty"`
}

// AddFlash queues a message for the next rendered page.
func (s *State) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
}

// PopFlashes returns and clears the queued messages.
func (s *State) PopFlashes() []Flash {
	f := s.Flashes
	s.Flashes = nil
	return f
}

// Login marks the state as authenticated for username.
func (s *State) Login(username string, superuser bool) {
	s.Authed = true
	s.Username = username
	s.RealUsername = username
	s.Superuser = superuser
	s.Token = ""
}

// Clear drops the identity and token. Queued flashes are kept.
func (s *State) Clear() {
	flashes := s.Flashes
	*s = State{Flashes: flashes}
}

// Impersonating reports whether the active identity differs from the one
// that logged in.
func (s *State) Impersonating() bool {
	return s.Authed && s.Username != s.RealUsername
}

// IsZero reports whether there is nothing worth persisting.
func (s *State) IsZero() bool {
	return !s.Authed && s.Username == "" && s.Token == "" && len(s.Flashes) == 0
}
