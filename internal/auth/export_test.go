// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "time"

// SetClock replaces the token service clock.
func (s *TokenService) SetClock(now func() time.Time) {
	s.now = now
}

// SetClock replaces the service clock used for lockout decisions.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
