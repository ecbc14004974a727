// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Login lockout defaults.
const (
	// LockoutThreshold is the default number of consecutive failures that
	// locks an account. Zero disables lockout.
	LockoutThreshold = 7

	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration = 15 * time.Minute
)

// usernameRegex admits lowercase ASCII letters only.
var usernameRegex = regexp.MustCompile(`^[a-z]+$`)

// User is a ReconWeb account.
type User struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	// TokenHash is the sha256 of the id of the last rotating token issued
	// for this user. Empty when no token is live.
	TokenHash      string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User. passwordHash must already be hashed.
func NewUser(username, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername checks that username is non-empty and made of lowercase letters.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("username", username).
			Errorf("username can only contain lowercase letters")
	}
	return nil
}

// IsLocked returns true if the user is currently locked out.
func (u *User) IsLocked() bool {
	return u.IsLockedAt(time.Now())
}

// IsLockedAt reports whether the user would be locked out at t.
func (u *User) IsLockedAt(t time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(t)
}

// RecordFailure counts a failed login at now and locks the account for
// LockoutDuration when the count reaches threshold. A threshold of zero or
// less never locks. Failures while locked are not counted, so they cannot
// extend the lock, and a lock that has run out starts a fresh count.
func (u *User) RecordFailure(now time.Time, threshold int) {
	if u.IsLockedAt(now) {
		return
	}
	if u.LockedUntil != nil {
		u.FailedAttempts = 0
		u.LockedUntil = nil
	}
	u.FailedAttempts++
	if threshold > 0 && u.FailedAttempts >= threshold {
		until := now.UTC().Add(LockoutDuration)
		u.LockedUntil = &until
	}
	u.UpdatedAt = now.UTC()
}

// RecordSuccess resets the failure counter and lockout.
func (u *User) RecordSuccess() {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = time.Now().UTC()
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateUsername if the username is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// List returns all users in creation order.
	List(ctx context.Context) ([]*User, error)

	// Update persists the lockout counters of an existing user.
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces the password hash of a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateTokenHash replaces the stored rotating-token hash for username.
	UpdateTokenHash(ctx context.Context, username, tokenHash string) error

	// Delete removes a user.
	Delete(ctx context.Context, id ulid.ULID) error
}
