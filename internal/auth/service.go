// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash is verified against when a user doesn't exist so that
// response time doesn't reveal which usernames are registered.
// It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides credential checks and user management.
type Service struct {
	users     UserRepository
	hasher    PasswordHasher
	superuser string
	logger    *slog.Logger
	lockout   int
	now       func() time.Time
}

// NewService creates a Service. superuser is the username of the one account
// allowed to manage other users; it can never be deleted.
func NewService(users UserRepository, hasher PasswordHasher, superuser string) (*Service, error) {
	return NewServiceWithLogger(users, hasher, superuser, slog.Default())
}

// NewServiceWithLogger creates a Service that logs security events to logger.
func NewServiceWithLogger(users UserRepository, hasher PasswordHasher, superuser string, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if superuser == "" {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("superuser username is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger is required")
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		superuser: superuser,
		logger:    logger,
		lockout:   LockoutThreshold,
		now:       time.Now,
	}, nil
}

// SetLockoutThreshold sets how many consecutive failed logins lock an
// account. Zero or less disables lockout, including locks already stored.
func (s *Service) SetLockoutThreshold(n int) {
	s.lockout = n
}

func (s *Service) lockedAt(user *User, now time.Time) bool {
	return s.lockout > 0 && user.IsLockedAt(now)
}

// Superuser returns the configured superuser username.
func (s *Service) Superuser() string {
	return s.superuser
}

// IsSuperuser reports whether username is the configured superuser.
func (s *Service) IsSuperuser(username string) bool {
	return username == s.superuser
}

// Authenticate checks a username/password pair.
// Unknown usernames and wrong passwords both return AUTH_INVALID_CREDENTIALS.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		exists = true
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by username").
			Wrap(lookupErr)
	}

	// Always verify, even for unknown users, to keep timing constant.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("username", username).
			Wrap(verifyErr)
	}

	now := s.now()
	if !exists || !valid {
		if exists && !s.lockedAt(user, now) {
			user.RecordFailure(now, s.lockout)
			if err := s.users.Update(ctx, user); err != nil {
				s.logger.WarnContext(ctx, "failed to record login failure", "username", username, "error", err)
			}
			if s.lockedAt(user, now) {
				s.logger.WarnContext(ctx, "account locked", "username", username, "failed_attempts", user.FailedAttempts)
			}
		}
		return nil, invalidCredentials()
	}

	// Checked after verification to maintain constant time.
	if s.lockedAt(user, now) {
		return nil, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", user.LockedUntil).
			Errorf("account is temporarily locked")
	}

	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		user.RecordSuccess()
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login failures", "username", username, "error", err)
		}
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, err := s.hasher.Hash(password); err == nil {
			if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
				s.logger.WarnContext(ctx, "failed to upgrade password hash", "username", username, "error", err)
			} else {
				user.PasswordHash = newHash
			}
		}
	}

	return user, nil
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
}

// CreateUser creates a user after checking for duplicates and validating
// the username and password.
func (s *Service) CreateUser(ctx context.Context, username, password string) (*User, error) {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, usernameTaken(username)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_CREATE_USER_FAILED").
			With("operation", "check existing username").
			With("username", username).
			Wrap(err)
	}

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := NewUser(username, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, usernameTaken(username)
		}
		return nil, oops.Code("AUTH_CREATE_USER_FAILED").
			With("operation", "persist user").
			With("username", username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user created", "username", username, "user_id", user.ID.String())
	return user, nil
}

func usernameTaken(username string) error {
	return oops.Code("AUTH_USERNAME_TAKEN").
		With("username", username).
		Errorf("username already exists")
}

// ChangePassword sets a new password for username, clears any login lockout
// and revokes the user's rotating token, which forces every open session of
// that user to log in again.
func (s *Service) ChangePassword(ctx context.Context, username, password string) error {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return userLookupError(err, "username", username)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			With("username", username).
			Wrap(err)
	}
	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		user.RecordSuccess()
		if err := s.users.Update(ctx, user); err != nil {
			return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
				With("operation", "clear lockout").
				With("username", username).
				Wrap(err)
		}
	}
	if err := s.users.UpdateTokenHash(ctx, username, ""); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "revoke token").
			With("username", username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password changed", "username", username)
	return nil
}

// GetUser returns the user with the given ID.
func (s *Service) GetUser(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, userLookupError(err, "id", id.String())
	}
	return user, nil
}

// ListUsers returns all users in creation order.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_LIST_USERS_FAILED").Wrap(err)
	}
	return users, nil
}

// DeleteUser removes the user with the given ID. The superuser account
// cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, id ulid.ULID) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return userLookupError(err, "id", id.String())
	}
	if s.IsSuperuser(user.Username) {
		return oops.Code("AUTH_SUPERUSER_PROTECTED").
			With("username", user.Username).
			Errorf("the superuser account cannot be deleted")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return oops.Code("AUTH_DELETE_USER_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "user deleted", "username", user.Username, "user_id", id.String())
	return nil
}

func userLookupError(err error, key string, value any) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_USER_NOT_FOUND").With(key, value).Wrap(err)
	}
	return oops.Code("AUTH_GET_USER_FAILED").With(key, value).Wrap(err)
}
