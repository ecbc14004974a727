// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Rotating token configuration.
const (
	// TokenIDBytes is the size of the random id embedded in each token.
	TokenIDBytes = 32

	// MinTokenSecretLen is the minimum accepted signing secret length.
	MinTokenSecretLen = 32
)

// TokenStore is the subset of UserRepository the TokenService needs.
type TokenStore interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateTokenHash(ctx context.Context, username, tokenHash string) error
}

// TokenService issues and checks the per-user rotating token.
//
// A token is an HS256 JWT whose subject is the username and whose jti is a
// fresh random id. Only the sha256 of the newest id is kept on the user, so
// issuing a token invalidates every token issued before it.
type TokenService struct {
	store  TokenStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. ttl bounds the lifetime of a single
// token; zero disables expiry.
func NewTokenService(store TokenStore, secret []byte, ttl time.Duration) (*TokenService, error) {
	if store == nil {
		return nil, oops.Code("TOKEN_INVALID_SERVICE").Errorf("token store is required")
	}
	if len(secret) < MinTokenSecretLen {
		return nil, oops.Code("TOKEN_INVALID_SERVICE").
			With("min_length", MinTokenSecretLen).
			Errorf("token secret is too short")
	}
	if ttl < 0 {
		return nil, oops.Code("TOKEN_INVALID_SERVICE").Errorf("token ttl cannot be negative")
	}
	return &TokenService{store: store, secret: secret, ttl: ttl, now: time.Now}, nil
}

// Generate issues a new token for username, replacing the previous one.
func (s *TokenService) Generate(ctx context.Context, username string) (string, error) {
	idBytes := make([]byte, TokenIDBytes)
	if _, err := rand.Read(idBytes); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	id := hex.EncodeToString(idBytes)

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:  username,
		ID:       id,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "sign token").
			Wrap(err)
	}

	if err := s.store.UpdateTokenHash(ctx, username, hashTokenID(id)); err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "store token hash").
			With("username", username).
			Wrap(err)
	}

	return signed, nil
}

// Validate reports whether token is the newest token issued for username.
// It fails closed: any parse, signature, expiry, subject or storage problem
// yields false.
func (s *TokenService) Validate(ctx context.Context, username, token string) bool {
	if username == "" || token == "" {
		return false
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(username),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || claims.ID == "" {
		return false
	}

	user, err := s.store.GetByUsername(ctx, username)
	if err != nil || user.TokenHash == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(hashTokenID(claims.ID)), []byte(user.TokenHash)) == 1
}

// Revoke clears the stored token hash so no token validates for username
// until the next Generate.
func (s *TokenService) Revoke(ctx context.Context, username string) error {
	if err := s.store.UpdateTokenHash(ctx, username, ""); err != nil {
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("username", username).
			Wrap(err)
	}
	return nil
}

func hashTokenID(id string) string {
	h := sha256.Sum256([]byte(id))
	return hex.EncodeToString(h[:])
}
