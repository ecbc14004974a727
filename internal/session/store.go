// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/samber/oops"
)

// ErrNotFound is returned by stores for unknown or expired keys.
var ErrNotFound = errors.New("session not found")

// Store persists session state by key hash.
type Store interface {
	// Get returns the state stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (State, error)
	// Put stores st under key for ttl.
	Put(ctx context.Context, key string, st State, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need expired entries removed.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// HashKey derives the store key for a cookie token.
func HashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func encodeState(st State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}

func decodeState(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	return st, nil
}
