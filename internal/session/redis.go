// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// RedisKeyPrefix namespaces session keys.
const RedisKeyPrefix = "reconweb:session:"

// RedisStore keeps sessions in redis. Expiry is handled by key TTLs.
type RedisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (State, error) {
	data, err := s.rdb.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, oops.Code("SESSION_LOAD_FAILED").
			With("operation", "redis get").
			Wrap(err)
	}
	return decodeState(data)
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key string, st State, ttl time.Duration) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, RedisKeyPrefix+key, data, ttl).Err(); err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "redis set").
			Wrap(err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, RedisKeyPrefix+key).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "redis del").
			Wrap(err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
