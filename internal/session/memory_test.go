// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	st := State{Authed: true, Username: "alice", Flashes: []Flash{{Category: FlashInfo, Message: "hi"}}}
	require.NoError(t, m.Put(ctx, "k1", st, time.Minute))

	got, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	got.Flashes[0].Message = "mutated"
	again, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Flashes[0].Message, "store does not share memory with callers")

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Delete(ctx, "k1"))
	_, err = m.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, m.Delete(ctx, "k1"), "deleting twice is fine")
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, "short", State{Authed: true}, time.Second))
	require.NoError(t, m.Put(ctx, "long", State{Authed: true}, time.Hour))

	now = now.Add(2 * time.Second)

	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Put(ctx, "short2", State{Authed: true}, time.Second))
	now = now.Add(2 * time.Second)

	n, err := m.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, m.Len())
}
