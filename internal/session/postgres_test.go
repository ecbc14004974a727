// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/reconweb/internal/session"
	"github.com/holomush/reconweb/pkg/errutil"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestPostgresStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT state FROM web_sessions`).
			WithArgs("k").
			WillReturnRows(pgxmock.NewRows([]string{"state"}).
				AddRow([]byte(`{"authed":true,"username":"alice","token":"t"}`)))

		st, err := session.NewPostgresStore(mock).Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, st.Authed)
		assert.Equal(t, "alice", st.Username)
		assert.Equal(t, "t", st.Token)
	})

	t.Run("missing or expired", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT state FROM web_sessions`).
			WithArgs("k").
			WillReturnRows(pgxmock.NewRows([]string{"state"}))

		_, err := session.NewPostgresStore(mock).Get(ctx, "k")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("corrupt state", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT state FROM web_sessions`).
			WithArgs("k").
			WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow([]byte(`not json`)))

		_, err := session.NewPostgresStore(mock).Get(ctx, "k")
		errutil.AssertErrorCode(t, err, "SESSION_DECODE_FAILED")
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT state FROM web_sessions`).
			WithArgs("k").
			WillReturnError(errors.New("connection refused"))

		_, err := session.NewPostgresStore(mock).Get(ctx, "k")
		errutil.AssertErrorCode(t, err, "SESSION_LOAD_FAILED")
	})
}

func TestPostgresStore_PutDeleteSweep(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	s := session.NewPostgresStore(mock)

	mock.ExpectExec(`INSERT INTO web_sessions .* ON CONFLICT \(key_hash\) DO UPDATE`).
		WithArgs("k", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM web_sessions WHERE key_hash`).
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM web_sessions WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, s.Put(ctx, "k", session.State{Authed: true}, time.Hour))
	require.NoError(t, s.Delete(ctx, "k"))
	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPostgresStore_PutFailure(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec(`INSERT INTO web_sessions`).
		WithArgs("k", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	err := session.NewPostgresStore(mock).Put(context.Background(), "k", session.State{Authed: true}, time.Hour)
	errutil.AssertErrorCode(t, err, "SESSION_SAVE_FAILED")
}
