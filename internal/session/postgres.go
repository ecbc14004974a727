// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/reconweb/internal/store"
)

// PostgresStore keeps sessions in the web_sessions table.
type PostgresStore struct {
	db store.DBTX
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db store.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get implements Store. Expired rows are treated as missing.
func (p *PostgresStore) Get(ctx context.Context, key string) (State, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `
		SELECT state FROM web_sessions
		WHERE key_hash = $1 AND expires_at > now()
	`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, oops.Code("SESSION_LOAD_FAILED").
			With("operation", "select web_session").
			Wrap(err)
	}
	return decodeState(data)
}

// Put implements Store.
func (p *PostgresStore) Put(ctx context.Context, key string, st State, ttl time.Duration) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = p.db.Exec(ctx, `
		INSERT INTO web_sessions (key_hash, state, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_hash) DO UPDATE
		SET state = EXCLUDED.state, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`, key, data, now.Add(ttl), now)
	if err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "upsert web_session").
			Wrap(err)
	}
	return nil
}

// Delete implements Store.
func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM web_sessions WHERE key_hash = $1`, key); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			Wrap(err)
	}
	return nil
}

// DeleteExpired implements Sweeper.
func (p *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired web_sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

var (
	_ Store   = (*PostgresStore)(nil)
	_ Sweeper = (*PostgresStore)(nil)
)
