// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend implements [Backend] using PostgreSQL.
//
// # When to use
//
// Deployments without Redis persist sessions in the console schema instead.
// Expiry is enforced at read time (the query filters on expiresat) and a
// periodic [PostgresBackend.PurgeExpired] sweep removes dead rows.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a new PostgreSQL-backed [Backend].
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

/*
Get retrieves the raw record stored under key, honoring expiry.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - []byte: Serialized record
  - error: ErrNotFound or database errors
*/
func (backend *PostgresBackend) Get(context context.Context, key string) ([]byte, error) {
	const query = `
		SELECT payload
		FROM console.kv_record
		WHERE key = $1 AND expiresat > now()`

	var payload []byte
	err := backend.pool.QueryRow(context, query, key).Scan(&payload)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres_session_get_failed: %w", err)
	}

	return payload, nil
}

/*
Set stores a raw record under key with the given TTL.

Description: Upserts on the primary key so re-stamping LastActivity on every
read stays a single round trip.

Parameters:
  - context: context.Context
  - key: string
  - value: []byte
  - ttl: time.Duration

Returns:
  - error: Persistence failures
*/
func (backend *PostgresBackend) Set(context context.Context, key string, value []byte, ttl time.Duration) error {
	const query = `
		INSERT INTO console.kv_record (key, payload, expiresat, updatedat)
		VALUES ($1, $2, now() + $3::interval, now())
		ON CONFLICT (key)
		DO UPDATE SET payload = EXCLUDED.payload, expiresat = EXCLUDED.expiresat, updatedat = now()`

	interval := fmt.Sprintf("%d milliseconds", ttl.Milliseconds())
	if _, err := backend.pool.Exec(context, query, key, value, interval); err != nil {
		return fmt.Errorf("postgres_session_set_failed: %w", err)
	}

	return nil
}

/*
Delete removes the record under key. Missing keys are not an error.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - error: Database errors
*/
func (backend *PostgresBackend) Delete(context context.Context, key string) error {
	const query = `DELETE FROM console.kv_record WHERE key = $1`

	if _, err := backend.pool.Exec(context, query, key); err != nil {
		return fmt.Errorf("postgres_session_delete_failed: %w", err)
	}

	return nil
}

/*
PurgeExpired physically removes records whose expiry is in the past.

Description: Run periodically from main — read-time filtering keeps
correctness either way, this just reclaims space.

Parameters:
  - context: context.Context

Returns:
  - int64: Number of rows removed
  - error: Database errors
*/
func (backend *PostgresBackend) PurgeExpired(context context.Context) (int64, error) {
	const query = `DELETE FROM console.kv_record WHERE expiresat <= now()`

	tag, err := backend.pool.Exec(context, query)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_purge_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// compile-time interface check
var _ Backend = (*PostgresBackend)(nil)
