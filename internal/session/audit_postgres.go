// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvbach/mercato/pkg/uuidv7"
)

// PostgresAuditRecorder implements [AuditRecorder] against the console schema.
//
// The trail answers "who tried to log in, from where, and did it work" —
// the first question asked after any credential-stuffing incident.
type PostgresAuditRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditRecorder creates a PostgreSQL-backed [AuditRecorder].
func NewPostgresAuditRecorder(pool *pgxpool.Pool) *PostgresAuditRecorder {
	return &PostgresAuditRecorder{pool: pool}
}

/*
RecordLogin appends one attempt to the console.login_audit table.

Parameters:
  - context: context.Context
  - attempt: LoginAttempt

Returns:
  - error: Persistence failures
*/
func (recorder *PostgresAuditRecorder) RecordLogin(context context.Context, attempt LoginAttempt) error {
	const query = `
		INSERT INTO console.login_audit (
			id, email, ipaddress, useragent, success, createdat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := recorder.pool.Exec(context, query,
		uuidv7.New(),
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("postgres_login_audit_failed: %w", err)
	}

	return nil
}

// compile-time interface check
var _ AuditRecorder = (*PostgresAuditRecorder)(nil)
