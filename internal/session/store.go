// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// # Persistence Contract

// ErrNotFound is returned by a [Backend] when no record exists under a key.
var ErrNotFound = errors.New("session: record not found")

// Backend defines the durable key-value persistence contract.
//
// # Why an interface?
//
// The console treats the backing store (Redis in production, PostgreSQL where
// no Redis is available, memory in tests) as interchangeable. Policy —
// expiry, inactivity, fail-closed reads — lives entirely in [Store].
type Backend interface {

	/*
		Get returns the raw record stored under key.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - []byte: Serialized record
		  - error: ErrNotFound when absent, connectivity errors otherwise
	*/
	Get(context context.Context, key string) ([]byte, error)

	/*
		Set stores a raw record under key with a time-to-live.

		Parameters:
		  - context: context.Context
		  - key: string
		  - value: []byte
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, key string, value []byte, ttl time.Duration) error

	/*
		Delete removes the record under key. Deleting a missing key is not an error.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - error: Connectivity failures
	*/
	Delete(context context.Context, key string) error
}

// # Store Definition

// Store applies the session lifecycle policy on top of a [Backend].
//
// # Fail Closed
//
// Every ambiguity — missing record, corrupt JSON, partial fields, past
// expiry — is resolved as "no session", and the offending record is cleared
// so it can never be observed twice.
type Store struct {
	backend         Backend
	log             *slog.Logger
	inactivityLimit time.Duration
	now             func() time.Time
}

// StoreOption customizes a [Store] at construction time.
type StoreOption func(*Store)

// WithInactivityLimit overrides the idle threshold for non-remembered sessions.
func WithInactivityLimit(limit time.Duration) StoreOption {
	return func(store *Store) {
		if limit > 0 {
			store.inactivityLimit = limit
		}
	}
}

// WithClock overrides the time source. Used by tests to simulate elapsed time.
func WithClock(now func() time.Time) StoreOption {
	return func(store *Store) {
		if now != nil {
			store.now = now
		}
	}
}

// NewStore constructs a [Store] bound to the given backend.
func NewStore(backend Backend, logger *slog.Logger, options ...StoreOption) *Store {
	store := &Store{
		backend:         backend,
		log:             logger,
		inactivityLimit: DefaultInactivityLimit,
		now:             time.Now,
	}

	for _, option := range options {
		option(store)
	}

	return store
}

// # Operations

/*
Get reads the session stored under sessionID.

Description: Returns nil when the record is absent, expired, corrupt, or
partial — expired and corrupt records are destroyed on sight. On a
successful read, LastActivity is stamped to now and persisted before the
session is returned.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: Fully populated session, or nil (never a partial record)
*/
func (store *Store) Get(context context.Context, sessionID string) *Session {
	record := store.load(context, sessionID)
	if record == nil {
		return nil
	}

	// Refresh the activity stamp and write it through before returning.
	record.LastActivityMs = store.now().UnixMilli()
	store.persist(context, record)

	return record
}

/*
Set creates or replaces the session stored under its ID.

Description: Computes ExpiresAt = now + (rememberMe ? 7 days : 24 hours),
stamps LastActivity = now, and persists the record. A persistence failure is
logged and swallowed — the caller receives the in-memory session unchanged
and proceeds optimistically rather than crashing the console.

Parameters:
  - context: context.Context
  - session: *Session
  - rememberMe: bool

Returns:
  - *Session: The stored (or optimistically retained) record
*/
func (store *Store) Set(context context.Context, session *Session, rememberMe bool) *Session {
	if session == nil {
		return nil
	}

	ttl := SessionTTL
	if rememberMe {
		ttl = RememberedSessionTTL
	}

	currentTime := store.now()
	session.RememberMe = rememberMe
	session.ExpiresAtMs = currentTime.Add(ttl).UnixMilli()
	session.LastActivityMs = currentTime.UnixMilli()

	store.persist(context, session)
	return session
}

/*
Clear removes the session stored under sessionID. Idempotent.

Parameters:
  - context: context.Context
  - sessionID: string
*/
func (store *Store) Clear(context context.Context, sessionID string) {
	if err := store.backend.Delete(context, sessionKey(sessionID)); err != nil {
		store.log.Warn("session_clear_failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	}
}

/*
CheckInactivity reports whether the session should be logged out for idleness.

Description: True when no session exists, when the record carries no activity
stamp, or when the idle time exceeds the configured limit. Remembered
sessions are exempt — once such a session exists this always returns false.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - bool: true means "log this session out"
*/
func (store *Store) CheckInactivity(context context.Context, sessionID string) bool {
	record := store.load(context, sessionID)
	if record == nil {
		return true
	}

	if record.RememberMe {
		return false
	}

	if record.LastActivityMs <= 0 {
		return true
	}

	idleFor := store.now().UnixMilli() - record.LastActivityMs
	return idleFor > store.inactivityLimit.Milliseconds()
}

// # Internal Plumbing

// load reads and validates a record without stamping activity.
//
// CheckInactivity depends on this separation: a read that refreshed
// LastActivity would make every session look permanently active.
func (store *Store) load(context context.Context, sessionID string) *Session {
	if sessionID == "" {
		return nil
	}

	raw, err := store.backend.Get(context, sessionKey(sessionID))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			// Storage outage degrades to "session absent" rather than crashing.
			store.log.Error("session_backend_read_failed",
				slog.String("session_id", sessionID),
				slog.Any("error", err),
			)
		}
		return nil
	}

	record := &Session{}
	if err := json.Unmarshal(raw, record); err != nil || !record.wellFormed() {
		// Corrupt or partial record: destroy it so it is never seen again.
		store.Clear(context, sessionID)
		return nil
	}

	if record.ExpiresAtMs <= store.now().UnixMilli() {
		store.Clear(context, sessionID)
		return nil
	}

	return record
}

// persist serializes and writes a record, logging (not raising) failures.
func (store *Store) persist(context context.Context, session *Session) {
	raw, err := json.Marshal(session)
	if err != nil {
		store.log.Error("session_marshal_failed", slog.Any("error", err))
		return
	}

	remaining := time.Duration(session.ExpiresAtMs-store.now().UnixMilli()) * time.Millisecond
	if remaining <= 0 {
		return
	}

	if err := store.backend.Set(context, sessionKey(session.ID), raw, remaining); err != nil {
		store.log.Warn("session_persist_failed",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}
}
