// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbach/mercato/internal/platform/constants"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/session"
)

// fakeClock is a shared, advanceable time source for store and backend.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(delta time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(delta)
}

func newTestStore(t *testing.T, options ...session.StoreOption) (*session.Store, *session.MemoryBackend, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	backend := session.NewMemoryBackend()
	backend.SetClock(clock.Now)

	options = append([]session.StoreOption{session.WithClock(clock.Now)}, options...)
	store := session.NewStore(backend, slog.New(slog.DiscardHandler), options...)
	return store, backend, clock
}

func operatorSession(id string) *session.Session {
	return &session.Session{
		ID:    id,
		User:  &session.User{ID: "u-1", Role: sec.RoleAdmin, FullName: "Ada Operator", Email: "ada@mercato.app"},
		Token: "bearer-token-1",
	}
}

/*
TestStore_RoundTrip verifies that a stored session is read back fully populated.
*/
func TestStore_RoundTrip(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	stored := store.Set(ctx, operatorSession("s-1"), false)
	require.NotNil(t, stored)
	assert.Equal(t, clock.Now().Add(session.SessionTTL).UnixMilli(), stored.ExpiresAtMs)

	loaded := store.Get(ctx, "s-1")
	require.NotNil(t, loaded)
	assert.Equal(t, "s-1", loaded.ID)
	assert.Equal(t, "bearer-token-1", loaded.Token)
	assert.Equal(t, sec.RoleAdmin, loaded.User.Role)
	assert.False(t, loaded.RememberMe)
}

/*
TestStore_RememberMeExtendsTTL verifies the 7-day lifetime for remembered logins.
*/
func TestStore_RememberMeExtendsTTL(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	stored := store.Set(ctx, operatorSession("s-1"), true)

	require.NotNil(t, stored)
	assert.True(t, stored.RememberMe)
	assert.Equal(t, clock.Now().Add(session.RememberedSessionTTL).UnixMilli(), stored.ExpiresAtMs)
}

/*
TestStore_ExpiredSessionFailsClosed covers the stale-record scenario: a session
written 25 hours ago reads as absent, and the dead record is destroyed.
*/
func TestStore_ExpiredSessionFailsClosed(t *testing.T) {
	store, backend, clock := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, operatorSession("s-1"), false)
	require.Equal(t, 1, backend.Len())

	clock.Advance(25 * time.Hour)

	assert.Nil(t, store.Get(ctx, "s-1"))
	assert.Equal(t, 0, backend.Len(), "expired record must be destroyed, not left behind")
}

/*
TestStore_CorruptRecordFailsClosed verifies that unreadable storage bytes are
treated as no session and destroyed on sight.
*/
func TestStore_CorruptRecordFailsClosed(t *testing.T) {
	store, backend, _ := newTestStore(t)
	ctx := context.Background()

	key := constants.KeyPrefixSession + "s-1"
	require.NoError(t, backend.Set(ctx, key, []byte("{not json"), time.Hour))

	assert.Nil(t, store.Get(ctx, "s-1"))
	assert.Equal(t, 0, backend.Len())
}

/*
TestStore_PartialRecordFailsClosed verifies the all-or-nothing invariant:
valid JSON missing mandatory fields still reads as absent.
*/
func TestStore_PartialRecordFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing_token", `{"id":"s-1","user":{"id":"u-1","role":"admin"},"expires_at":99999999999999}`},
		{"missing_user", `{"id":"s-1","token":"tok","expires_at":99999999999999}`},
		{"missing_expiry", `{"id":"s-1","user":{"id":"u-1"},"token":"tok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend, _ := newTestStore(t)
			ctx := context.Background()

			key := constants.KeyPrefixSession + "s-1"
			require.NoError(t, backend.Set(ctx, key, []byte(tt.raw), time.Hour))

			assert.Nil(t, store.Get(ctx, "s-1"))
			assert.Equal(t, 0, backend.Len())
		})
	}
}

/*
TestStore_GetStampsActivity verifies that every successful read refreshes the
LastActivity stamp.
*/
func TestStore_GetStampsActivity(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, operatorSession("s-1"), false)

	clock.Advance(10 * time.Minute)
	loaded := store.Get(ctx, "s-1")

	require.NotNil(t, loaded)
	assert.Equal(t, clock.Now().UnixMilli(), loaded.LastActivityMs)
}

/*
TestStore_CheckInactivity verifies the idle policy: reads do not reset the
stamp, idle sessions beyond the limit are flagged, and remembered sessions
are permanently exempt.
*/
func TestStore_CheckInactivity(t *testing.T) {
	t.Run("fresh session is active", func(t *testing.T) {
		store, _, _ := newTestStore(t)
		store.Set(context.Background(), operatorSession("s-1"), false)

		assert.False(t, store.CheckInactivity(context.Background(), "s-1"))
	})

	t.Run("idle beyond the limit", func(t *testing.T) {
		store, _, clock := newTestStore(t)
		store.Set(context.Background(), operatorSession("s-1"), false)

		clock.Advance(31 * time.Minute)

		assert.True(t, store.CheckInactivity(context.Background(), "s-1"))
	})

	t.Run("checking does not refresh the stamp", func(t *testing.T) {
		store, _, clock := newTestStore(t)
		store.Set(context.Background(), operatorSession("s-1"), false)

		// Repeated checks inside the window must not keep the session alive.
		clock.Advance(20 * time.Minute)
		assert.False(t, store.CheckInactivity(context.Background(), "s-1"))
		clock.Advance(20 * time.Minute)
		assert.True(t, store.CheckInactivity(context.Background(), "s-1"))
	})

	t.Run("remembered sessions are exempt", func(t *testing.T) {
		store, _, clock := newTestStore(t)
		store.Set(context.Background(), operatorSession("s-1"), true)

		clock.Advance(48 * time.Hour)

		assert.False(t, store.CheckInactivity(context.Background(), "s-1"))
	})

	t.Run("absent session counts as inactive", func(t *testing.T) {
		store, _, _ := newTestStore(t)
		assert.True(t, store.CheckInactivity(context.Background(), "never-existed"))
	})
}

/*
TestStore_ClearIsIdempotent verifies that clearing twice (or clearing a
session that never existed) is harmless.
*/
func TestStore_ClearIsIdempotent(t *testing.T) {
	store, backend, _ := newTestStore(t)
	ctx := context.Background()

	store.Set(ctx, operatorSession("s-1"), false)

	store.Clear(ctx, "s-1")
	store.Clear(ctx, "s-1")
	store.Clear(ctx, "never-existed")

	assert.Nil(t, store.Get(ctx, "s-1"))
	assert.Equal(t, 0, backend.Len())
}

// failingBackend simulates a storage outage on writes.
type failingBackend struct {
	session.Backend
}

func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

/*
TestStore_SetSurvivesPersistenceFailure verifies the optimistic write path:
a storage outage is logged, not raised, and the caller keeps the in-memory
session.
*/
func TestStore_SetSurvivesPersistenceFailure(t *testing.T) {
	backend := failingBackend{Backend: session.NewMemoryBackend()}
	store := session.NewStore(backend, slog.New(slog.DiscardHandler))

	stored := store.Set(context.Background(), operatorSession("s-1"), false)

	require.NotNil(t, stored)
	assert.Equal(t, "s-1", stored.ID)
	assert.Positive(t, stored.ExpiresAtMs)
}
