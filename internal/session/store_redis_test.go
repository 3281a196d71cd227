// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbach/mercato/internal/session"
)

func newRedisBackend(t *testing.T) (*session.RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewRedisBackend(client), server
}

/*
TestRedisBackend_RoundTrip verifies the raw KV contract against a real
protocol implementation.
*/
func TestRedisBackend_RoundTrip(t *testing.T) {
	backend, _ := newRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "console:session:s-1", []byte("payload"), time.Hour))

	value, err := backend.Get(ctx, "console:session:s-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), value)
}

/*
TestRedisBackend_MissingKey verifies the ErrNotFound mapping for redis.Nil.
*/
func TestRedisBackend_MissingKey(t *testing.T) {
	backend, _ := newRedisBackend(t)

	_, err := backend.Get(context.Background(), "console:session:absent")

	assert.ErrorIs(t, err, session.ErrNotFound)
}

/*
TestRedisBackend_TTLExpiry verifies that records die with their TTL.
*/
func TestRedisBackend_TTLExpiry(t *testing.T) {
	backend, server := newRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "console:session:s-1", []byte("payload"), time.Minute))

	server.FastForward(2 * time.Minute)

	_, err := backend.Get(ctx, "console:session:s-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

/*
TestRedisBackend_DeleteIsIdempotent verifies that deleting a missing key is
not an error.
*/
func TestRedisBackend_DeleteIsIdempotent(t *testing.T) {
	backend, _ := newRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "console:session:s-1", []byte("payload"), time.Hour))
	assert.NoError(t, backend.Delete(ctx, "console:session:s-1"))
	assert.NoError(t, backend.Delete(ctx, "console:session:s-1"))
}

/*
TestStore_OnRedis runs the full policy layer against the redis backend:
round trip, expiry via the store's own clock, and the notice read-once flow.
*/
func TestStore_OnRedis(t *testing.T) {
	backend, _ := newRedisBackend(t)
	logger := slog.New(slog.DiscardHandler)
	store := session.NewStore(backend, logger)

	ctx := context.Background()
	stored := store.Set(ctx, operatorSession("s-1"), false)
	require.NotNil(t, stored)

	loaded := store.Get(ctx, "s-1")
	require.NotNil(t, loaded)
	assert.Equal(t, "bearer-token-1", loaded.Token)

	notices := session.NewNoticeStore(backend, logger)
	notices.Put(ctx, "s-1", session.PleaseLoginNotice)

	message, found := notices.Take(ctx, "s-1")
	require.True(t, found)
	assert.Equal(t, session.PleaseLoginNotice, message)

	// Read-once: the second take finds nothing.
	_, found = notices.Take(ctx, "s-1")
	assert.False(t, found)
}
