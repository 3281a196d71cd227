// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements [Backend] using Redis.
//
// This is the production default: session records carry their own TTL, so
// Redis expiry doubles as a garbage collector for abandoned sessions.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a new Redis-backed [Backend].
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

/*
Get retrieves the raw record stored under key.

Description: Returns ErrNotFound when the key is absent or already expired.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - []byte: Serialized record
  - error: ErrNotFound or connectivity errors
*/
func (backend *RedisBackend) Get(context context.Context, key string) ([]byte, error) {

	// Fetch the raw record
	raw, err := backend.client.Get(context, key).Bytes()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis_session_get_failed: %w", err)
	}

	// Return the raw record
	return raw, nil
}

/*
Set stores a raw record under key with the given TTL.

Parameters:
  - context: context.Context
  - key: string
  - value: []byte
  - ttl: time.Duration

Returns:
  - error: Persistence failures
*/
func (backend *RedisBackend) Set(context context.Context, key string, value []byte, ttl time.Duration) error {

	// Store the record with its TTL
	if err := backend.client.Set(context, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_session_set_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
Delete removes the record under key. Missing keys are not an error.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - error: Connectivity failures
*/
func (backend *RedisBackend) Delete(context context.Context, key string) error {

	// Delete the record
	if err := backend.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_session_delete_failed: %w", err)
	}

	// Return nil on success
	return nil
}
