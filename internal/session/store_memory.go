// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend implements [Backend] with an in-process map.
//
// It backs unit tests and the degraded "storage unavailable" mode, where
// sessions survive for the life of the process only.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryBackend creates an empty in-memory [Backend].
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook for TTL behavior.
func (backend *MemoryBackend) SetClock(now func() time.Time) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.now = now
}

// Get returns the record under key, honoring expiry.
func (backend *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	record, found := backend.records[key]
	if !found {
		return nil, ErrNotFound
	}

	if backend.now().After(record.expiresAt) {
		delete(backend.records, key)
		return nil, ErrNotFound
	}

	// Copy out so callers cannot mutate the stored slice.
	value := make([]byte, len(record.value))
	copy(value, record.value)
	return value, nil
}

// Set stores the record under key with the given TTL.
func (backend *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	backend.records[key] = memoryRecord{
		value:     stored,
		expiresAt: backend.now().Add(ttl),
	}
	return nil
}

// Delete removes the record under key. Idempotent.
func (backend *MemoryBackend) Delete(_ context.Context, key string) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	delete(backend.records, key)
	return nil
}

// Len reports the number of live records. Test helper.
func (backend *MemoryBackend) Len() int {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	return len(backend.records)
}

// compile-time interface check
var _ Backend = (*MemoryBackend)(nil)
