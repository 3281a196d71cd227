// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

/*
Package fetch implements the generic remote-collection state machine behind
every console screen.

Each screen holds one [Collection] per remote resource. The collection tracks
exactly three observable facts — the latest data snapshot, whether a load is
in flight, and the current error string — and guarantees that out-of-order
completions can never clobber newer ones.

State Machine:

	IDLE ──Load──> LOADING ──success──> READY
	                  │                   │
	                  └───failure──> ERROR (stale data stays visible)

Ordering:

Every load is issued with a monotonically increasing sequence number. A
completion commits only if it still carries the latest issued sequence;
anything older is discarded wholesale. Cancellation of superseded loads is
an optimization, never a correctness requirement.
*/
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nvbach/mercato/internal/platform/apperr"
)

// Fetcher loads one snapshot of the remote resource.
//
// The deps slice carries the dependency values the collection was keyed on
// (filters, date ranges, bearer identity) in the order they were passed to
// [Collection.Load].
type Fetcher[T any] func(ctx context.Context, deps []any) (*T, error)

// State is the observable snapshot of a [Collection].
type State[T any] struct {
	// Data is the last successfully loaded snapshot. It survives later
	// failures so screens can keep rendering stale rows under an error.
	Data *T `json:"data"`
	// Loading reports whether a load is currently in flight.
	Loading bool `json:"loading"`
	// Err is the client-safe error message, empty when the last load succeeded.
	Err string `json:"error,omitempty"`
}

// Collection is a goroutine-safe remote-collection holder.
//
// # Concurrency
//
// All exported methods may be called from any goroutine. Completions are
// serialized under the internal mutex; subscribers are invoked without the
// lock held.
type Collection[T any] struct {
	label          string
	fetcher        Fetcher[T]
	onUnauthorized func()
	log            *slog.Logger

	mu      sync.Mutex
	state   State[T]
	depsKey string
	keyed   bool
	seq     uint64
	closed  bool
	subs    map[int]func(State[T])
	nextSub int
}

// Option configures a [Collection] at construction time.
type Option[T any] func(*Collection[T])

// WithLogger attaches a structured logger for load failures.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *Collection[T]) { c.log = logger }
}

// OnUnauthorized registers the callback fired when a load fails with a
// 401/403 from upstream. The session layer wires this to sign-out.
func OnUnauthorized[T any](callback func()) Option[T] {
	return func(c *Collection[T]) { c.onUnauthorized = callback }
}

// New creates a [Collection] for the labeled resource.
//
// The label feeds the fallback error string ("Failed to fetch <label>").
func New[T any](label string, fetcher Fetcher[T], options ...Option[T]) *Collection[T] {
	collection := &Collection[T]{
		label:   label,
		fetcher: fetcher,
		log:     slog.Default(),
		subs:    make(map[int]func(State[T])),
	}
	for _, option := range options {
		option(collection)
	}
	return collection
}

/*
Load starts a fetch keyed on the given dependency values.

Description: Dependencies are compared by serialized value, not identity —
re-invoking Load with equal values is a no-op, while any change in value
issues a fresh load that supersedes whatever is in flight.

Parameters:
  - context: context.Context for the outgoing fetch
  - deps: Dependency values (filters, ranges, identity) in stable order

Returns:
  - bool: true if a new load was issued
*/
func (collection *Collection[T]) Load(context context.Context, deps ...any) bool {
	key := serializeDeps(deps)

	collection.mu.Lock()
	if collection.closed || (collection.keyed && key == collection.depsKey) {
		collection.mu.Unlock()
		return false
	}
	collection.depsKey = key
	collection.keyed = true
	collection.startLocked(context, deps)
	return true
}

/*
Refetch re-runs the fetch with the current dependency values.

Description: Used for the explicit refresh affordance (?refresh=1). Always
issues a load, even when the dependency key is unchanged.

Returns:
  - bool: true if a load was issued (false only after Close or before any Load)
*/
func (collection *Collection[T]) Refetch(context context.Context, deps ...any) bool {
	collection.mu.Lock()
	if collection.closed {
		collection.mu.Unlock()
		return false
	}
	collection.depsKey = serializeDeps(deps)
	collection.keyed = true
	collection.startLocked(context, deps)
	return true
}

// startLocked issues load number seq+1 and releases the mutex.
func (collection *Collection[T]) startLocked(ctx context.Context, deps []any) {
	collection.seq++
	issued := collection.seq

	collection.state.Loading = true
	collection.state.Err = ""
	snapshot := collection.state
	subscribers := collection.snapshotSubsLocked()
	collection.mu.Unlock()

	notify(subscribers, snapshot)

	go collection.run(ctx, issued, deps)
}

// run executes one load and commits the result if still current.
func (collection *Collection[T]) run(ctx context.Context, issued uint64, deps []any) {
	data, err := collection.fetcher(ctx, deps)

	collection.mu.Lock()

	// ── 1. Staleness Check ────────────────────────────────────────────────
	// A newer load was issued (or the collection closed) while this one was
	// in flight: discard the completion wholesale, success or failure.
	if collection.closed || issued != collection.seq {
		collection.mu.Unlock()
		return
	}

	// ── 2. Commit ─────────────────────────────────────────────────────────
	collection.state.Loading = false
	if err != nil {
		// Keep the previous Data — stale rows stay visible under the error.
		collection.state.Err = apperr.Message(err, fmt.Sprintf("Failed to fetch %s", collection.label))
	} else {
		collection.state.Data = data
		collection.state.Err = ""
	}

	snapshot := collection.state
	subscribers := collection.snapshotSubsLocked()
	unauthorized := err != nil && apperr.IsAuthFailure(err)
	collection.mu.Unlock()

	// ── 3. Side Effects (outside the lock) ────────────────────────────────
	if err != nil {
		collection.log.Warn("collection_load_failed",
			slog.String("label", collection.label),
			slog.Uint64("seq", issued),
			slog.Any("error", err),
		)
	}

	notify(subscribers, snapshot)

	if unauthorized && collection.onUnauthorized != nil {
		collection.onUnauthorized()
	}
}

// State returns the current observable snapshot.
func (collection *Collection[T]) State() State[T] {
	collection.mu.Lock()
	defer collection.mu.Unlock()
	return collection.state
}

/*
Subscribe registers a listener invoked on every committed state change.

Returns:
  - func(): Unsubscribe function; idempotent
*/
func (collection *Collection[T]) Subscribe(listener func(State[T])) func() {
	collection.mu.Lock()
	defer collection.mu.Unlock()

	id := collection.nextSub
	collection.nextSub++
	collection.subs[id] = listener

	return func() {
		collection.mu.Lock()
		defer collection.mu.Unlock()
		delete(collection.subs, id)
	}
}

// Close stops the collection. In-flight completions are discarded and no
// further loads or notifications occur. Close is idempotent.
func (collection *Collection[T]) Close() {
	collection.mu.Lock()
	defer collection.mu.Unlock()
	collection.closed = true
	collection.subs = make(map[int]func(State[T]))
}

// snapshotSubsLocked copies the subscriber set so listeners run lock-free.
func (collection *Collection[T]) snapshotSubsLocked() []func(State[T]) {
	listeners := make([]func(State[T]), 0, len(collection.subs))
	for _, listener := range collection.subs {
		listeners = append(listeners, listener)
	}
	return listeners
}

func notify[T any](listeners []func(State[T]), snapshot State[T]) {
	for _, listener := range listeners {
		listener(snapshot)
	}
}

// serializeDeps builds the value-comparison key for a dependency slice.
//
// JSON gives stable output for the value types screens key on (strings,
// numbers, bools, small structs). Unserializable values fall back to their
// fmt representation, which still compares by value.
func serializeDeps(deps []any) string {
	encoded, err := json.Marshal(deps)
	if err != nil {
		return fmt.Sprintf("%#v", deps)
	}
	return string(encoded)
}
