// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

/*
Package console implements the screen controllers of the Mercato admin
dashboard.

Every screen follows the same shape: resolve the operator's session, obtain
the screen's [fetch.Collection] from the per-session workspace, load it with
the screen's dependency values, and serve the settled snapshot — filtered,
paginated, and optionally exported as CSV.

# Architecture

  - Workspace: One set of collections per live session. Dropped (and all
    collections closed) when the session signs out, so a dead bearer token
    never keeps fetching.
  - Controllers stay thin: no business rules, only wiring between the
    session layer, the fetch state machine, and the upstream client.
*/
package console

import (
	stdctx "context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nvbach/mercato/internal/fetch"
	"github.com/nvbach/mercato/pkg/pagination"
	"github.com/nvbach/mercato/pkg/slug"
)

// settleTimeout bounds how long a request waits for its collection to
// finish loading before answering with a loading snapshot.
const settleTimeout = 10 * time.Second

// closer is the part of a collection the workspace needs for teardown.
type closer interface {
	Close()
}

// Workspace holds one session's collections, keyed by screen label.
type Workspace struct {
	mu          sync.Mutex
	collections map[string]closer
}

// Registry maps live session IDs to their workspaces.
//
// # Lifecycle
//
// Workspaces are created lazily on first screen access and torn down by
// [Registry.Drop], which main wires to the session manager's sign-out hook.
type Registry struct {
	mu        sync.Mutex
	bySession map[string]*Workspace
}

// NewRegistry creates an empty workspace registry.
func NewRegistry() *Registry {
	return &Registry{bySession: make(map[string]*Workspace)}
}

// workspace returns the workspace for sessionID, creating it if needed.
func (registry *Registry) workspace(sessionID string) *Workspace {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	ws, found := registry.bySession[sessionID]
	if !found {
		ws = &Workspace{collections: make(map[string]closer)}
		registry.bySession[sessionID] = ws
	}
	return ws
}

// Drop closes every collection of the session and forgets the workspace.
// Safe to call for unknown sessions.
func (registry *Registry) Drop(sessionID string) {
	registry.mu.Lock()
	ws, found := registry.bySession[sessionID]
	delete(registry.bySession, sessionID)
	registry.mu.Unlock()

	if !found {
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, collection := range ws.collections {
		collection.Close()
	}
	ws.collections = make(map[string]closer)
}

// collectionFor returns the session's collection for label, creating it with
// build on first access.
//
// Generic functions cannot be methods, hence the free-function shape.
func collectionFor[T any](registry *Registry, sessionID, label string, build func() *fetch.Collection[T]) *fetch.Collection[T] {
	ws := registry.workspace(sessionID)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	if existing, found := ws.collections[label]; found {
		if typed, ok := existing.(*fetch.Collection[T]); ok {
			return typed
		}
	}

	created := build()
	ws.collections[label] = created
	return created
}

// awaitSettled blocks until the collection finishes its in-flight load, the
// context ends, or the settle timeout fires — whichever comes first.
//
// The returned snapshot may still be loading on timeout; the screen serves
// it as-is, exactly like a dashboard rendering its spinner.
func awaitSettled[T any](context stdctx.Context, collection *fetch.Collection[T]) fetch.State[T] {
	settled := make(chan fetch.State[T], 1)
	unsubscribe := collection.Subscribe(func(state fetch.State[T]) {
		if !state.Loading {
			select {
			case settled <- state:
			default:
			}
		}
	})
	defer unsubscribe()

	// The load may have settled before the subscription landed.
	if state := collection.State(); !state.Loading {
		return state
	}

	timer := time.NewTimer(settleTimeout)
	defer timer.Stop()

	select {
	case state := <-settled:
		return state
	case <-context.Done():
		return collection.State()
	case <-timer.C:
		return collection.State()
	}
}

// # List Helpers

// filterRows keeps the rows whose searchable text contains at least one of
// the terms, case-insensitively. No terms keeps everything.
func filterRows[T any](rows []T, terms []string, searchText func(T) string) []T {
	if len(terms) == 0 {
		return rows
	}

	lowered := make([]string, 0, len(terms))
	for _, term := range terms {
		lowered = append(lowered, strings.ToLower(term))
	}

	filtered := make([]T, 0, len(rows))
	for _, row := range rows {
		haystack := strings.ToLower(searchText(row))
		for _, term := range lowered {
			if strings.Contains(haystack, term) {
				filtered = append(filtered, row)
				break
			}
		}
	}
	return filtered
}

// pageRows slices one page out of the filtered rows.
func pageRows[T any](rows []T, params pagination.Params) ([]T, pagination.Meta) {
	low, high := params.Bounds(len(rows))
	return rows[low:high], pagination.NewMeta(params.Page, params.Limit, len(rows))
}

// wantsRefresh reports whether the request carries the explicit refresh
// affordance (?refresh=1).
func wantsRefresh(request *http.Request) bool {
	return request.URL.Query().Get("refresh") == "1"
}

// wantsCSV reports whether the request asks for a CSV export.
func wantsCSV(request *http.Request) bool {
	return request.URL.Query().Get("format") == "csv"
}

/*
writeCSV streams the full filtered row set as a CSV attachment.

Description: Exports ignore pagination — operators expect the whole filtered
list in the file. The filename is slugged from the screen label and filter.

Parameters:
  - writer: http.ResponseWriter
  - label: Screen label, e.g. "vendors"
  - filter: The active text filter, woven into the filename
  - header: Column headers
  - rows: Pre-filtered rows
  - toRecord: Row-to-CSV-record adapter
*/
func writeCSV[T any](writer http.ResponseWriter, label, filter string, header []string, rows []T, toRecord func(T) []string) error {
	filename := slug.From(label)
	if filter != "" {
		filename = filename + "-" + slug.From(filter)
	}

	writer.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename+".csv"))

	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := csvWriter.Write(toRecord(row)); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
