// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package console_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbach/mercato/internal/console"
	"github.com/nvbach/mercato/internal/platform/ctxutil"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/session"
	"github.com/nvbach/mercato/internal/upstream"
)

type screensFixture struct {
	router   http.Handler
	manager  *session.Manager
	registry *console.Registry
	session  *session.Session
}

// newScreensFixture wires the full screen stack — registry, session manager,
// upstream client — against a fake platform API, with a live admin session
// pre-injected the way the route guard would.
func newScreensFixture(t *testing.T, platformHandler http.Handler) *screensFixture {
	t.Helper()
	return newScreensFixtureForRole(t, sec.RoleAdmin, platformHandler)
}

// newScreensFixtureForRole is newScreensFixture with the operator's role
// under test control.
func newScreensFixtureForRole(t *testing.T, role sec.Role, platformHandler http.Handler) *screensFixture {
	t.Helper()

	server := httptest.NewServer(platformHandler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.DiscardHandler)
	backend := session.NewMemoryBackend()
	store := session.NewStore(backend, logger)
	notices := session.NewNoticeStore(backend, logger)
	platform := upstream.NewClient(server.URL, 2*time.Second, logger)
	manager := session.NewManager(store, platform, notices, nil, logger)

	registry := console.NewRegistry()
	manager.OnSignOut(registry.Drop)

	current := store.Set(context.Background(), &session.Session{
		ID:    "s-1",
		Token: "bearer-token-1",
		User:  &session.User{ID: "u-1", Role: role, FullName: "Ada Operator", Email: "ada@mercato.app"},
	}, false)
	require.NotNil(t, current)
	require.NotNil(t, manager.Current(context.Background(), "s-1"))

	screens := console.NewScreens(registry, platform, manager, logger)

	// Stand-in for the route guard: inject the session into every request.
	inject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			live := manager.Current(request.Context(), "s-1")
			if live != nil {
				request = request.WithContext(ctxutil.WithSession(request.Context(), live))
			}
			next.ServeHTTP(writer, request)
		})
	}

	return &screensFixture{
		router:   inject(screens.Routes()),
		manager:  manager,
		registry: registry,
		session:  current,
	}
}

func vendorsPlatform(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "Bearer bearer-token-1", request.Header.Get("Authorization"))
		assert.Equal(t, "/business", request.URL.Path)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"businesses":[
			{"_id":"v-1","name":"Saigon Kitchen","email":"sk@mercato.app","category":"vietnamese","rating":4.5,"is_open":true},
			{"_id":"v-2","name":"Pho Palace","email":"pp@mercato.app","category":"vietnamese","rating":4.0,"is_open":false},
			{"_id":"v-3","name":"Bread Basket","email":"bb@mercato.app","category":"bakery","rating":3.5,"is_open":true}
		]}`))
	})
}

func getJSON(t *testing.T, router http.Handler, path string, target any) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), target))
	return recorder
}

type vendorList struct {
	Rows    []upstream.Vendor `json:"rows"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error"`
	Meta    struct {
		Total int `json:"total"`
	} `json:"meta"`
}

/*
TestScreens_VendorList verifies the shared list flow end to end: fetch
through the real upstream client, settle, and serve with pagination metadata.
*/
func TestScreens_VendorList(t *testing.T) {
	fixture := newScreensFixture(t, vendorsPlatform(t))

	var list vendorList
	getJSON(t, fixture.router, "/vendors", &list)

	assert.False(t, list.Loading)
	assert.Empty(t, list.Error)
	assert.Equal(t, 3, list.Meta.Total)
	require.Len(t, list.Rows, 3)
	assert.Equal(t, "Saigon Kitchen", list.Rows[0].Name)
}

/*
TestScreens_VendorListFilterAndPaging verifies the in-memory filter and page
window over the settled snapshot.
*/
func TestScreens_VendorListFilterAndPaging(t *testing.T) {
	fixture := newScreensFixture(t, vendorsPlatform(t))

	var filtered vendorList
	getJSON(t, fixture.router, "/vendors?q=vietnamese", &filtered)
	assert.Equal(t, 2, filtered.Meta.Total)

	// Comma-separated terms widen the filter: a row matching any term stays.
	var multi vendorList
	getJSON(t, fixture.router, "/vendors?q=vietnamese,bakery", &multi)
	assert.Equal(t, 3, multi.Meta.Total)

	var paged vendorList
	getJSON(t, fixture.router, "/vendors?page=2&limit=2", &paged)
	assert.Equal(t, 3, paged.Meta.Total)
	require.Len(t, paged.Rows, 1)
	assert.Equal(t, "Bread Basket", paged.Rows[0].Name)
}

/*
TestScreens_VendorListCachesAcrossRequests verifies the dependency-key
semantics at the HTTP level: same token, no second upstream call; refresh=1
forces one.
*/
func TestScreens_VendorListCachesAcrossRequests(t *testing.T) {
	var hits atomic.Int32
	fixture := newScreensFixture(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)
		vendorsPlatform(t).ServeHTTP(writer, request)
	}))

	var list vendorList
	getJSON(t, fixture.router, "/vendors", &list)
	getJSON(t, fixture.router, "/vendors", &list)
	assert.Equal(t, int32(1), hits.Load(), "an unchanged dependency key must serve the cached snapshot")

	getJSON(t, fixture.router, "/vendors?refresh=1", &list)
	assert.Equal(t, int32(2), hits.Load(), "refresh=1 must force a re-fetch")
}

/*
TestScreens_VendorListCSVExport verifies the format=csv affordance: full
filtered set, no pagination, attachment headers.
*/
func TestScreens_VendorListCSVExport(t *testing.T) {
	fixture := newScreensFixture(t, vendorsPlatform(t))

	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/vendors?q=vietnamese&format=csv&limit=1", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/csv; charset=utf-8", recorder.Header().Get("Content-Type"))
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), "vendors-vietnamese.csv")

	lines := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n")
	require.Len(t, lines, 3, "header plus both filtered rows, pagination ignored")
	assert.Equal(t, "id,name,email,phone,category,rating,open", lines[0])
}

/*
TestScreens_UpstreamErrorKeepsStaleRows verifies the error contract at the
screen level: after a successful load, a failing refresh serves the stale
rows together with the error message.
*/
func TestScreens_UpstreamErrorKeepsStaleRows(t *testing.T) {
	var failing atomic.Bool
	fixture := newScreensFixture(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if failing.Load() {
			writer.WriteHeader(http.StatusInternalServerError)
			_, _ = writer.Write([]byte(`{"error":"Platform exploded"}`))
			return
		}
		vendorsPlatform(t).ServeHTTP(writer, request)
	}))

	var list vendorList
	getJSON(t, fixture.router, "/vendors", &list)
	require.Len(t, list.Rows, 3)

	failing.Store(true)
	var stale vendorList
	getJSON(t, fixture.router, "/vendors?refresh=1", &stale)

	assert.NotEmpty(t, stale.Error)
	assert.Len(t, stale.Rows, 3, "stale rows stay visible under the error")
}

/*
TestScreens_UnauthorizedSignsOut verifies the 401 contract: an expired
bearer token signs the session out through the manager, which also drops
the session's workspace.
*/
func TestScreens_UnauthorizedSignsOut(t *testing.T) {
	fixture := newScreensFixture(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
		_, _ = writer.Write([]byte(`{"error":"jwt expired"}`))
	}))

	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/vendors", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "jwt expired")

	// The sign-out callback runs after the response settles.
	require.Eventually(t, func() bool {
		return fixture.manager.Current(context.Background(), "s-1") == nil
	}, 2*time.Second, 10*time.Millisecond)
}

/*
TestScreens_Account verifies that the account screen serves the session's
own user record without an upstream round trip.
*/
func TestScreens_Account(t *testing.T) {
	var platformHits atomic.Int32
	fixture := newScreensFixture(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		platformHits.Add(1)
	}))

	var envelope struct {
		Data session.User `json:"data"`
	}
	getJSON(t, fixture.router, "/account", &envelope)

	assert.Equal(t, "Ada Operator", envelope.Data.FullName)
	assert.Zero(t, platformHits.Load())
}

/*
TestScreens_UpdateProfile verifies the profile update flow: push upstream,
rewrite the session record, serve the accepted profile.
*/
func TestScreens_UpdateProfile(t *testing.T) {
	fixture := newScreensFixture(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPut, request.Method)
		assert.Equal(t, "/users/profile", request.URL.Path)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"user":{"_id":"u-1","fullname":"Ada Q. Operator","email":"ada@mercato.app","role":"admin"}}`))
	}))

	body := `{"fullname":"Ada Q. Operator","email":"ada@mercato.app"}`
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPut, "/account/profile", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Ada Q. Operator")

	// The session record reflects the change on the next evaluation.
	current := fixture.manager.Current(context.Background(), "s-1")
	require.NotNil(t, current)
	assert.Equal(t, "Ada Q. Operator", current.User.FullName)
}

/*
TestScreens_RoleGates verifies the seniority gates: user management and
analytics are admin-only, zones need at least operator; vendor-facing
screens stay open to every authenticated role.
*/
func TestScreens_RoleGates(t *testing.T) {
	emptyPlatform := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`[]`))
	})

	tests := []struct {
		name     string
		role     sec.Role
		path     string
		expected int
	}{
		{"admin_reads_users", sec.RoleAdmin, "/users", http.StatusOK},
		{"operator_blocked_from_users", sec.RoleOperator, "/users", http.StatusForbidden},
		{"operator_blocked_from_analytics", sec.RoleOperator, "/analytics", http.StatusForbidden},
		{"admin_reads_zones", sec.RoleAdmin, "/zones", http.StatusOK},
		{"operator_reads_zones", sec.RoleOperator, "/zones", http.StatusOK},
		{"vendor_blocked_from_zones", sec.RoleVendor, "/zones", http.StatusForbidden},
		{"vendor_reads_orders", sec.RoleVendor, "/orders", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newScreensFixtureForRole(t, tt.role, emptyPlatform)

			recorder := httptest.NewRecorder()
			fixture.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.expected, recorder.Code)
		})
	}
}

/*
TestScreens_UpdateProfileValidation verifies that a bad payload never
reaches the platform.
*/
func TestScreens_UpdateProfileValidation(t *testing.T) {
	var platformHits atomic.Int32
	fixture := newScreensFixture(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		platformHits.Add(1)
	}))

	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPut, "/account/profile",
		strings.NewReader(`{"fullname":"","email":"not-an-email"}`)))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Zero(t, platformHits.Load())
}
