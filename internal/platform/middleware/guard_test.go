// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbach/mercato/internal/platform/constants"
	"github.com/nvbach/mercato/internal/platform/ctxutil"
	"github.com/nvbach/mercato/internal/platform/middleware"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/session"
)

// stubResolver serves canned sessions keyed by ID.
type stubResolver struct {
	sessions map[string]*session.Session
	calls    []string
}

func (resolver *stubResolver) Current(_ context.Context, sessionID string) *session.Session {
	resolver.calls = append(resolver.calls, sessionID)
	return resolver.sessions[sessionID]
}

func newSigner(t *testing.T, secret string) *sec.CookieSigner {
	t.Helper()
	signer, err := sec.NewCookieSigner(secret, constants.CookieIssuer)
	require.NoError(t, err)
	return signer
}

// guardedEcho runs the guard around a handler that records whether it was
// reached and what session it saw.
func guardedEcho(resolver middleware.SessionResolver, signer *sec.CookieSigner) (http.Handler, *bool, **session.Session) {
	reached := false
	var seen *session.Session

	inner := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		reached = true
		seen = ctxutil.GetSession(request.Context())
		writer.WriteHeader(http.StatusOK)
	})

	return middleware.Guard(resolver, signer)(inner), &reached, &seen
}

func findCookie(t *testing.T, recorder *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

/*
TestGuard_NoCookieRedirects verifies the bare-browser case: no session cookie
yields an empty-bodied 303 to the login route and the protected handler never
runs.
*/
func TestGuard_NoCookieRedirects(t *testing.T) {
	resolver := &stubResolver{}
	handler, reached, _ := guardedEcho(resolver, newSigner(t, "0123456789abcdef0123456789abcdef"))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/console/orders", nil))

	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, constants.LoginPath, recorder.Header().Get("Location"))
	assert.Empty(t, recorder.Body.String(), "redirect must not leak protected content")
	assert.False(t, *reached)
	assert.Empty(t, resolver.calls, "no cookie means the store is never consulted")
}

/*
TestGuard_ForgedCookieFailsClosed verifies that a cookie signed with a
different key is treated exactly like no cookie, and the bogus cookie is
cleared.
*/
func TestGuard_ForgedCookieFailsClosed(t *testing.T) {
	attacker := newSigner(t, "attacker-key-attacker-key-attacker-key")
	forged, err := attacker.Sign("s-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	resolver := &stubResolver{}
	handler, reached, _ := guardedEcho(resolver, newSigner(t, "0123456789abcdef0123456789abcdef"))

	request := httptest.NewRequest(http.MethodGet, "/console/orders", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: forged})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, constants.LoginPath, recorder.Header().Get("Location"))
	assert.False(t, *reached)
	assert.Empty(t, resolver.calls)

	cleared := findCookie(t, recorder, constants.SessionCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

/*
TestGuard_DeadSessionParksNotice verifies the expired-session flow: a valid
cookie whose session has died redirects to login and parks the one-shot
notice ID so the login screen can explain what happened.
*/
func TestGuard_DeadSessionParksNotice(t *testing.T) {
	signer := newSigner(t, "0123456789abcdef0123456789abcdef")
	signed, err := signer.Sign("s-dead", time.Now().Add(time.Hour))
	require.NoError(t, err)

	resolver := &stubResolver{} // knows no sessions
	handler, reached, _ := guardedEcho(resolver, signer)

	request := httptest.NewRequest(http.MethodGet, "/console/orders", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: signed})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.False(t, *reached)
	assert.Equal(t, []string{"s-dead"}, resolver.calls)

	notice := findCookie(t, recorder, constants.NoticeCookieName)
	require.NotNil(t, notice)
	assert.Equal(t, "s-dead", notice.Value)
}

/*
TestGuard_LiveSessionPassesThrough verifies the happy path: the resolved
session is injected into the request context and the handler runs.
*/
func TestGuard_LiveSessionPassesThrough(t *testing.T) {
	signer := newSigner(t, "0123456789abcdef0123456789abcdef")
	signed, err := signer.Sign("s-live", time.Now().Add(time.Hour))
	require.NoError(t, err)

	live := &session.Session{ID: "s-live", Token: "bearer-token-1", User: &session.User{ID: "u-1", Role: sec.RoleAdmin}}
	resolver := &stubResolver{sessions: map[string]*session.Session{"s-live": live}}
	handler, reached, seen := guardedEcho(resolver, signer)

	request := httptest.NewRequest(http.MethodGet, "/console/orders", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: signed})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, *reached)
	require.NotNil(t, *seen)
	assert.Equal(t, "s-live", (*seen).ID)
}

/*
TestGuard_ExpiredCookieRejectedBeforeStore verifies that a cookie past its
embedded expiry is rejected without ever consulting the session store.
*/
func TestGuard_ExpiredCookieRejectedBeforeStore(t *testing.T) {
	signer := newSigner(t, "0123456789abcdef0123456789abcdef")
	signed, err := signer.Sign("s-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	resolver := &stubResolver{}
	handler, reached, _ := guardedEcho(resolver, signer)

	request := httptest.NewRequest(http.MethodGet, "/console/orders", nil)
	request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: signed})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.False(t, *reached)
	assert.Empty(t, resolver.calls)
}
