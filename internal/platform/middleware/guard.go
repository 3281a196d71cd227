// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/nvbach/mercato/internal/platform/constants"
	"github.com/nvbach/mercato/internal/platform/ctxutil"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/session"
)

// SessionResolver defines the interface the route guard needs from the
// session manager.
//
// # Why an interface?
//
// Defining it here decouples the guard from the session package's concrete
// manager, allowing tests to inject a canned resolver.
type SessionResolver interface {
	Current(ctx context.Context, sessionID string) *session.Session
}

// Guard gates every protected console route on session presence.
//
// # Flow
//  1. Read and verify the signed session cookie. A missing or forged cookie
//     is treated identically: no session.
//  2. Resolve the session through the manager (expiry + inactivity applied).
//  3. Absent session: clear the cookie, park the one-shot notice ID for the
//     login screen, and answer with an empty-bodied 303 to /auth/login —
//     none of the protected content is ever written.
//  4. Live session: inject it into the request context and proceed.
//
// # State Machine
//
// UNKNOWN -> {AUTHENTICATED, UNAUTHENTICATED} on the store read;
// UNAUTHENTICATED is terminal for this request — a fresh login arrives as a
// new request, not a transition inside the guard.
func Guard(resolver SessionResolver, signer *sec.CookieSigner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Cookie Extraction ──────────────────────────────────────────
			cookie, err := request.Cookie(constants.SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(writer, request, "")
				return
			}

			// ── 2. Signature Verification ─────────────────────────────────────
			sessionID, err := signer.Verify(cookie.Value)
			if err != nil {
				// Forged or stale cookie — fail closed, exactly like no cookie.
				ClearSessionCookie(writer)
				redirectToLogin(writer, request, "")
				return
			}

			// ── 3. Session Resolution ─────────────────────────────────────────
			current := resolver.Current(request.Context(), sessionID)
			if current == nil {
				ClearSessionCookie(writer)
				// The manager parked a one-shot notice under the session ID;
				// hand the login screen the key to pick it up.
				redirectToLogin(writer, request, sessionID)
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithSession(request.Context(), current)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// redirectToLogin answers with an empty-bodied 303 to the login route.
func redirectToLogin(writer http.ResponseWriter, request *http.Request, noticeID string) {
	if noticeID != "" {
		SetNoticeCookie(writer, noticeID)
	}
	http.Redirect(writer, request, constants.LoginPath, http.StatusSeeOther)
}

// # Cookie Helpers

// SetSessionCookie writes the signed session cookie.
func SetSessionCookie(writer http.ResponseWriter, signedValue string, expiresAt time.Time) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    signedValue,
		Path:     constants.CookiePath,
		Expires:  expiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.CookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// SetNoticeCookie parks the one-shot notice ID for the login screen.
func SetNoticeCookie(writer http.ResponseWriter, noticeID string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.NoticeCookieName,
		Value:    noticeID,
		Path:     constants.CookiePath,
		MaxAge:   int(session.NoticeTTL.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearNoticeCookie removes the notice cookie after the notice was read.
func ClearNoticeCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.NoticeCookieName,
		Value:    "",
		Path:     constants.CookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
