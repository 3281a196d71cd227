// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package console_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbach/mercato/internal/console"
	"github.com/nvbach/mercato/internal/platform/constants"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/session"
	"github.com/nvbach/mercato/internal/upstream"
)

// noLimit is the pass-through stand-in for the login rate limiter.
func noLimit(next http.Handler) http.Handler { return next }

type authFixture struct {
	router  http.Handler
	manager *session.Manager
	notices *session.NoticeStore
	signer  *sec.CookieSigner
}

// newAuthFixture wires the real session stack against a fake platform API.
func newAuthFixture(t *testing.T, platformHandler http.HandlerFunc) *authFixture {
	t.Helper()

	server := httptest.NewServer(platformHandler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.DiscardHandler)
	backend := session.NewMemoryBackend()
	store := session.NewStore(backend, logger)
	notices := session.NewNoticeStore(backend, logger)
	platform := upstream.NewClient(server.URL, 2*time.Second, logger)
	manager := session.NewManager(store, platform, notices, nil, logger)

	signer, err := sec.NewCookieSigner("0123456789abcdef0123456789abcdef", constants.CookieIssuer)
	require.NoError(t, err)

	return &authFixture{
		router:  console.NewAuthHandler(manager, notices, signer).Routes(noLimit),
		manager: manager,
		notices: notices,
		signer:  signer,
	}
}

func acceptingPlatform(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	_, _ = writer.Write([]byte(`{"token":"bearer-token-1","user":{"_id":"u-1","fullname":"Ada Operator","role":"admin"}}`))
}

func rejectingPlatform(writer http.ResponseWriter, request *http.Request) {
	writer.WriteHeader(http.StatusUnauthorized)
	_, _ = writer.Write([]byte(`{"error":"Wrong password"}`))
}

func sessionCookie(recorder *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == constants.SessionCookieName {
			return cookie
		}
	}
	return nil
}

/*
TestLogin_Success verifies the full happy path: 200 with the discriminated
result, a verifiable signed session cookie, and the admin landing path.
*/
func TestLogin_Success(t *testing.T) {
	fixture := newAuthFixture(t, acceptingPlatform)

	body := `{"email":"ada@mercato.app","password":"secret","remember_me":true}`
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"success":true`)
	assert.Contains(t, recorder.Body.String(), `"redirect_to":"/admin"`)

	cookie := sessionCookie(recorder)
	require.NotNil(t, cookie, "a success must set the session cookie")
	assert.True(t, cookie.HttpOnly)

	sessionID, err := fixture.signer.Verify(cookie.Value)
	require.NoError(t, err)
	assert.NotNil(t, fixture.manager.Current(context.Background(), sessionID))
}

/*
TestLogin_Failure verifies the inline-error contract: rejected credentials
answer 200 with success=false and never set a cookie.
*/
func TestLogin_Failure(t *testing.T) {
	fixture := newAuthFixture(t, rejectingPlatform)

	body := `{"email":"ada@mercato.app","password":"wrong"}`
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"success":false`)
	assert.Contains(t, recorder.Body.String(), "Invalid credentials. Please try again.")
	assert.Nil(t, sessionCookie(recorder))
}

/*
TestLogin_Validation verifies that malformed submissions are rejected with
field-level details before the platform is ever contacted.
*/
func TestLogin_Validation(t *testing.T) {
	platformHits := 0
	fixture := newAuthFixture(t, func(writer http.ResponseWriter, request *http.Request) {
		platformHits++
		acceptingPlatform(writer, request)
	})

	tests := []struct {
		name string
		body string
	}{
		{"not_json", `{"email": `},
		{"missing_email", `{"password":"secret"}`},
		{"malformed_email", `{"email":"not-an-email","password":"secret"}`},
		{"missing_password", `{"email":"ada@mercato.app"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			fixture.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}

	assert.Zero(t, platformHits, "invalid submissions must not reach the platform")
}

/*
TestLogout verifies the hard-redirect teardown, with and without a live
session cookie.
*/
func TestLogout(t *testing.T) {
	fixture := newAuthFixture(t, acceptingPlatform)

	// Establish a session first.
	login := httptest.NewRecorder()
	fixture.router.ServeHTTP(login, httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"ada@mercato.app","password":"secret"}`)))
	cookie := sessionCookie(login)
	require.NotNil(t, cookie)

	request := httptest.NewRequest(http.MethodPost, "/logout", nil)
	request.AddCookie(cookie)
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, constants.LoginPath, recorder.Header().Get("Location"))

	cleared := sessionCookie(recorder)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	// Cookie-less logout still redirects cleanly.
	bare := httptest.NewRecorder()
	fixture.router.ServeHTTP(bare, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusSeeOther, bare.Code)
}

/*
TestNotice verifies the read-once notice endpoint the login screen polls.
*/
func TestNotice(t *testing.T) {
	fixture := newAuthFixture(t, acceptingPlatform)
	fixture.notices.Put(t.Context(), "s-dead", session.PleaseLoginNotice)

	request := httptest.NewRequest(http.MethodGet, "/notice", nil)
	request.AddCookie(&http.Cookie{Name: constants.NoticeCookieName, Value: "s-dead"})

	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), session.PleaseLoginNotice)

	// Second read: the notice is gone.
	again := httptest.NewRecorder()
	fixture.router.ServeHTTP(again, request)
	assert.Contains(t, again.Body.String(), `"message":""`)

	// No cookie at all: empty message.
	bare := httptest.NewRecorder()
	fixture.router.ServeHTTP(bare, httptest.NewRequest(http.MethodGet, "/notice", nil))
	assert.Contains(t, bare.Body.String(), `"message":""`)
}
