// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package console

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nvbach/mercato/internal/platform/constants"
	"github.com/nvbach/mercato/internal/platform/middleware"
	requestutil "github.com/nvbach/mercato/internal/platform/request"
	"github.com/nvbach/mercato/internal/platform/respond"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/platform/validate"
	"github.com/nvbach/mercato/internal/session"
)

// AuthHandler implements the public authentication endpoints.
//
// # Scope
//
// Everything outside the route guard lives here: credential submission,
// logout, and the one-shot login-screen notice.
type AuthHandler struct {
	manager *session.Manager
	notices *session.NoticeStore
	signer  *sec.CookieSigner
}

// NewAuthHandler constructs an [AuthHandler].
func NewAuthHandler(manager *session.Manager, notices *session.NoticeStore, signer *sec.CookieSigner) *AuthHandler {
	return &AuthHandler{manager: manager, notices: notices, signer: signer}
}

// Routes returns a [chi.Router] with the authentication endpoints.
//
// The loginLimit middleware throttles credential submissions only; logout
// and notice stay on the global budget.
//
// # Endpoints
//   - POST /login  : Verifies credentials and establishes the session cookie.
//   - POST /logout : Destroys the session; hard redirect to the login route.
//   - GET  /notice : Reads (and destroys) the pending one-shot notice.
func (handler *AuthHandler) Routes(loginLimit func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	router.With(loginLimit).Post("/login", handler.login)
	router.Post("/logout", handler.logout)
	router.Get("/notice", handler.notice)

	return router
}

// # Request Payloads

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

/*
login handles credential submission.

POST /auth/login

Description: Validates the payload, forwards the credentials through the
session manager, and on success sets the signed session cookie. Failures
always answer 200 with a discriminated {success:false, message} body — the
login form renders the message inline rather than handling error statuses.

Request:
  - Body: loginRequest (Email, Password, RememberMe)

Responses:
  - 200: session.LoginResult (Success, Message, User, RedirectTo)
  - 400: Validation failure
*/
func (handler *AuthHandler) login(writer http.ResponseWriter, request *http.Request) {

	// ── 1. Decode & Validate ──────────────────────────────────────────────
	var payload loginRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.
		Required("email", payload.Email).
		Email("email", payload.Email).
		Required("password", payload.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Authenticate ───────────────────────────────────────────────────
	result := handler.manager.Login(request.Context(), session.Credentials{
		Email:      payload.Email,
		Password:   payload.Password,
		RememberMe: payload.RememberMe,
		UserAgent:  request.UserAgent(),
		IPAddress:  middleware.RealIP(request),
	})

	if !result.Success {
		respond.JSON(writer, http.StatusOK, result)
		return
	}

	// ── 3. Establish the Cookie ───────────────────────────────────────────
	signedValue, err := handler.signer.Sign(result.Session.ID, result.Session.ExpiresAt())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	middleware.SetSessionCookie(writer, signedValue, result.Session.ExpiresAt())
	middleware.ClearNoticeCookie(writer)

	respond.JSON(writer, http.StatusOK, result)
}

/*
logout destroys the current session.

POST /auth/logout

Description: Works with or without a live session — a dead cookie still gets
cleared. Always finishes with a hard 303 redirect to the login route so the
browser discards all dashboard state.
*/
func (handler *AuthHandler) logout(writer http.ResponseWriter, request *http.Request) {

	// Resolve the session ID from the cookie if one is present.
	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		if sessionID, err := handler.signer.Verify(cookie.Value); err == nil {
			handler.manager.Logout(request.Context(), sessionID)
		}
	}

	middleware.ClearSessionCookie(writer)
	respond.Redirect(writer, request, constants.LoginPath)
}

/*
notice serves the pending one-shot notice for the login screen.

GET /auth/notice

Description: Read-once — the notice and its cookie are destroyed on read.
Answers {message: ""} when nothing is pending.
*/
func (handler *AuthHandler) notice(writer http.ResponseWriter, request *http.Request) {
	message := ""

	if cookie, err := request.Cookie(constants.NoticeCookieName); err == nil && cookie.Value != "" {
		if pending, found := handler.notices.Take(request.Context(), cookie.Value); found {
			message = pending
		}
		middleware.ClearNoticeCookie(writer)
	}

	respond.OK(writer, map[string]string{"message": message})
}
