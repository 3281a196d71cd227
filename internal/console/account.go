// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package console

import (
	"net/http"

	"github.com/nvbach/mercato/internal/platform/apperr"
	requestutil "github.com/nvbach/mercato/internal/platform/request"
	"github.com/nvbach/mercato/internal/platform/respond"
	"github.com/nvbach/mercato/internal/platform/validate"
	"github.com/nvbach/mercato/internal/session"
	"github.com/nvbach/mercato/internal/upstream"
)

/*
account handles GET /console/account.

Description: Serves the operator's own profile straight from the session
record — no upstream round trip, the session is the source of truth until
a profile update rewrites it.
*/
func (screens *Screens) account(writer http.ResponseWriter, request *http.Request) {
	current, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, current.User)
}

type updateProfileRequest struct {
	FullName       string `json:"fullname"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	ProfilePicture string `json:"profile_picture"`
}

/*
updateProfile handles PUT /console/account/profile.

Description: Pushes the change to the platform API first; only what the
platform accepted lands in the session record via the manager's SetUser
escape hatch, so the avatar chrome reflects the update immediately without
a re-login.

Request:
  - Body: updateProfileRequest

Responses:
  - 200: The updated profile
  - 400: Validation failure
  - 401: No live session
*/
func (screens *Screens) updateProfile(writer http.ResponseWriter, request *http.Request) {
	current, err := requestutil.RequiredSession(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 1. Decode & Validate ──────────────────────────────────────────────
	var payload updateProfileRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.
		Required("fullname", payload.FullName).
		MaxLen("fullname", payload.FullName, 120).
		Required("email", payload.Email).
		Email("email", payload.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Push Upstream ──────────────────────────────────────────────────
	updated, err := screens.platform.UpdateProfile(request.Context(), current.Token, upstream.User{
		ID:             current.User.ID,
		FullName:       payload.FullName,
		Email:          payload.Email,
		Phone:          payload.Phone,
		Role:           current.User.Role,
		ProfilePicture: payload.ProfilePicture,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Rewrite the Session Record ─────────────────────────────────────
	refreshed := screens.manager.SetUser(request.Context(), current.ID, &session.User{
		ID:             updated.ID,
		Role:           updated.Role,
		FullName:       updated.FullName,
		Email:          updated.Email,
		ProfilePicture: updated.ProfilePicture,
	})
	if refreshed == nil {
		respond.Error(writer, request, apperr.Unauthorized("Session expired. Please login again."))
		return
	}

	respond.OK(writer, refreshed.User)
}
