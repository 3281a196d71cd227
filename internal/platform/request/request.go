// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away common body decoding and session extraction patterns,
ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/nvbach/mercato/internal/platform/apperr"
	"github.com/nvbach/mercato/internal/platform/ctxutil"
	"github.com/nvbach/mercato/internal/platform/validate"
	"github.com/nvbach/mercato/internal/session"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Session extracts the authenticated console session from the request context.

Returns nil if the request passed no guard.
*/
func Session(request *http.Request) *session.Session {
	return ctxutil.GetSession(request.Context())
}

/*
RequiredSession ensures the request carries a live session and returns it.

Returns:
  - *session.Session: The authenticated session
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredSession(request *http.Request) (*session.Session, error) {

	// Get the session injected by the route guard
	current := ctxutil.GetSession(request.Context())

	// If the request is not authenticated, return an error
	if current == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return current, nil
}
