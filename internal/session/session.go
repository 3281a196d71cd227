// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

/*
Package session implements the console's authenticated-session subsystem.

It owns the durable session record (operator identity + upstream bearer token +
expiry bookkeeping), the expiration and inactivity policy applied on every
read, and the in-process manager that keeps a single authoritative in-memory
mirror per process.

Architecture:

  - Store: Policy layer (fail-closed reads, TTL computation, inactivity).
  - Backend: Abstracted key-value persistence (Redis, PostgreSQL, memory).
  - Manager: Reactive in-memory mirror + login/logout orchestration.

A session is either entirely absent or fully populated — partial or corrupt
records found in storage are destroyed and reported as absent.
*/
package session

import (
	"time"

	"github.com/nvbach/mercato/internal/platform/sec"
)

// # Session Policy

const (
	// SessionTTL is how long a standard session lives after (re)creation.
	SessionTTL = 24 * time.Hour

	// RememberedSessionTTL is the extended lifetime for "remember me" logins.
	RememberedSessionTTL = 7 * 24 * time.Hour

	// DefaultInactivityLimit logs out idle non-remembered sessions.
	DefaultInactivityLimit = 30 * time.Minute

	// NoticeTTL bounds how long an unread one-shot notice survives.
	NoticeTTL = 5 * time.Minute
)

// PleaseLoginNotice is the one-shot message recorded when a browser is
// bounced off a protected screen. The login screen reads it exactly once.
const PleaseLoginNotice = "Please login to access this page"

// # Domain Entities

// User is the operator identity as reported by the platform API.
type User struct {
	ID             string   `json:"id"`
	Role           sec.Role `json:"role"`
	FullName       string   `json:"full_name"`
	Email          string   `json:"email"`
	ProfilePicture string   `json:"profile_picture,omitempty"`
}

// Session is the authenticated-operator record persisted across requests.
//
// Timestamps are absolute epoch milliseconds; expiry and inactivity are plain
// greater-than comparisons with no clock-skew correction.
//
// The Token field holds the opaque upstream bearer credential. It is
// serialized only into the server-side backend — handler responses expose the
// User alone, never the token.
type Session struct {
	ID             string `json:"id"`
	User           *User  `json:"user"`
	Token          string `json:"token"`
	ExpiresAtMs    int64  `json:"expires_at"`
	LastActivityMs int64  `json:"last_activity"`
	RememberMe     bool   `json:"remember_me"`
}

// ExpiresAt returns the expiry instant as a [time.Time].
func (s *Session) ExpiresAt() time.Time {
	return time.UnixMilli(s.ExpiresAtMs)
}

// wellFormed reports whether the record satisfies the all-or-nothing
// invariant: user identity, token, and expiry must all be present.
func (s *Session) wellFormed() bool {
	return s != nil &&
		s.ID != "" &&
		s.User != nil &&
		s.User.ID != "" &&
		s.Token != "" &&
		s.ExpiresAtMs > 0
}

// clone returns a deep copy so callers can never mutate the mirror in place.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s
	if s.User != nil {
		user := *s.User
		copied.User = &user
	}
	return &copied
}
