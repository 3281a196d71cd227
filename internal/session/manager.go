// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nvbach/mercato/pkg/uuidv7"
)

// # Contracts & Types

// LoginPayload is what a successful upstream authentication yields.
type LoginPayload struct {
	Token string
	User  *User
}

// Authenticator defines the contract for verifying operator credentials
// against the platform API.
//
// # Why an interface?
//
// The manager never speaks HTTP itself. Defining the contract here decouples
// it from the upstream client and lets tests inject a stub endpoint.
type Authenticator interface {

	/*
		Authenticate submits credentials to the platform's login endpoint.

		Parameters:
		  - context: context.Context
		  - email: string
		  - password: string

		Returns:
		  - *LoginPayload: Bearer token + user profile on success
		  - error: Rejection or transport failures (normalized by the caller)
	*/
	Authenticate(context context.Context, email, password string) (*LoginPayload, error)
}

// AuditRecorder persists login attempts for the security trail. Optional.
type AuditRecorder interface {

	/*
		RecordLogin appends one attempt to the audit trail.

		Parameters:
		  - context: context.Context
		  - attempt: LoginAttempt

		Returns:
		  - error: Persistence failures (best-effort, never fatal)
	*/
	RecordLogin(context context.Context, attempt LoginAttempt) error
}

// LoginAttempt is one row of the login audit trail.
type LoginAttempt struct {
	Email     string
	IPAddress string
	UserAgent string
	Success   bool
}

// Credentials carries one login submission.
type Credentials struct {
	Email      string
	Password   string
	RememberMe bool
	UserAgent  string
	IPAddress  string
}

// LoginResult is the discriminated outcome of [Manager.Login].
//
// Login never returns a Go error: callers branch on Success and render
// Message inline without try/catch-style handling.
type LoginResult struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message,omitempty"`
	Session    *Session `json:"-"`
	User       *User    `json:"user,omitempty"`
	RedirectTo string   `json:"redirect_to,omitempty"`
}

// invalidCredentialsMessage is the only string ever shown for a failed
// login — raw transport errors stay server-side.
const invalidCredentialsMessage = "Invalid credentials. Please try again."

// # Manager

// Manager is the single source of truth for "is there a logged-in operator".
//
// # Mirror Discipline
//
// Exactly one in-memory mirror of live sessions exists per process, kept
// write-through-synchronized with the durable [Store]: every mutation hits
// storage together with the mirror, and reads re-hydrate the mirror so a
// restarted process converges on storage. Sign-out listeners fire once per
// transition into the "no session" state, never on every evaluation.
type Manager struct {
	store         *Store
	authenticator Authenticator
	notices       *NoticeStore
	audit         AuditRecorder
	log           *slog.Logger

	mu      sync.Mutex
	mirror  map[string]*Session
	signOut []func(sessionID string)
}

// NewManager constructs a [Manager] with its dependencies. The audit
// recorder may be nil when no relational store is configured.
func NewManager(store *Store, authenticator Authenticator, notices *NoticeStore, audit AuditRecorder, logger *slog.Logger) *Manager {
	return &Manager{
		store:         store,
		authenticator: authenticator,
		notices:       notices,
		audit:         audit,
		log:           logger,
		mirror:        make(map[string]*Session),
	}
}

// OnSignOut registers a listener fired once per session transition into the
// "no session" state. Must be called during wiring, before traffic.
func (manager *Manager) OnSignOut(listener func(sessionID string)) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.signOut = append(manager.signOut, listener)
}

// # Session Evaluation

/*
Current resolves the live session for sessionID, applying the full policy.

Description: Inactivity is checked before the read (a Get would refresh the
activity stamp and defeat the check). When a previously-live session has
gone absent, the transition fires sign-out listeners exactly once and a
one-shot "please login" notice is recorded under the session ID.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: The live session, or nil
*/
func (manager *Manager) Current(context context.Context, sessionID string) *Session {
	if sessionID == "" {
		return nil
	}

	if manager.store.CheckInactivity(context, sessionID) {
		manager.store.Clear(context, sessionID)
	}

	current := manager.store.Get(context, sessionID)

	manager.mu.Lock()
	_, wasLive := manager.mirror[sessionID]
	if current != nil {
		manager.mirror[sessionID] = current.clone()
	} else {
		delete(manager.mirror, sessionID)
	}
	listeners := manager.signOut
	manager.mu.Unlock()

	// Edge-triggered side effect: fire only on live -> absent, not on every
	// evaluation, so a bounced browser cannot enter a redirect loop.
	if wasLive && current == nil {
		manager.notices.Put(context, sessionID, PleaseLoginNotice)
		for _, listener := range listeners {
			listener(sessionID)
		}
	}

	return current
}

// # Authentication Flow

/*
Login verifies credentials upstream and establishes a console session.

Description: On success the upstream payload is merged with the submitted
email, persisted, and mirrored; the result carries the user (including role,
which the HTTP layer maps to a landing page). Every failure — rejection,
network outage, malformed payload — resolves to the same client-safe
message. Login never returns an error.

Parameters:
  - context: context.Context
  - credentials: Credentials

Returns:
  - LoginResult: Discriminated success/failure outcome
*/
func (manager *Manager) Login(context context.Context, credentials Credentials) LoginResult {
	payload, err := manager.authenticator.Authenticate(context, credentials.Email, credentials.Password)
	if err != nil || payload == nil || payload.Token == "" || payload.User == nil {
		manager.log.Warn("login_rejected",
			slog.String("email", credentials.Email),
			slog.String("ip", credentials.IPAddress),
			slog.Any("error", err),
		)
		manager.recordAudit(context, credentials, false)
		return LoginResult{Success: false, Message: invalidCredentialsMessage}
	}

	// Merge the submitted email: some platform deployments omit it from the
	// login payload.
	user := *payload.User
	if user.Email == "" {
		user.Email = credentials.Email
	}

	created := &Session{
		ID:    uuidv7.New(),
		User:  &user,
		Token: payload.Token,
	}

	stored := manager.store.Set(context, created, credentials.RememberMe)

	manager.mu.Lock()
	manager.mirror[stored.ID] = stored.clone()
	manager.mu.Unlock()

	manager.log.Info("login_succeeded",
		slog.String("session_id", stored.ID),
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	manager.recordAudit(context, credentials, true)

	return LoginResult{
		Success:    true,
		Session:    stored,
		User:       stored.User,
		RedirectTo: user.Role.LandingPath(),
	}
}

/*
Logout destroys the persisted and mirrored session.

Description: Idempotent. The HTTP layer follows up with a hard redirect to
the login route so all client-side state is discarded, not just the session.

Parameters:
  - context: context.Context
  - sessionID: string
*/
func (manager *Manager) Logout(context context.Context, sessionID string) {
	if sessionID == "" {
		return
	}

	manager.store.Clear(context, sessionID)

	manager.mu.Lock()
	_, wasLive := manager.mirror[sessionID]
	delete(manager.mirror, sessionID)
	listeners := manager.signOut
	manager.mu.Unlock()

	if wasLive {
		for _, listener := range listeners {
			listener(sessionID)
		}
	}
}

/*
SetUser patches the session's user record without a login round-trip.

Description: Escape hatch for flows like "profile updated". The new value is
persisted and mirrored atomically with respect to this manager.

Parameters:
  - context: context.Context
  - sessionID: string
  - user: *User

Returns:
  - *Session: The updated session, or nil when no live session exists
*/
func (manager *Manager) SetUser(context context.Context, sessionID string, user *User) *Session {
	if user == nil {
		return nil
	}

	current := manager.Current(context, sessionID)
	if current == nil {
		return nil
	}

	current.User = user
	updated := manager.store.Set(context, current, current.RememberMe)

	manager.mu.Lock()
	manager.mirror[sessionID] = updated.clone()
	manager.mu.Unlock()

	return updated
}

// recordAudit appends a login attempt best-effort.
func (manager *Manager) recordAudit(context context.Context, credentials Credentials, success bool) {
	if manager.audit == nil {
		return
	}

	attempt := LoginAttempt{
		Email:     credentials.Email,
		IPAddress: credentials.IPAddress,
		UserAgent: credentials.UserAgent,
		Success:   success,
	}

	if err := manager.audit.RecordLogin(context, attempt); err != nil {
		manager.log.Warn("login_audit_failed", slog.Any("error", err))
	}
}
