// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nvbach/mercato/internal/platform/constants"
)

// # Storage Keys

// sessionKey namespaces a session ID into the shared backend keyspace.
func sessionKey(sessionID string) string {
	return constants.KeyPrefixSession + sessionID
}

// noticeKey namespaces a notice ID into the shared backend keyspace.
func noticeKey(noticeID string) string {
	return constants.KeyPrefixNotice + noticeID
}

// # One-Shot Notices

// NoticeStore holds transient, read-once messages for the login screen
// (e.g. "Please login to access this page" after a guard redirect).
//
// A notice is destroyed the moment it is read — reloading the login page
// shows it at most once.
type NoticeStore struct {
	backend Backend
	log     *slog.Logger
}

// NewNoticeStore creates a [NoticeStore] on the given backend.
func NewNoticeStore(backend Backend, logger *slog.Logger) *NoticeStore {
	return &NoticeStore{backend: backend, log: logger}
}

/*
Put records a one-shot notice under noticeID.

Description: Failures are logged and swallowed — a missing notice only costs
the user an explanatory message, never a crash.

Parameters:
  - context: context.Context
  - noticeID: string
  - message: string
*/
func (store *NoticeStore) Put(context context.Context, noticeID, message string) {
	if noticeID == "" || message == "" {
		return
	}

	if err := store.backend.Set(context, noticeKey(noticeID), []byte(message), NoticeTTL); err != nil {
		store.log.Warn("notice_put_failed",
			slog.String("notice_id", noticeID),
			slog.Any("error", err),
		)
	}
}

/*
Take reads and destroys the notice stored under noticeID.

Parameters:
  - context: context.Context
  - noticeID: string

Returns:
  - string: The notice message
  - bool: false when no notice was pending
*/
func (store *NoticeStore) Take(context context.Context, noticeID string) (string, bool) {
	if noticeID == "" {
		return "", false
	}

	raw, err := store.backend.Get(context, noticeKey(noticeID))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			store.log.Warn("notice_read_failed",
				slog.String("notice_id", noticeID),
				slog.Any("error", err),
			)
		}
		return "", false
	}

	// Read-once: destroy before returning.
	_ = store.backend.Delete(context, noticeKey(noticeID))

	return string(raw), true
}
