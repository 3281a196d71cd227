// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

/*
Package upstream implements the HTTP client for the marketplace platform API.

The console never owns marketplace data — every collection a screen shows is
fetched live from the platform on behalf of the signed-in operator, using the
opaque bearer token captured at login.

Core Responsibilities:

  - Transport: Bearer-token JSON requests with sane timeouts.
  - Resilience: A circuit breaker sheds load when the platform is down.
  - Error taxonomy: Every failure leaves this package as a client-safe
    [apperr.AppError]; raw payloads and transport errors never escape.
  - Normalization: Per-endpoint adapters unwrap the platform's inconsistent
    envelope shapes so callers always see one normalized form.
*/
package upstream

import (
	"bytes"
	stdctx "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nvbach/mercato/internal/platform/apperr"
)

// Breaker tuning. Five consecutive transport/5xx failures open the circuit;
// 4xx responses are the platform answering normally and never trip it.
const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
	breakerCountingInterval    = 60 * time.Second
	breakerHalfOpenRequests    = 3
)

// maxResponseBytes caps how much of an upstream body is read. Platform list
// payloads are well under this; anything bigger is a misbehaving endpoint.
const maxResponseBytes = 8 << 20

// Client is the platform API client.
//
// # Concurrency
//
// Client is safe for concurrent use; it holds no per-request state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *slog.Logger
}

// NewClient builds a platform API client rooted at baseURL.
//
// # Parameters
//   - baseURL: Platform API root, e.g. "https://api.mercato.app/api/v1".
//   - timeout: Per-request timeout, including body read.
//   - logger: Structured logger for breaker transitions and failures.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "platform-api",
		MaxRequests: breakerHalfOpenRequests,
		Interval:    breakerCountingInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream_breaker_state_changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		log:        logger,
	}
}

// rawResponse is what one round trip yields before status mapping.
type rawResponse struct {
	status int
	body   []byte
}

/*
do performs one JSON round trip against the platform API.

Description: The HTTP exchange runs inside the circuit breaker. Transport
failures and 5xx responses count against the breaker; 2xx-4xx are normal
platform answers and do not. The decoded body lands in out when out is
non-nil.

Parameters:
  - context: context.Context
  - method: HTTP method
  - path: Path relative to the API root (leading slash)
  - token: Opaque bearer credential, empty for unauthenticated endpoints
  - in: Request payload to JSON-encode, nil for bodyless requests
  - out: Destination for the decoded response body, nil to discard

Returns:
  - error: A client-safe [apperr.AppError], or nil
*/
func (client *Client) do(context stdctx.Context, method, path, token string, in, out any) error {

	// ── 1. Request Construction ───────────────────────────────────────────
	var requestBody io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return apperr.Internal(fmt.Errorf("upstream: encode request: %w", err))
		}
		requestBody = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(context, method, client.baseURL+path, requestBody)
	if err != nil {
		return apperr.Internal(fmt.Errorf("upstream: build request: %w", err))
	}

	request.Header.Set("Accept", "application/json")
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	// ── 2. Guarded Exchange ───────────────────────────────────────────────
	outcome, err := client.breaker.Execute(func() (any, error) {
		response, err := client.httpClient.Do(request)
		if err != nil {
			return nil, err
		}
		defer func() { _ = response.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}

		// 5xx means the platform itself is failing — let it count against
		// the breaker. Everything else is a normal answer.
		if response.StatusCode >= http.StatusInternalServerError {
			return rawResponse{status: response.StatusCode, body: body},
				fmt.Errorf("upstream: platform returned %d", response.StatusCode)
		}

		return rawResponse{status: response.StatusCode, body: body}, nil
	})

	if err != nil {
		return client.mapFailure(err, outcome)
	}

	// ── 3. Status Mapping ─────────────────────────────────────────────────
	raw := outcome.(rawResponse)

	switch {
	case raw.status >= http.StatusOK && raw.status < http.StatusMultipleChoices:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw.body, out); err != nil {
			client.log.Warn("upstream_parse_failed",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return apperr.Upstream("The platform API returned an unreadable response", err)
		}
		return nil

	case raw.status == http.StatusUnauthorized:
		return apperr.Unauthorized(serverMessage(raw.body, "Session expired. Please login again."))

	case raw.status == http.StatusForbidden:
		return apperr.Forbidden(serverMessage(raw.body, "You do not have access to this resource"))

	default:
		return apperr.Upstream(serverMessage(raw.body, "The platform API rejected the request"), nil)
	}
}

// Ping probes the platform API for reachability.
//
// Any HTTP answer counts as reachable — the readiness probe cares about the
// network path, not about upstream semantics.
func (client *Client) Ping(context stdctx.Context) error {
	request, err := http.NewRequestWithContext(context, http.MethodHead, client.baseURL, nil)
	if err != nil {
		return fmt.Errorf("upstream: build ping request: %w", err)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("upstream: ping failed: %w", err)
	}
	_ = response.Body.Close()

	return nil
}

// mapFailure converts breaker and transport failures to client-safe errors.
func (client *Client) mapFailure(err error, outcome any) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Unavailable("The platform API is temporarily unavailable", err)
	}

	// A 5xx that tripped the breaker path still carries a body worth mining
	// for a server-supplied message.
	if raw, ok := outcome.(rawResponse); ok && raw.status >= http.StatusInternalServerError {
		return apperr.Upstream(serverMessage(raw.body, "The platform API is experiencing problems"), err)
	}

	return apperr.Unavailable("Could not reach the platform API", err)
}

// serverMessage extracts the platform's human-readable error string.
//
// The platform is inconsistent here too: some endpoints answer
// {"error": "..."}, others {"message": "..."}.
func serverMessage(body []byte, fallback string) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return fallback
}
