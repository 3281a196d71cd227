// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

// Package sec provides cryptographic primitives for the console session layer.
//
// # Architecture
//
// This package isolates security-sensitive code (cookie signing, role
// hierarchy) from the domain logic. It acts as an Infrastructure service
// injected into the session manager and the route guard.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLength guards against trivially brute-forceable HMAC keys.
const minSecretLength = 32

// cookieClaims is the payload embedded inside the signed session cookie.
//
// # Why sign the cookie?
//
// The cookie carries only the opaque session ID — the session record itself
// (user, upstream bearer token, expiry bookkeeping) lives server-side. The
// HS256 signature stops a browser from fabricating or tampering with session
// IDs; a bad signature is treated exactly like a missing cookie (fail closed).
type cookieClaims struct {
	jwt.RegisteredClaims
}

// CookieSigner signs and verifies session cookies using HS256.
type CookieSigner struct {
	secret []byte
	issuer string
}

// NewCookieSigner creates a new CookieSigner.
//
// It rejects secrets shorter than 32 bytes at startup rather than running
// with a weak key.
func NewCookieSigner(secret, issuer string) (*CookieSigner, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("sec: session secret must be at least %d bytes", minSecretLength)
	}

	return &CookieSigner{
		secret: []byte(secret),
		issuer: issuer,
	}, nil
}

// Sign produces a signed cookie value carrying the given session ID.
//
// The embedded expiry mirrors the session record's own ExpiresAt so a stale
// cookie is rejected before the store is ever consulted.
func (signer *CookieSigner) Sign(sessionID string, expiresAt time.Time) (string, error) {
	currentTime := time.Now()
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    signer.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(signer.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign session cookie: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature and validity of a cookie value and returns the
// session ID it carries.
func (signer *CookieSigner) Verify(cookieValue string) (string, error) {
	token, err := jwt.ParseWithClaims(cookieValue, &cookieClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return signer.secret, nil
	}, jwt.WithIssuer(signer.issuer))

	if err != nil {
		return "", fmt.Errorf("sec: invalid session cookie: %w", err)
	}

	claims, ok := token.Claims.(*cookieClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("sec: invalid session cookie claims")
	}

	return claims.Subject, nil
}
