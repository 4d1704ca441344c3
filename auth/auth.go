// Package auth implements the token *shape* of spec.md's authentication
// slots (CLIENT_BLOCK/SERVER_BLOCK carry it; §1 excludes the cryptography
// of mutual authentication itself, only the wire slots are specified).
// The core validates signed tokens it is handed; it never decides what a
// token's claims mean, and minting is provided only so tests can produce
// one without a separate service.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is the minimal identity claim carried by a UDA auth token: who
// the client is (DOI, spec.md §4.8) and when the token expires.
type Claims struct {
	jwt.RegisteredClaims
	DOI string `json:"doi"`
}

// ErrMissingToken is returned by Validate when CLIENT_BLOCK carries no
// AuthToken while the server has authentication enabled.
var ErrMissingToken = errors.New("auth: no token presented")

// Validator checks tokens signed with a single shared secret. A real
// deployment would swap this for asymmetric keys; the signing mechanism
// is a deployment detail, not a protocol one (spec.md §1).
type Validator struct {
	secret []byte
}

// NewValidator returns a Validator that verifies tokens with secret.
func NewValidator(secret []byte) *Validator { return &Validator{secret: secret} }

// Validate parses and verifies token, returning its claims. A connection
// presenting an invalid or expired token must be rejected with AuthError
// before dispatch (spec.md §7, §10).
func (v *Validator) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("auth: token rejected")
	}
	return claims, nil
}

// Issue mints a token for doi, valid for ttl. Used by tests, never by the
// core dispatch path itself.
func (v *Validator) Issue(doi string, ttl time.Duration) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		DOI: doi,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(v.secret)
}
