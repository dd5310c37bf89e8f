// Package common defines shared sentinel errors and small helpers used across
// the session store, the resolver and the HTTP layer. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrMalformedRecord = errors.New("malformed record")

	// Request-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorNoTenant     = errors.New("no company id")

	// OAuth flow errors.
	ErrStateMismatch = errors.New("state mismatch")
	ErrTokenExchange = errors.New("token exchange failed")
)
