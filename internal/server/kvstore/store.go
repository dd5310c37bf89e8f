// Package kvstore is a prefix-namespaced key/value store with optional
// per-key expiry. SQL backends (SQLite, PostgreSQL) keep expired rows until
// a read or the Sweeper removes them; Redis expires keys natively.
package kvstore

import (
	"context"
	"time"
)

// Store is implemented by every backend.
//
// Get reports found=false for missing and for expired keys; an expired row
// met on the read path is deleted before Get returns.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set upserts value and clears any expiry on key.
	Set(ctx context.Context, key, value string) error
	// SetEx upserts value with an absolute expiry of now+ttlSeconds.
	// Negative ttlSeconds is treated as 0.
	SetEx(ctx context.Context, key, value string, ttlSeconds int64) error
	// Del removes key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error
	// DeleteExpired removes expired entries under this store's prefix and
	// returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
	Close() error
}

// Clock returns the current time.
type Clock func() time.Time

func prefixFor(prefix string) string {
	if prefix == "" {
		return ""
	}
	return prefix + ":"
}

func clampTTL(ttlSeconds int64) int64 {
	if ttlSeconds < 0 {
		return 0
	}
	return ttlSeconds
}
