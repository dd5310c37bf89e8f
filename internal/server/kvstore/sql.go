package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/extsession/internal/dbx"
)

// SQLStore keeps entries in the "storage" table. Expiry is stored as
// absolute epoch seconds in the ttl column, NULL meaning no expiry.
type SQLStore struct {
	db     dbx.DBTX
	closer func() error
	d      dialect
	prefix string
	now    Clock
}

// Option configures an SQLStore.
type Option func(*SQLStore)

// WithClock replaces time.Now as the store's notion of the current time.
func WithClock(c Clock) Option {
	return func(s *SQLStore) {
		if c != nil {
			s.now = c
		}
	}
}

// NewSQLiteStore returns a store over a SQLite database whose schema is
// already migrated.
func NewSQLiteStore(db *sql.DB, prefix string, opts ...Option) *SQLStore {
	return newSQLStore(db, db.Close, sqliteDialect, prefix, opts...)
}

// NewPostgresStore returns a store over a PostgreSQL database whose schema
// is already migrated.
func NewPostgresStore(db *sql.DB, prefix string, opts ...Option) *SQLStore {
	return newSQLStore(db, db.Close, postgresDialect, prefix, opts...)
}

func newSQLStore(db dbx.DBTX, closer func() error, d dialect, prefix string, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:     db,
		closer: closer,
		d:      d,
		prefix: prefixFor(prefix),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SQLStore) key(k string) string {
	return s.prefix + k
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value sql.NullString
		ttl   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.d.get, s.key(key)).Scan(&value, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get storage[%s]: %w", key, err)
	}

	now := s.now().Unix()
	if ttl.Valid && ttl.Int64 < now {
		// Conditional delete: a concurrent writer may have refreshed the key
		// since it was read, and a concurrent reader may already have removed it.
		if _, err := s.db.ExecContext(ctx, s.d.delIfExpired, s.key(key), now); err != nil {
			return "", false, fmt.Errorf("failed to expire storage[%s]: %w", key, err)
		}
		return "", false, nil
	}

	return value.String, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.d.set, s.key(key), value); err != nil {
		return fmt.Errorf("failed to set storage[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLStore) SetEx(ctx context.Context, key, value string, ttlSeconds int64) error {
	expiresAt := s.now().Unix() + clampTTL(ttlSeconds)
	if _, err := s.db.ExecContext(ctx, s.d.setEx, s.key(key), value, expiresAt); err != nil {
		return fmt.Errorf("failed to setex storage[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.d.del, s.key(key)); err != nil {
		return fmt.Errorf("failed to delete storage[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.d.deleteExpired, s.now().Unix(), len(s.prefix), s.prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired storage rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired storage rows: %w", err)
	}
	return n, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Dialect reports the SQL backend name ("sqlite" or "postgres").
func (s *SQLStore) Dialect() string {
	return s.d.name
}
