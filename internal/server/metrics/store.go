package metrics

import (
	"context"
	"time"

	"github.com/dmitrijs2005/extsession/internal/server/kvstore"
)

// InstrumentStore wraps s so every operation is timed.
func (m *Metrics) InstrumentStore(s kvstore.Store) kvstore.Store {
	return &instrumentedStore{next: s, m: m}
}

type instrumentedStore struct {
	next kvstore.Store
	m    *Metrics
}

func (s *instrumentedStore) Get(ctx context.Context, key string) (v string, found bool, err error) {
	defer func(start time.Time) { s.m.observeStore("get", start, err) }(time.Now())
	return s.next.Get(ctx, key)
}

func (s *instrumentedStore) Set(ctx context.Context, key, value string) (err error) {
	defer func(start time.Time) { s.m.observeStore("set", start, err) }(time.Now())
	return s.next.Set(ctx, key, value)
}

func (s *instrumentedStore) SetEx(ctx context.Context, key, value string, ttlSeconds int64) (err error) {
	defer func(start time.Time) { s.m.observeStore("setex", start, err) }(time.Now())
	return s.next.SetEx(ctx, key, value, ttlSeconds)
}

func (s *instrumentedStore) Del(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { s.m.observeStore("del", start, err) }(time.Now())
	return s.next.Del(ctx, key)
}

func (s *instrumentedStore) DeleteExpired(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { s.m.observeStore("delete_expired", start, err) }(time.Now())
	return s.next.DeleteExpired(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
