package session

import (
	"context"
	"math"
	"time"

	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/kvstore"
)

// Storage persists sessions as JSON records keyed by session id.
type Storage struct {
	store       kvstore.Store
	logger      logging.Logger
	now         func() time.Time
	onMalformed func()
}

type StorageOption func(*Storage)

// WithNow replaces time.Now for TTL computation and expiry checks.
func WithNow(now func() time.Time) StorageOption {
	return func(s *Storage) { s.now = now }
}

// WithMalformedHook is called whenever a stored record cannot be decoded.
func WithMalformedHook(h func()) StorageOption {
	return func(s *Storage) { s.onMalformed = h }
}

func NewStorage(store kvstore.Store, logger logging.Logger, opts ...StorageOption) *Storage {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Storage{
		store:  store,
		logger: logger.With("module", "session_storage"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// companyIndexPrefix keys the company -> session id index. Session ids are
// hex, so index keys never collide with them.
const companyIndexPrefix = "company:"

func companyKey(companyID string) string {
	return companyIndexPrefix + companyID
}

// Save writes the session. A session with Expires gets a TTL of the
// remaining seconds (never negative); one without is stored with no expiry.
// A session bound to a company also becomes that company's indexed session,
// with the same TTL.
func (s *Storage) Save(ctx context.Context, sess *Session) error {
	blob, err := sess.ToRecord().encode()
	if err != nil {
		return err
	}

	if err := s.put(ctx, sess.ID, blob, sess.Expires); err != nil {
		return err
	}
	if company := sess.Company(); company != "" {
		return s.put(ctx, companyKey(company), sess.ID, sess.Expires)
	}
	return nil
}

func (s *Storage) put(ctx context.Context, key, value string, expires *time.Time) error {
	if expires == nil {
		return s.store.Set(ctx, key, value)
	}

	ttl := int64(math.Round(expires.Sub(s.now()).Seconds()))
	if ttl < 0 {
		ttl = 0
	}
	return s.store.SetEx(ctx, key, value, ttl)
}

// Load returns the stored session, or nil when there is none. Missing,
// expired and undecodable records all yield (nil, nil); only storage
// failures are returned as errors.
func (s *Storage) Load(ctx context.Context, id string) (*Session, error) {
	blob, found, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Debug(ctx, "session data not found", "session_id", id)
		return nil, nil
	}

	rec, err := decodeRecord(blob)
	if err != nil {
		s.logger.Warn(ctx, "malformed session record", "session_id", id, "error", err)
		if s.onMalformed != nil {
			s.onMalformed()
		}
		return nil, nil
	}

	sess := Clone(id, rec, false)

	// The key TTL has second granularity; Expires is checked to the millisecond.
	if sess.Expired(s.now()) {
		s.logger.Debug(ctx, "session expired", "session_id", id)
		if err := s.store.Del(ctx, id); err != nil {
			s.logger.Warn(ctx, "failed to delete expired session", "session_id", id, "error", err)
		}
		return nil, nil
	}

	return sess, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.store.Del(ctx, id)
}

// DeleteByCompany deletes the session last saved for companyID together
// with its index entry and returns the deleted id, or "" when the company
// has none. It needs no cookie, so server-to-server calls can use it.
func (s *Storage) DeleteByCompany(ctx context.Context, companyID string) (string, error) {
	key := companyKey(companyID)

	id, found, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}

	if err := s.store.Del(ctx, id); err != nil {
		return "", err
	}
	if err := s.store.Del(ctx, key); err != nil {
		return "", err
	}

	s.logger.Debug(ctx, "session deleted by company", "company_id", companyID, "session_id", id)
	return id, nil
}
