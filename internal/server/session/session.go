// Package session holds the tenant-scoped session entity, its storage
// record and the Storage that persists sessions in a kvstore.Store.
package session

import (
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/extsession/internal/common"
)

// AccessMode is the OAuth access mode granted to a session.
type AccessMode string

const (
	AccessModeOnline  AccessMode = "online"
	AccessModeOffline AccessMode = "offline"
)

// idBytes is the number of random bytes in a session id (128 bits).
const idBytes = 16

// Session is one authenticated tenant context. Nil pointer fields are
// unset. ID is fixed at construction and is never part of the stored record.
type Session struct {
	ID string

	CompanyID      *string
	OrganizationID *string
	ExtensionID    *string
	RedirectPath   *string

	State *string
	Scope []string

	// Expires is the expiry of the session record itself.
	Expires *time.Time
	// ExpiresIn is the token lifetime in seconds as reported by the provider.
	ExpiresIn *int64
	// AccessTokenValidity is the absolute token expiry in epoch milliseconds.
	AccessTokenValidity *int64

	AccessMode   AccessMode
	AccessToken  *string
	RefreshToken *string
	CurrentUser  json.RawMessage

	isNew bool
}

// New returns a fresh session with every field at its default.
func New(id string) *Session {
	return &Session{
		ID:         id,
		AccessMode: AccessModeOnline,
		isNew:      true,
	}
}

// Clone builds a session with the given id from a stored record.
func Clone(id string, rec Record, isNew bool) *Session {
	s := New(id)
	s.isNew = isNew

	s.CompanyID = rec.CompanyID
	s.OrganizationID = rec.OrganizationID
	s.ExtensionID = rec.ExtensionID
	s.RedirectPath = rec.RedirectPath
	s.State = rec.State
	s.Scope = rec.Scope
	if rec.Expires != nil {
		t := time.UnixMilli(*rec.Expires)
		s.Expires = &t
	}
	s.ExpiresIn = rec.ExpiresIn
	s.AccessTokenValidity = rec.AccessTokenValidity
	if rec.AccessMode != "" {
		s.AccessMode = rec.AccessMode
	}
	s.AccessToken = rec.AccessToken
	s.RefreshToken = rec.RefreshToken
	s.CurrentUser = rec.CurrentUser
	return s
}

// IsNew reports whether the session was constructed rather than loaded.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Company returns the tenant id or "" when unset.
func (s *Session) Company() string {
	return deref(s.CompanyID)
}

// Token returns the access token or "" before the callback completed.
func (s *Session) Token() string {
	return deref(s.AccessToken)
}

// Authorized reports whether token material has been attached.
func (s *Session) Authorized() bool {
	return s.AccessToken != nil && *s.AccessToken != ""
}

// ToRecord maps the session to its storage representation.
func (s *Session) ToRecord() Record {
	rec := Record{
		CompanyID:           s.CompanyID,
		OrganizationID:      s.OrganizationID,
		ExtensionID:         s.ExtensionID,
		RedirectPath:        s.RedirectPath,
		State:               s.State,
		Scope:               s.Scope,
		ExpiresIn:           s.ExpiresIn,
		AccessTokenValidity: s.AccessTokenValidity,
		AccessMode:          s.AccessMode,
		AccessToken:         s.AccessToken,
		RefreshToken:        s.RefreshToken,
		CurrentUser:         s.CurrentUser,
	}
	if s.Expires != nil {
		ms := s.Expires.UnixMilli()
		rec.Expires = &ms
	}
	return rec
}

// UpdateToken copies the token material of tr into the session. It does not
// touch Expires; see ExtendFromToken.
func (s *Session) UpdateToken(tr TokenResponse) {
	s.AccessMode = tr.AccessMode
	if s.AccessMode == "" {
		s.AccessMode = AccessModeOnline
	}
	s.AccessToken = ptrOrNil(tr.AccessToken)
	s.CurrentUser = tr.CurrentUser
	s.RefreshToken = ptrOrNil(tr.RefreshToken)

	expiresIn := tr.ExpiresIn
	s.ExpiresIn = &expiresIn

	if tr.AccessTokenValidity > 0 {
		v := tr.AccessTokenValidity
		s.AccessTokenValidity = &v
	} else {
		s.AccessTokenValidity = nil
	}
}

// ExtendFromToken sets Expires to now + ExpiresIn. Sessions without a token
// lifetime keep their current expiry.
func (s *Session) ExtendFromToken(now time.Time) {
	if s.ExpiresIn == nil || *s.ExpiresIn <= 0 {
		return
	}
	exp := now.Add(time.Duration(*s.ExpiresIn) * time.Second)
	s.Expires = &exp
}

// Expired reports whether the session record is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s.Expires != nil && !s.Expires.After(now)
}

// CheckState compares state with the stored nonce and consumes it, so a
// nonce can be verified only once.
func (s *Session) CheckState(state string) bool {
	if s.State == nil || state == "" {
		return false
	}
	ok := subtle.ConstantTimeCompare([]byte(*s.State), []byte(state)) == 1
	s.State = nil
	return ok
}

// GenerateID returns a new random session id: 32 hex characters backed by
// crypto/rand.
func GenerateID() (string, error) {
	return common.MakeRandHexString(idBytes)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}
