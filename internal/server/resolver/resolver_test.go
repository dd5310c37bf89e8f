package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/cookies"
	"github.com/dmitrijs2005/extsession/internal/server/kvstore"
	"github.com/dmitrijs2005/extsession/internal/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	resolver *Resolver
	storage  *session.Storage
	outcomes []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := kvstore.Open(context.Background(), kvstore.DriverSQLite, filepath.Join(t.TempDir(), "s.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	codec, err := cookies.NewCodec("test-secret")
	require.NoError(t, err)

	f := &fixture{storage: session.NewStorage(st, logging.Nop())}
	f.resolver = New(f.storage, codec, "ext_session", logging.Nop(),
		WithOutcomeHook(func(o string) { f.outcomes = append(f.outcomes, o) }))
	return f
}

func (f *fixture) saved(t *testing.T, companyID string, ttl time.Duration) *session.Session {
	t.Helper()
	id, err := session.GenerateID()
	require.NoError(t, err)
	s := session.New(id)
	s.CompanyID = session.StringPtr(companyID)
	exp := time.Now().Add(ttl)
	s.Expires = &exp
	require.NoError(t, f.storage.Save(context.Background(), s))
	return s
}

func (f *fixture) cookieFor(t *testing.T, s *session.Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, f.resolver.Issue(rec, s))
	cs := rec.Result().Cookies()
	require.Len(t, cs, 1)
	return cs[0]
}

func TestCookieName(t *testing.T) {
	assert.Equal(t, "ext_session_123", CookieName("ext_session", "123"))
}

func TestIssue_CookieAttributes(t *testing.T) {
	f := newFixture(t)
	s := f.saved(t, "123", time.Hour)

	c := f.cookieFor(t, s)

	assert.Equal(t, "ext_session_123", c.Name)
	assert.NotEqual(t, s.ID, c.Value, "value is signed, not the bare id")
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, s.Expires.Unix(), c.Expires.Unix())
}

func TestResolve_SameSession(t *testing.T) {
	f := newFixture(t)
	s := f.saved(t, "123", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.cookieFor(t, s))

	got, err := f.resolver.Resolve(req, "123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "123", got.Company())
	assert.Equal(t, []string{OutcomeResolved}, f.outcomes)
}

func TestResolve_NoSession(t *testing.T) {
	f := newFixture(t)
	s := f.saved(t, "123", time.Hour)
	other := f.saved(t, "456", time.Hour)

	tests := []struct {
		name    string
		cookie  *http.Cookie
		company string
		outcome string
	}{
		{name: "no cookie", company: "123", outcome: OutcomeNoCookie},
		{name: "cookie of another company", cookie: f.cookieFor(t, other), company: "123", outcome: OutcomeNoCookie},
		{name: "forged value", cookie: &http.Cookie{Name: "ext_session_123", Value: s.ID}, company: "123", outcome: OutcomeInvalid},
		{
			name: "value copied under another company's name",
			cookie: func() *http.Cookie {
				c := f.cookieFor(t, s)
				c.Name = "ext_session_456"
				return c
			}(),
			company: "456",
			outcome: OutcomeInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.outcomes = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}

			got, err := f.resolver.Resolve(req, tt.company)
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.Equal(t, []string{tt.outcome}, f.outcomes)
		})
	}
}

func TestResolve_DeletedSession(t *testing.T) {
	f := newFixture(t)
	s := f.saved(t, "123", time.Hour)
	c := f.cookieFor(t, s)
	require.NoError(t, f.storage.Delete(context.Background(), s.ID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	got, err := f.resolver.Resolve(req, "123")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{OutcomeNotFound}, f.outcomes)
}

type failingLoader struct{}

func (failingLoader) Load(context.Context, string) (*session.Session, error) {
	return nil, errors.New("db down")
}

func TestResolve_StorageErrorPropagates(t *testing.T) {
	codec, err := cookies.NewCodec("k")
	require.NoError(t, err)
	r := New(failingLoader{}, codec, "ext_session", nil)

	v, err := codec.Sign("sid", "1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "ext_session_1", Value: v})

	_, err = r.Resolve(req, "1")
	require.EqualError(t, err, "db down")
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	f.resolver.Clear(rec, "123")

	cs := rec.Result().Cookies()
	require.Len(t, cs, 1)
	assert.Equal(t, "ext_session_123", cs[0].Name)
	assert.Equal(t, -1, cs[0].MaxAge)
}
