package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/cookies"
	"github.com/dmitrijs2005/extsession/internal/server/kvstore"
	"github.com/dmitrijs2005/extsession/internal/server/metrics"
	"github.com/dmitrijs2005/extsession/internal/server/oauth"
	"github.com/dmitrijs2005/extsession/internal/server/resolver"
	"github.com/dmitrijs2005/extsession/internal/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router   http.Handler
	storage  *session.Storage
	resolver *resolver.Resolver
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := kvstore.Open(context.Background(), kvstore.DriverSQLite, filepath.Join(t.TempDir(), "s.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	codec, err := cookies.NewCodec("secret")
	require.NoError(t, err)

	f := &fixture{
		storage: session.NewStorage(st, logging.Nop()),
		metrics: metrics.New(),
	}
	f.resolver = resolver.New(f.storage, codec, "ext_session", logging.Nop())
	flow := oauth.NewFlow(oauth.Config{
		ClusterURL: "https://cluster.example.com",
		BaseURL:    "https://ext.example.com",
		ClientID:   "client-id",
		Scopes:     []string{"company/products"},
	}, f.storage, f.resolver, logging.Nop())

	f.router = NewRouter(Deps{
		Flow:     flow,
		Resolver: f.resolver,
		Sessions: f.storage,
		Metrics:  f.metrics,
		Logger:   logging.Nop(),
	})
	return f
}

// session stores a session for companyID and returns the cookie binding it.
func (f *fixture) session(t *testing.T, companyID string, token string) (*session.Session, *http.Cookie) {
	t.Helper()
	id, err := session.GenerateID()
	require.NoError(t, err)

	s := session.New(id)
	s.CompanyID = session.StringPtr(companyID)
	s.ExtensionID = session.StringPtr("client-id")
	s.Scope = []string{"company/products"}
	if token != "" {
		s.AccessToken = session.StringPtr(token)
	}
	exp := time.Now().Add(time.Hour)
	s.Expires = &exp
	require.NoError(t, f.storage.Save(context.Background(), s))

	rec := httptest.NewRecorder()
	require.NoError(t, f.resolver.Issue(rec, s))
	cs := rec.Result().Cookies()
	require.Len(t, cs, 1)
	return s, cs[0]
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rec := f.do(req)

	assert.Equal(t, "req-1", rec.Header().Get(requestIDHeader))
}

func TestInstall_ThenCompanyPage(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/fp/install?company_id=123&application_id=app1", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"),
		"https://cluster.example.com/service/panel/authentication/v1.0/company/123/oauth/authorize"))

	cs := rec.Result().Cookies()
	require.Len(t, cs, 1)

	req := httptest.NewRequest(http.MethodGet, "/company/123/application/app1", nil)
	req.AddCookie(cs[0])
	rec = f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "123", body["company_id"])
	assert.Equal(t, "app1", body["application_id"])
	assert.Equal(t, "client-id", body["extension_id"])
	assert.Equal(t, false, body["authorized"])
}

func TestCompanyPage_RequiresSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/company/123", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompanyPage_CookieOfOtherCompany(t *testing.T) {
	f := newFixture(t)
	_, c := f.session(t, "123", "at")

	req := httptest.NewRequest(http.MethodGet, "/company/456", nil)
	c.Name = resolver.CookieName("ext_session", "456")
	req.AddCookie(c)
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToken(t *testing.T) {
	f := newFixture(t)
	_, c := f.session(t, "123", "at-123")

	req := httptest.NewRequest(http.MethodGet, "/api/token?company_id=123", nil)
	req.AddCookie(c)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "at-123", decode(t, rec)["accessToken"])
}

func TestToken_CompanyFromHeader(t *testing.T) {
	f := newFixture(t)
	_, c := f.session(t, "123", "at-123")

	req := httptest.NewRequest(http.MethodGet, "/api/token", nil)
	req.Header.Set("x-company-id", "123")
	req.AddCookie(c)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "at-123", decode(t, rec)["accessToken"])
}

func TestToken_NotYetAuthorized(t *testing.T) {
	f := newFixture(t)
	_, c := f.session(t, "123", "")

	req := httptest.NewRequest(http.MethodGet, "/api/token?company_id=123", nil)
	req.AddCookie(c)
	rec := f.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToken_Rejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		target string
		cookie *http.Cookie
	}{
		{name: "no company", target: "/api/token"},
		{name: "no cookie", target: "/api/token?company_id=123"},
		{
			name:   "forged cookie",
			target: "/api/token?company_id=123",
			cookie: &http.Cookie{Name: "ext_session_123", Value: "not-a-token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := f.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestUninstall_DeletesSession(t *testing.T) {
	f := newFixture(t)
	s, c := f.session(t, "123", "at")

	req := httptest.NewRequest(http.MethodPost, "/fp/uninstall", strings.NewReader(`{"company_id":123}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(c)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	got, err := f.storage.Load(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	cs := rec.Result().Cookies()
	require.Len(t, cs, 1)
	assert.Equal(t, "ext_session_123", cs[0].Name)
	assert.Less(t, cs[0].MaxAge, 0)
}

func TestUninstall_ServerToServerWithoutCookie(t *testing.T) {
	f := newFixture(t)
	s, _ := f.session(t, "123", "at")
	other, _ := f.session(t, "456", "at-456")

	rec := f.do(httptest.NewRequest(http.MethodPost, "/fp/uninstall", strings.NewReader(`{"company_id":123}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	got, err := f.storage.Load(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "the company's token must not stay resolvable")

	got, err = f.storage.Load(context.Background(), other.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestUninstall_WithoutSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/fp/uninstall", strings.NewReader(`{"company_id":"123"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
}

func TestUninstall_MissingCompany(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/fp/uninstall", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/ext/webhook",
		strings.NewReader(`{"event":{"name":"product","type":"delete"},"company_id":123}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = f.do(httptest.NewRequest(http.MethodPost, "/ext/webhook", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/fp/uninstall", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint_CountsRequests(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `extsession_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`)
}
