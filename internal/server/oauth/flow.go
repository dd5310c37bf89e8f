// Package oauth runs the extension install flow: /fp/install creates a
// pending session and redirects to the platform's authorize page, and
// /fp/auth exchanges the code and attaches the token to that session.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/extsession/internal/common"
	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/resolver"
	"github.com/dmitrijs2005/extsession/internal/server/respond"
	"github.com/dmitrijs2005/extsession/internal/server/session"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Flow steps and outcomes reported to the event hook.
const (
	StepInstall  = "install"
	StepCallback = "callback"
	StepWebhooks = "webhooks"

	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeDeny  = "denied"
)

const exchangeTimeout = 30 * time.Second

type Config struct {
	ClusterURL   string
	BaseURL      string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// InstallTTL bounds how long a pending install session lives.
	InstallTTL time.Duration
}

// SessionStore is the part of session.Storage the flow needs.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session) error
}

// WebhookRegistrar subscribes a freshly installed company to webhooks.
type WebhookRegistrar interface {
	RegisterWebhooks(ctx context.Context, hc *http.Client, companyID string) error
}

type Flow struct {
	cfg      Config
	sessions SessionStore
	resolver *resolver.Resolver
	webhooks WebhookRegistrar
	logger   logging.Logger

	now        func() time.Time
	httpClient *http.Client
	onEvent    func(step, outcome string)
}

type Option func(*Flow)

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Flow) { f.httpClient = hc }
}

func WithNow(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// WithEventHook observes every install and callback outcome.
func WithEventHook(h func(step, outcome string)) Option {
	return func(f *Flow) { f.onEvent = h }
}

// WithWebhooks enables webhook registration after a successful callback.
func WithWebhooks(w WebhookRegistrar) Option {
	return func(f *Flow) { f.webhooks = w }
}

func NewFlow(cfg Config, sessions SessionStore, res *resolver.Resolver, logger logging.Logger, opts ...Option) *Flow {
	if logger == nil {
		logger = logging.Nop()
	}
	cfg.ClusterURL = strings.TrimRight(cfg.ClusterURL, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.InstallTTL <= 0 {
		cfg.InstallTTL = 15 * time.Minute
	}
	f := &Flow{
		cfg:      cfg,
		sessions: sessions,
		resolver: res,
		logger:   logger.With("module", "oauth"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// oauthConfig returns the company-scoped OAuth endpoints.
func (f *Flow) oauthConfig(companyID, applicationID string) *oauth2.Config {
	base := fmt.Sprintf("%s/service/panel/authentication/v1.0/company/%s/oauth",
		f.cfg.ClusterURL, url.PathEscape(companyID))

	redirect := f.cfg.BaseURL + "/fp/auth"
	if applicationID != "" {
		redirect += "?application_id=" + url.QueryEscape(applicationID)
	}

	return &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/authorize",
			TokenURL:  base + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirect,
		Scopes:      f.cfg.Scopes,
	}
}

// RedirectPath is where the browser lands after a successful install.
func RedirectPath(companyID, applicationID string) string {
	p := "/company/" + url.PathEscape(companyID)
	if applicationID != "" {
		p += "/application/" + url.PathEscape(applicationID)
	}
	return p
}

// Install handles GET /fp/install?company_id=&application_id=.
func (f *Flow) Install(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	applicationID := strings.TrimSpace(r.URL.Query().Get("application_id"))

	if companyID == "" {
		f.event(StepInstall, OutcomeDeny)
		respond.Error(w, http.StatusBadRequest, common.ErrorNoTenant.Error())
		return
	}

	id, err := session.GenerateID()
	if err != nil {
		f.fail(ctx, w, StepInstall, "failed to generate session id", err)
		return
	}

	now := f.now()
	expires := now.Add(f.cfg.InstallTTL)
	state := uuid.NewString()

	sess := session.New(id)
	sess.CompanyID = session.StringPtr(companyID)
	sess.ExtensionID = session.StringPtr(f.cfg.ClientID)
	sess.RedirectPath = session.StringPtr(RedirectPath(companyID, applicationID))
	sess.Scope = f.cfg.Scopes
	sess.State = &state
	sess.Expires = &expires

	if err := f.sessions.Save(ctx, sess); err != nil {
		f.fail(ctx, w, StepInstall, "failed to save install session", err)
		return
	}
	if err := f.resolver.Issue(w, sess); err != nil {
		f.fail(ctx, w, StepInstall, "failed to issue session cookie", err)
		return
	}

	f.logger.Info(ctx, "install started", "company_id", companyID, "session_id", id)
	f.event(StepInstall, OutcomeOK)

	authURL := f.oauthConfig(companyID, applicationID).AuthCodeURL(state)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /fp/auth?company_id=&code=&state=.
func (f *Flow) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	companyID := strings.TrimSpace(q.Get("company_id"))
	applicationID := strings.TrimSpace(q.Get("application_id"))

	if e := q.Get("error"); e != "" {
		f.event(StepCallback, OutcomeDeny)
		respond.Error(w, http.StatusBadRequest, "authorization failed: "+e)
		return
	}
	if companyID == "" {
		f.event(StepCallback, OutcomeDeny)
		respond.Error(w, http.StatusBadRequest, common.ErrorNoTenant.Error())
		return
	}
	code := q.Get("code")
	if code == "" {
		f.event(StepCallback, OutcomeDeny)
		respond.Error(w, http.StatusBadRequest, "missing code")
		return
	}

	sess, err := f.resolver.Resolve(r, companyID)
	if err != nil {
		f.fail(ctx, w, StepCallback, "failed to load install session", err)
		return
	}
	if sess == nil {
		f.event(StepCallback, OutcomeDeny)
		respond.Error(w, http.StatusUnauthorized, common.ErrorUnauthorized.Error())
		return
	}
	stateOK := sess.CheckState(q.Get("state"))
	// The nonce is single-use whatever the outcome, so its consumption is
	// persisted before anything else happens.
	if err := f.sessions.Save(ctx, sess); err != nil {
		f.fail(ctx, w, StepCallback, "failed to consume oauth state", err)
		return
	}
	if !stateOK {
		f.logger.Warn(ctx, "oauth state mismatch", "company_id", companyID, "session_id", sess.ID)
		f.event(StepCallback, OutcomeDeny)
		respond.Error(w, http.StatusForbidden, common.ErrStateMismatch.Error())
		return
	}

	conf := f.oauthConfig(companyID, applicationID)

	tok, err := f.exchange(ctx, conf, code)
	if err != nil {
		f.logger.Error(ctx, "token exchange failed", "company_id", companyID, "error", err)
		f.event(StepCallback, OutcomeError)
		respond.Error(w, http.StatusBadGateway, common.ErrTokenExchange.Error())
		return
	}

	now := f.now()
	sess.UpdateToken(session.TokenResponseFromOAuth2(tok, now))
	sess.ExtendFromToken(now)

	if err := f.sessions.Save(ctx, sess); err != nil {
		f.fail(ctx, w, StepCallback, "failed to save session", err)
		return
	}
	if err := f.resolver.Issue(w, sess); err != nil {
		f.fail(ctx, w, StepCallback, "failed to issue session cookie", err)
		return
	}

	f.logger.Info(ctx, "install completed", "company_id", companyID, "session_id", sess.ID)
	f.event(StepCallback, OutcomeOK)

	f.registerWebhooks(ctx, conf, tok, companyID)

	target := f.cfg.BaseURL + RedirectPath(companyID, applicationID)
	if sess.RedirectPath != nil && *sess.RedirectPath != "" {
		target = f.cfg.BaseURL + *sess.RedirectPath
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (f *Flow) exchange(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(f.clientContext(ctx), exchangeTimeout)
	defer cancel()

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTokenExchange, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", common.ErrTokenExchange)
	}
	return tok, nil
}

// registerWebhooks never fails the callback; the install is already saved.
func (f *Flow) registerWebhooks(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token, companyID string) {
	if f.webhooks == nil {
		return
	}
	hc := conf.Client(f.clientContext(ctx), tok)
	if err := f.webhooks.RegisterWebhooks(ctx, hc, companyID); err != nil {
		f.logger.Warn(ctx, "webhook registration failed", "company_id", companyID, "error", err)
		f.event(StepWebhooks, OutcomeError)
		return
	}
	f.event(StepWebhooks, OutcomeOK)
}

func (f *Flow) clientContext(ctx context.Context) context.Context {
	if f.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

func (f *Flow) fail(ctx context.Context, w http.ResponseWriter, step, msg string, err error) {
	f.logger.Error(ctx, msg, "error", err)
	f.event(step, OutcomeError)
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	respond.Error(w, status, common.ErrorInternal.Error())
}

func (f *Flow) event(step, outcome string) {
	if f.onEvent != nil {
		f.onEvent(step, outcome)
	}
}
