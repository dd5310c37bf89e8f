// Package resolver maps an inbound request and a company id to the session
// that governs it. Each company gets its own cookie, named
// "{base}_{company_id}", whose signed value carries the session id.
package resolver

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/cookies"
	"github.com/dmitrijs2005/extsession/internal/server/session"
)

// Resolution outcomes reported to the outcome hook.
const (
	OutcomeResolved = "resolved"
	OutcomeNoCookie = "no_cookie"
	OutcomeInvalid  = "invalid_cookie"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// SessionLoader is the part of session.Storage the resolver needs.
type SessionLoader interface {
	Load(ctx context.Context, id string) (*session.Session, error)
}

type Resolver struct {
	loader   SessionLoader
	codec    *cookies.Codec
	baseName string
	logger   logging.Logger
	onResult func(outcome string)
}

type Option func(*Resolver)

// WithOutcomeHook registers h to observe every resolution outcome.
func WithOutcomeHook(h func(outcome string)) Option {
	return func(r *Resolver) { r.onResult = h }
}

func New(loader SessionLoader, codec *cookies.Codec, baseName string, logger logging.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &Resolver{
		loader:   loader,
		codec:    codec,
		baseName: baseName,
		logger:   logger.With("module", "resolver"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CookieName returns the per-company cookie name.
func CookieName(base, companyID string) string {
	return base + "_" + companyID
}

func (r *Resolver) CookieName(companyID string) string {
	return CookieName(r.baseName, companyID)
}

// Resolve returns the session bound to companyID by the request's cookie.
// A missing, forged or expired cookie and a missing session all yield
// (nil, nil); only storage failures are errors.
func (r *Resolver) Resolve(req *http.Request, companyID string) (*session.Session, error) {
	ctx := req.Context()

	c, err := req.Cookie(r.CookieName(companyID))
	if err != nil || c.Value == "" {
		r.report(OutcomeNoCookie)
		return nil, nil
	}

	id, err := r.codec.Verify(c.Value, companyID)
	if err != nil {
		r.logger.Debug(ctx, "rejected session cookie", "company_id", companyID, "error", err)
		r.report(OutcomeInvalid)
		return nil, nil
	}

	sess, err := r.loader.Load(ctx, id)
	if err != nil {
		r.report(OutcomeError)
		return nil, err
	}
	if sess == nil {
		r.report(OutcomeNotFound)
		return nil, nil
	}
	if sess.CompanyID != nil && sess.Company() != companyID {
		r.logger.Warn(ctx, "session company mismatch", "company_id", companyID, "session_id", id)
		r.report(OutcomeInvalid)
		return nil, nil
	}

	r.report(OutcomeResolved)
	return sess, nil
}

// Issue writes the session cookie for sess. The cookie expires together
// with the session record.
func (r *Resolver) Issue(w http.ResponseWriter, sess *session.Session) error {
	var expires time.Time
	if sess.Expires != nil {
		expires = *sess.Expires
	}

	value, err := r.codec.Sign(sess.ID, sess.Company(), expires)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     r.CookieName(sess.Company()),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
	return nil
}

// Clear expires the cookie of companyID in the browser.
func (r *Resolver) Clear(w http.ResponseWriter, companyID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.CookieName(companyID),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (r *Resolver) report(outcome string) {
	if r.onResult != nil {
		r.onResult(outcome)
	}
}
