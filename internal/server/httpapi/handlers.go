package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/resolver"
	"github.com/dmitrijs2005/extsession/internal/server/respond"
	"github.com/dmitrijs2005/extsession/internal/server/session"
)

const maxBodyBytes = 1 << 20

// SessionDeleter removes stored sessions by id or by company.
type SessionDeleter interface {
	Delete(ctx context.Context, id string) error
	DeleteByCompany(ctx context.Context, companyID string) (string, error)
}

type handlers struct {
	resolver *resolver.Resolver
	sessions SessionDeleter
	logger   logging.Logger
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// token returns the access token of the tenant session resolved by the
// strict middleware.
func (h *handlers) token(w http.ResponseWriter, r *http.Request) {
	sess, ok := resolver.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !sess.Authorized() {
		respond.Error(w, http.StatusNotFound, "no access token available, authenticate first")
		return
	}
	respond.JSON(w, http.StatusOK, tokenResponse{AccessToken: sess.Token()})
}

type companySummary struct {
	CompanyID     string          `json:"company_id"`
	ApplicationID string          `json:"application_id,omitempty"`
	ExtensionID   string          `json:"extension_id,omitempty"`
	Scope         []string        `json:"scope"`
	AccessMode    string          `json:"access_mode"`
	Authorized    bool            `json:"authorized"`
	Expires       *time.Time      `json:"expires,omitempty"`
	CurrentUser   json.RawMessage `json:"current_user,omitempty"`
}

func (h *handlers) company(w http.ResponseWriter, r *http.Request) {
	sess, ok := resolver.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary := companySummary{
		CompanyID:     sess.Company(),
		ApplicationID: r.PathValue("application_id"),
		Scope:         sess.Scope,
		AccessMode:    string(sess.AccessMode),
		Authorized:    sess.Authorized(),
		Expires:       sess.Expires,
		CurrentUser:   sess.CurrentUser,
	}
	if sess.ExtensionID != nil {
		summary.ExtensionID = *sess.ExtensionID
	}
	if summary.Scope == nil {
		summary.Scope = []string{}
	}

	respond.JSON(w, http.StatusOK, summary)
}

// uninstall drops the tenant sessions of the body's company_id. The
// platform calls it without the browser cookie, so the company index is
// always consulted; a cookie-bound session is deleted as well. It succeeds
// whether or not a session existed.
func (h *handlers) uninstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	companyID, err := companyFromBody(w, r)
	if err != nil || companyID == "" {
		respond.Error(w, http.StatusBadRequest, "company_id is required")
		return
	}

	sess, err := h.resolver.Resolve(r, companyID)
	if err != nil {
		h.logger.Error(ctx, "session lookup failed", "company_id", companyID, "error", err)
		respond.Success(w, false)
		return
	}
	if sess != nil {
		if err := h.sessions.Delete(ctx, sess.ID); err != nil {
			h.logger.Error(ctx, "session delete failed", "company_id", companyID, "error", err)
			respond.Success(w, false)
			return
		}
	}

	indexed, err := h.sessions.DeleteByCompany(ctx, companyID)
	if err != nil {
		h.logger.Error(ctx, "session delete failed", "company_id", companyID, "error", err)
		respond.Success(w, false)
		return
	}

	h.resolver.Clear(w, companyID)
	h.logger.Info(ctx, "extension uninstalled", "company_id", companyID, "had_session", sess != nil || indexed != "")
	respond.Success(w, true)
}

type webhookEvent struct {
	Event     json.RawMessage `json:"event"`
	CompanyID any             `json:"company_id"`
}

func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	var ev webhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&ev); err != nil {
		h.logger.Error(r.Context(), "bad webhook body", "error", err)
		respond.Success(w, false)
		return
	}

	h.logger.Info(r.Context(), "webhook received",
		"event", string(ev.Event),
		"company_id", idString(ev.CompanyID),
	)
	respond.Success(w, true)
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// companyFromBody reads company_id from a JSON body, accepting a string or a
// number, and falls back to the query string.
func companyFromBody(w http.ResponseWriter, r *http.Request) (string, error) {
	if r.Body != nil && r.ContentLength != 0 {
		var body struct {
			CompanyID any `json:"company_id"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			return "", err
		}
		if id := idString(body.CompanyID); id != "" {
			return id, nil
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("company_id")), nil
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

var _ SessionDeleter = (*session.Storage)(nil)
