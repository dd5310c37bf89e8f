package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/oauth"
	"github.com/dmitrijs2005/extsession/internal/server/resolver"
)

// Deps are the collaborators the router dispatches to. Metrics may be nil.
type Deps struct {
	Flow     *oauth.Flow
	Resolver *resolver.Resolver
	Sessions SessionDeleter
	Metrics  interface {
		HTTPObserver
		Handler() http.Handler
	}
	Logger logging.Logger
}

// NewRouter builds the service's HTTP handler.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger.With("module", "http")
	h := &handlers{resolver: d.Resolver, sessions: d.Sessions, logger: logger}

	byQuery := resolver.FirstOf(resolver.FromQuery("company_id"), resolver.FromHeader("x-company-id"))
	byPath := resolver.FromPathValue("company_id")
	strict := func(tenant resolver.TenantFunc, fn http.HandlerFunc) http.Handler {
		return d.Resolver.Middleware(true, tenant)(fn)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /fp/install", d.Flow.Install)
	mux.HandleFunc("GET /fp/auth", d.Flow.Callback)
	mux.HandleFunc("POST /fp/uninstall", h.uninstall)
	mux.HandleFunc("POST /ext/webhook", h.webhook)

	mux.Handle("GET /api/token", strict(byQuery, h.token))
	mux.Handle("GET /company/{company_id}", strict(byPath, h.company))
	mux.Handle("GET /company/{company_id}/application/{application_id}", strict(byPath, h.company))

	mux.HandleFunc("GET /healthz", h.health)

	var obs HTTPObserver
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
		obs = d.Metrics
	}

	return ChainMiddleware(mux.ServeHTTP,
		RequestIDMiddleware,
		LoggingMiddleware(logger, obs),
		RecoverMiddleware(logger),
	)
}
