package resolver

import (
	"net/http"

	"github.com/dmitrijs2005/extsession/internal/server/respond"
)

// Middleware resolves the session of the company named by tenant and puts
// it in the request context. In strict mode a request without a resolvable
// session is answered with 401; otherwise it proceeds without one.
func (r *Resolver) Middleware(strict bool, tenant TenantFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			companyID := tenant(req)
			if companyID == "" {
				if strict {
					respond.Error(w, http.StatusUnauthorized, "missing company id")
					return
				}
				next.ServeHTTP(w, req)
				return
			}

			ctx := WithCompany(req.Context(), companyID)

			sess, err := r.Resolve(req.WithContext(ctx), companyID)
			if err != nil {
				r.logger.Error(ctx, "session lookup failed", "company_id", companyID, "error", err)
				respond.Error(w, http.StatusInternalServerError, "internal error")
				return
			}
			if sess == nil && strict {
				respond.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if sess != nil {
				ctx = WithSession(ctx, sess)
			}

			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
