package resolver

import (
	"context"

	"github.com/dmitrijs2005/extsession/internal/server/session"
)

type sessionContextKey struct{}

type companyContextKey struct{}

func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext returns the session stored by the middleware, if any.
func FromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

func WithCompany(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyContextKey{}, companyID)
}

// CompanyFromContext returns the company id the request was resolved for.
func CompanyFromContext(ctx context.Context) string {
	id, _ := ctx.Value(companyContextKey{}).(string)
	return id
}
