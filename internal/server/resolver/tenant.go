package resolver

import (
	"net/http"
	"strings"
)

// TenantFunc extracts the company id from a request. "" means none.
type TenantFunc func(r *http.Request) string

func FromQuery(name string) TenantFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.URL.Query().Get(name))
	}
}

func FromHeader(name string) TenantFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
}

// FromPathValue reads a wildcard of the matched http.ServeMux pattern.
func FromPathValue(name string) TenantFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.PathValue(name))
	}
}

// FirstOf returns the first non-empty result of fns.
func FirstOf(fns ...TenantFunc) TenantFunc {
	return func(r *http.Request) string {
		for _, fn := range fns {
			if v := fn(r); v != "" {
				return v
			}
		}
		return ""
	}
}
