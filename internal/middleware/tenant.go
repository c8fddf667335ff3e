package middleware

import (
	"context"
	"net/http"
	"strings"
)

const tenantKey ctxKey = 2

// TenantHeader carries the tenant the upstream auth layer resolved.
const TenantHeader = "X-Tenant-ID"

// Tenant rejects requests without a tenant and scopes the context to it.
func Tenant() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := strings.TrimSpace(r.Header.Get(TenantHeader))
			if tid == "" {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"missing tenant","kind":"invalid_input"}`))
				return
			}
			ctx := context.WithValue(r.Context(), tenantKey, tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetTenant(r *http.Request) string {
	if v, ok := r.Context().Value(tenantKey).(string); ok {
		return v
	}
	return ""
}
