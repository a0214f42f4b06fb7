package auth

import (
	"net/http"

	"github.com/ssobridge/ssobridge/pkg/logger"
	"github.com/ssobridge/ssobridge/pkg/metrics"
)

// RequireAuthority admits only callers holding role. Requests without an
// identity are handed to unauthenticated, which typically starts a login;
// callers lacking the role get 403.
func RequireAuthority(role string, unauthenticated http.HandlerFunc, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				m.ObserveAuthentication("session", metrics.OutcomeUnauthenticated)
				unauthenticated(w, r)
				return
			}
			if !identity.HasAuthority(role) {
				m.ObserveAuthentication("session", metrics.OutcomeForbidden)
				logger.Debugw("caller lacks required role", "subject", identity.Subject, "role", role, "path", r.URL.Path)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			m.ObserveAuthentication("session", metrics.OutcomeAuthenticated)
			next.ServeHTTP(w, r)
		})
	}
}
