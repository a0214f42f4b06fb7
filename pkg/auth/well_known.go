package auth

import (
	"encoding/json"
	"net/http"

	"github.com/ssobridge/ssobridge/pkg/logger"
)

// WellKnownOAuthResourcePath is where protected resource metadata is served (RFC 9728).
const WellKnownOAuthResourcePath = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadata tells API clients which authorization server
// issues the bearer tokens this server accepts.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	JWKSURI                string   `json:"jwks_uri,omitempty"`
	ScopesSupported        []string `json:"scopes_supported"`
}

// NewProtectedResourceHandler serves the resource server's RFC 9728 metadata.
// The resource URL is derived from the request, so it follows forwarded
// headers once they have been applied. It returns nil when issuer is empty.
func NewProtectedResourceHandler(issuer, jwksURL string, scopes []string) http.Handler {
	if issuer == "" {
		return nil
	}
	if len(scopes) == 0 {
		scopes = []string{"openid"}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Discovery is public, so any origin may read it.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")

		meta := ProtectedResourceMetadata{
			Resource:               BaseURL(r),
			AuthorizationServers:   []string{issuer},
			BearerMethodsSupported: []string{"header"},
			JWKSURI:                jwksURL,
			ScopesSupported:        scopes,
		}
		if err := json.NewEncoder(w).Encode(meta); err != nil {
			logger.Errorf("Failed to encode protected resource metadata: %v", err)
		}
	})
}

// BaseURL returns the scheme and host the client used to reach this server.
func BaseURL(r *http.Request) string {
	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host
}
