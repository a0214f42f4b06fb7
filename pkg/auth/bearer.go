package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sserrors "github.com/ssobridge/ssobridge/pkg/errors"
	"github.com/ssobridge/ssobridge/pkg/logger"
	"github.com/ssobridge/ssobridge/pkg/metrics"
)

// Bearer header errors
var (
	ErrAuthHeaderMissing       = errors.New("authorization header required")
	ErrInvalidAuthHeaderFormat = errors.New("invalid authorization header format, expected 'Bearer <token>'")
	ErrEmptyBearerToken        = errors.New("empty bearer token")
)

const bearerPrefix = "Bearer "

// Authenticator turns a raw bearer token into the caller's Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*Identity, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, rawToken string) (*Identity, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, rawToken string) (*Identity, error) {
	return f(ctx, rawToken)
}

// ExtractBearerToken returns the token from the request's Authorization header.
// The scheme is matched case-sensitively.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrAuthHeaderMissing
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrInvalidAuthHeaderFormat
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", ErrEmptyBearerToken
	}
	return token, nil
}

// BearerMiddleware authenticates every request with authn and stores the
// resulting Identity in the request context. Requests that cannot be
// authenticated are rejected with 401 and a WWW-Authenticate challenge; they
// never reach next as an identity without authorities.
//
// realm is advertised in the challenge. m may be nil.
func BearerMiddleware(authn Authenticator, realm string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ExtractBearerToken(r)
			if err != nil {
				m.ObserveAuthentication("bearer", metrics.OutcomeUnauthenticated)
				w.Header().Set("WWW-Authenticate", buildWWWAuthenticate(realm, false, ""))
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			identity, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if r.Context().Err() != nil {
					// client went away; nothing to answer
					return
				}
				status := sserrors.HTTPStatus(err)
				if !sserrors.IsAuthentication(err) {
					m.ObserveAuthentication("bearer", metrics.OutcomeError)
					logger.Warnw("bearer authentication failed", "error", err)
					http.Error(w, http.StatusText(status), status)
					return
				}
				m.ObserveAuthentication("bearer", metrics.OutcomeUnauthenticated)
				logger.Debugw("rejecting bearer token", "error", err)
				w.Header().Set("WWW-Authenticate", buildWWWAuthenticate(realm, true, describe(err)))
				http.Error(w, fmt.Sprintf("Invalid token: %s", describe(err)), http.StatusUnauthorized)
				return
			}

			m.ObserveAuthentication("bearer", metrics.OutcomeAuthenticated)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// describe returns the message of the outermost typed error without its cause,
// so verification internals are not echoed to the client.
func describe(err error) string {
	var e *sserrors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "invalid token"
}

// buildWWWAuthenticate builds an RFC 6750 WWW-Authenticate value.
// If includeError is true, error="invalid_token" and an optional description are appended.
func buildWWWAuthenticate(realm string, includeError bool, errDescription string) string {
	var parts []string

	if realm != "" {
		parts = append(parts, fmt.Sprintf(`realm="%s"`, EscapeQuotes(realm)))
	}

	if includeError {
		parts = append(parts, `error="invalid_token"`)
		if errDescription != "" {
			parts = append(parts, fmt.Sprintf(`error_description="%s"`, EscapeQuotes(errDescription)))
		}
	}
	if len(parts) == 0 {
		return "Bearer"
	}
	return bearerPrefix + strings.Join(parts, ", ")
}

// EscapeQuotes escapes quotes in a string for use in a quoted-string context.
func EscapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
