package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserrors "github.com/ssobridge/ssobridge/pkg/errors"
	"github.com/ssobridge/ssobridge/pkg/metrics"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		authHeader    string
		expectedToken string
		expectedError error
	}{
		{
			name:          "valid_bearer_token",
			authHeader:    "Bearer eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",
			expectedToken: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",
		},
		{
			name:          "missing_authorization_header",
			expectedError: ErrAuthHeaderMissing,
		},
		{
			name:          "no_bearer_prefix",
			authHeader:    "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",
			expectedError: ErrInvalidAuthHeaderFormat,
		},
		{
			name:          "lowercase_bearer",
			authHeader:    "bearer abc",
			expectedError: ErrInvalidAuthHeaderFormat,
		},
		{
			name:          "basic_auth_instead_of_bearer",
			authHeader:    "Basic dXNlcjpwYXNz",
			expectedError: ErrInvalidAuthHeaderFormat,
		},
		{
			name:          "empty_token_with_trailing_spaces",
			authHeader:    "Bearer    ",
			expectedError: ErrEmptyBearerToken,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}

			token, err := ExtractBearerToken(req)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedToken, token)
		})
	}
}

func TestBuildWWWAuthenticate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Bearer", buildWWWAuthenticate("", false, ""))
	assert.Equal(t, `Bearer realm="ssobridge"`, buildWWWAuthenticate("ssobridge", false, ""))
	assert.Equal(t,
		`Bearer realm="ssobridge", error="invalid_token", error_description="bad \"kid\""`,
		buildWWWAuthenticate("ssobridge", true, `bad "kid"`))
}

func TestBearerMiddleware(t *testing.T) {
	t.Parallel()

	valid := &Identity{Subject: "u1", Authorities: []string{"ROLE_user"}}
	authn := AuthenticatorFunc(func(_ context.Context, raw string) (*Identity, error) {
		switch raw {
		case "good":
			return valid, nil
		case "expired":
			return nil, sserrors.NewTokenInvalidError("token has expired", errors.New("exp"))
		case "bad-shape":
			return nil, sserrors.NewClaimShapeError("realm_access must be an object", nil)
		case "no-keys":
			return nil, sserrors.NewKeyRetrievalError("failed to fetch signing keys", errors.New("dial tcp"))
		default:
			return nil, errors.New("unexpected")
		}
	})

	tests := []struct {
		name          string
		header        string
		wantStatus    int
		wantChallenge string
		wantOutcome   string
	}{
		{"valid token", "Bearer good", http.StatusOK, "", metrics.OutcomeAuthenticated},
		{"missing header", "", http.StatusUnauthorized, `Bearer realm="ssobridge"`, metrics.OutcomeUnauthenticated},
		{"expired token", "Bearer expired", http.StatusUnauthorized,
			`Bearer realm="ssobridge", error="invalid_token", error_description="token has expired"`, metrics.OutcomeUnauthenticated},
		{"malformed claims never pass with zero roles", "Bearer bad-shape", http.StatusUnauthorized,
			`Bearer realm="ssobridge", error="invalid_token", error_description="realm_access must be an object"`, metrics.OutcomeUnauthenticated},
		{"key retrieval failure", "Bearer no-keys", http.StatusUnauthorized,
			`Bearer realm="ssobridge", error="invalid_token", error_description="failed to fetch signing keys"`, metrics.OutcomeUnauthenticated},
		{"untyped failure", "Bearer other", http.StatusInternalServerError, "", metrics.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := metrics.New()
			var seen *Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			BearerMiddleware(authn, "ssobridge", m)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantChallenge, rec.Header().Get("WWW-Authenticate"))
			assert.InDelta(t, 1, testutil.ToFloat64(m.Authentications.WithLabelValues("bearer", tt.wantOutcome)), 0)
			if tt.wantStatus == http.StatusOK {
				assert.Same(t, valid, seen)
			} else {
				assert.Nil(t, seen)
				assert.NotContains(t, rec.Body.String(), "dial tcp")
			}
		})
	}
}
