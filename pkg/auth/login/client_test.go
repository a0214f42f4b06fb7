package login

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssobridge/ssobridge/pkg/config"
)

func TestSafeTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target string
		want   string
	}{
		{"/app/tasklist", "/app/tasklist"},
		{"/app/cockpit?x=1#/dash", "/app/cockpit?x=1#/dash"},
		{"", "/app/"},
		{"https://evil.example.com/", "/app/"},
		{"//evil.example.com/app", "/app/"},
		{`/\evil.example.com`, "/app/"},
		{"app/relative", "/app/"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, safeTarget(tt.target, "/app/"))
		})
	}
}

func TestClient_RedirectURL(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/app/", nil)
	r.Host = "bridge.example.com"

	derived := &Client{RegistrationID: "keycloak"}
	assert.Equal(t, "http://bridge.example.com/app/login/oauth2/code/keycloak", derived.config(r).RedirectURL)

	fixed := &Client{RegistrationID: "keycloak", redirectURL: "https://camunda.example.com/cb"}
	assert.Equal(t, "https://camunda.example.com/cb", fixed.config(r).RedirectURL)
	assert.Empty(t, fixed.oauth2.RedirectURL, "the shared configuration is not modified")
}

func TestDiscover_MissingIssuer(t *testing.T) {
	t.Parallel()

	_, _, err := Discover(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrMissingIssuer)

	_, err = NewClient(context.Background(), config.RegistrationConfig{ID: "partner", JWKSURL: "https://partner.example.com/certs"}, nil)
	require.ErrorIs(t, err, ErrMissingIssuer)
}

func TestDiscover_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, _, err := Discover(context.Background(), srv.URL, srv.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover OIDC endpoints")
}
