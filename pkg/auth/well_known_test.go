package auth

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProtectedResourceHandler(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewProtectedResourceHandler("", "https://sso.example.com/certs", nil))

	h := NewProtectedResourceHandler("https://sso.example.com/realms/camunda", "https://sso.example.com/certs", nil)
	require.NotNil(t, h)

	req := httptest.NewRequest(http.MethodGet, WellKnownOAuthResourcePath, nil)
	req.Host = "camunda.example.com"
	req.URL.Scheme = "https"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var meta ProtectedResourceMetadata
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&meta))
	assert.Equal(t, ProtectedResourceMetadata{
		Resource:               "https://camunda.example.com",
		AuthorizationServers:   []string{"https://sso.example.com/realms/camunda"},
		BearerMethodsSupported: []string{"header"},
		JWKSURI:                "https://sso.example.com/certs",
		ScopesSupported:        []string{"openid"},
	}, meta)
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	plain := httptest.NewRequest(http.MethodGet, "/app/", nil)
	plain.Host = "camunda.example.com:8080"
	assert.Equal(t, "http://camunda.example.com:8080", BaseURL(plain))

	secure := httptest.NewRequest(http.MethodGet, "/app/", nil)
	secure.Host = "camunda.example.com"
	secure.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://camunda.example.com", BaseURL(secure))

	forwarded := httptest.NewRequest(http.MethodGet, "/app/", nil)
	forwarded.Host = "camunda.example.com"
	forwarded.URL.Scheme = "https"
	assert.Equal(t, "https://camunda.example.com", BaseURL(forwarded))
}
