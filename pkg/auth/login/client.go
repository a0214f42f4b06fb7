// Package login implements the browser login flow: an OAuth2 authorization
// code exchange against a discovered OIDC provider, after which the caller is
// resolved from the access token and kept in an in-memory session.
package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/ssobridge/ssobridge/pkg/auth"
	"github.com/ssobridge/ssobridge/pkg/config"
	"github.com/ssobridge/ssobridge/pkg/logger"
)

// Paths served by the login flow. Both live under the web application prefix.
const (
	AuthorizationPathPrefix = "/app/oauth2/authorization/"
	CallbackPathPrefix      = "/app/login/oauth2/code/"
)

// ErrMissingIssuer is returned when a registration cannot be discovered.
var ErrMissingIssuer = errors.New("registration has no issuer to discover")

// providerMetadata holds the discovery fields go-oidc does not expose directly.
type providerMetadata struct {
	JWKSURL string `json:"jwks_uri"`
}

// Client is one registration's view of its identity provider.
type Client struct {
	RegistrationID string
	// JWKSURL verifies the registration's access tokens.
	JWKSURL string

	redirectURL string
	oauth2      oauth2.Config
	verifier    *oidc.IDTokenVerifier
	httpClient  *http.Client
}

// Discover reads the provider's discovery document and returns the provider
// and its JWKS URL.
func Discover(ctx context.Context, issuer string, httpClient *http.Client) (*oidc.Provider, string, error) {
	if issuer == "" {
		return nil, "", ErrMissingIssuer
	}
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, "", fmt.Errorf("failed to discover OIDC endpoints for %s: %w", issuer, err)
	}
	var meta providerMetadata
	if err := provider.Claims(&meta); err != nil {
		return nil, "", fmt.Errorf("failed to read provider metadata: %w", err)
	}
	return provider, meta.JWKSURL, nil
}

// NewClient discovers reg.Issuer and prepares the code exchange for reg.
// A configured jwks_url takes precedence over the discovered one.
func NewClient(ctx context.Context, reg config.RegistrationConfig, httpClient *http.Client) (*Client, error) {
	provider, jwksURL, err := Discover(ctx, reg.Issuer, httpClient)
	if err != nil {
		return nil, err
	}
	if reg.JWKSURL != "" {
		jwksURL = reg.JWKSURL
	}

	endpoint := provider.Endpoint()
	c := &Client{
		RegistrationID: reg.ID,
		JWKSURL:        jwksURL,
		redirectURL:    reg.RedirectURL,
		oauth2: oauth2.Config{
			ClientID:     reg.ClientID,
			ClientSecret: reg.ClientSecret,
			Scopes:       reg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoint.AuthURL,
				TokenURL:  endpoint.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier:   provider.Verifier(&oidc.Config{ClientID: reg.ClientID}),
		httpClient: httpClient,
	}

	logger.Debugw("login client discovered",
		"registration", reg.ID, "issuer", reg.Issuer, "jwks_uri", jwksURL)
	return c, nil
}

// config returns the oauth2 configuration with the redirect URL for r.
func (c *Client) config(r *http.Request) *oauth2.Config {
	cfg := c.oauth2
	cfg.RedirectURL = c.redirectURL
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = auth.BaseURL(r) + CallbackPathPrefix + c.RegistrationID
	}
	return &cfg
}

// exchangeContext makes the oauth2 and oidc packages use the client's HTTP client.
func (c *Client) exchangeContext(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, c.httpClient)
}

// safeTarget keeps post-login redirects on this server.
func safeTarget(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return fallback
	}
	return target
}
