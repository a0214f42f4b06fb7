package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ssobridge/ssobridge/pkg/api"
	"github.com/ssobridge/ssobridge/pkg/auth"
	"github.com/ssobridge/ssobridge/pkg/auth/converter"
	"github.com/ssobridge/ssobridge/pkg/auth/decoder"
	"github.com/ssobridge/ssobridge/pkg/auth/login"
	"github.com/ssobridge/ssobridge/pkg/config"
	"github.com/ssobridge/ssobridge/pkg/identity"
	"github.com/ssobridge/ssobridge/pkg/logger"
	"github.com/ssobridge/ssobridge/pkg/metrics"
)

// runServe implements the serve command logic
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// log_level is only known once the configuration is loaded
	logger.Initialize()

	opts, err := bootstrap(ctx, cfg, metrics.New())
	if err != nil {
		return err
	}

	logger.Infow("bridge configured",
		"login_registration", cfg.Registration,
		"resource_server", cfg.ResourceServer,
		"webapp_role", cfg.WebAppRole)
	return api.Serve(ctx, opts)
}

// bootstrap discovers the login registration and wires the decoder cache,
// the converter and the login flow into server options.
func bootstrap(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (api.Options, error) {
	httpClient := &http.Client{Timeout: cfg.Decoder.FetchTimeout}

	loginReg, _ := cfg.FindRegistration(cfg.Registration)
	client, err := login.NewClient(ctx, loginReg, httpClient)
	if err != nil {
		return api.Options{}, fmt.Errorf("failed to set up login registration %s: %w", loginReg.ID, err)
	}

	resourceReg, _ := cfg.FindRegistration(cfg.ResourceServer)
	jwksURL, err := resolveJWKSURL(ctx, resourceReg, client, httpClient)
	if err != nil {
		return api.Options{}, err
	}

	cacheOpts := []decoder.Option{
		decoder.WithHTTPClient(httpClient),
		decoder.WithFetchTimeout(cfg.Decoder.FetchTimeout),
		decoder.WithLeeway(cfg.Decoder.Leeway),
		decoder.WithMetrics(m),
	}
	for _, reg := range cfg.Registrations {
		cacheOpts = append(cacheOpts, decoder.WithValidation(reg.ID, decoder.Validation{
			Issuer:   reg.Issuer,
			Audience: reg.Audience,
		}))
	}
	decoders, err := decoder.NewCache(ctx, cacheOpts...)
	if err != nil {
		return api.Options{}, err
	}

	users := converter.NewUserService(decoders)
	sessions := login.NewSessionStore(cfg.Session.MaxSessions, cfg.Session.TTL)
	flow := login.NewFlow(users, sessions, login.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.Secure,
		MaxAge: cfg.Session.TTL,
	}, m, client)

	authn := converter.NewBearerAuthenticator(decoders, converter.Registration{
		ID:      resourceReg.ID,
		JWKSURL: jwksURL,
	})

	return api.Options{
		Address:               cfg.Server.Address,
		ReadHeaderTimeout:     cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:       cfg.Server.ShutdownTimeout,
		TrustForwardedHeaders: cfg.Server.TrustForwardedHeaders,
		WebAppRole:            cfg.WebAppRole,
		Registration:          cfg.Registration,
		Authenticator:         authn,
		Directory:             identity.NewReadOnlyProvider(),
		Login:                 flow,
		Metrics:               m,
		ResourceMetadata:      auth.NewProtectedResourceHandler(resourceReg.Issuer, jwksURL, resourceReg.Scopes),
	}, nil
}

// resolveJWKSURL returns the key set URL bearer tokens are verified with:
// the configured one, the login client's when the resource server is the
// login registration, or a freshly discovered one.
func resolveJWKSURL(ctx context.Context, reg config.RegistrationConfig, client *login.Client, httpClient *http.Client) (string, error) {
	switch {
	case reg.JWKSURL != "":
		return reg.JWKSURL, nil
	case reg.ID == client.RegistrationID:
		return client.JWKSURL, nil
	}
	_, jwksURL, err := login.Discover(ctx, reg.Issuer, httpClient)
	if err != nil {
		return "", fmt.Errorf("failed to discover resource server registration %s: %w", reg.ID, err)
	}
	return jwksURL, nil
}
