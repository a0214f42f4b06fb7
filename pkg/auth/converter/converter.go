// Package converter turns verified token claims into the caller's identity,
// for both bearer-token requests and the browser login flow.
package converter

import (
	"context"
	"fmt"

	"github.com/ssobridge/ssobridge/pkg/auth"
	"github.com/ssobridge/ssobridge/pkg/auth/authority"
	"github.com/ssobridge/ssobridge/pkg/auth/decoder"
	"github.com/ssobridge/ssobridge/pkg/errors"
)

// TokenTypeBearer is recorded on identities built from bearer and access tokens.
const TokenTypeBearer = "Bearer"

// Resolver returns the decoder of a registration.
// *decoder.Cache satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, registrationID, jwksURI string) (decoder.Decoder, error)
}

// Registration identifies the key set a registration's tokens are verified with.
type Registration struct {
	ID      string
	JWKSURL string
}

// Converter builds identities from claims.
type Converter struct{}

// Convert returns an identity whose authorities are exactly those extracted
// from claims and whose Claims is the claim map itself.
func (Converter) Convert(claims map[string]any) (*auth.Identity, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.NewTokenInvalidError("token is missing a required claim", fmt.Errorf("missing or invalid 'sub' claim"))
	}

	authorities, err := authority.Extract(claims)
	if err != nil {
		return nil, err
	}

	identity := &auth.Identity{
		Subject:     sub,
		Authorities: authorities,
		Claims:      claims,
		TokenType:   TokenTypeBearer,
	}
	if name, ok := claims["name"].(string); ok && name != "" {
		identity.Name = name
	} else if username, ok := claims["preferred_username"].(string); ok {
		identity.Name = username
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	return identity, nil
}

// decode resolves the registration's decoder and converts the verified claims.
func decode(ctx context.Context, resolver Resolver, reg Registration, rawToken string) (*auth.Identity, error) {
	d, err := resolver.Resolve(ctx, reg.ID, reg.JWKSURL)
	if err != nil {
		return nil, err
	}
	claims, err := d.Decode(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	identity, err := Converter{}.Convert(claims)
	if err != nil {
		return nil, err
	}
	identity.Token = rawToken
	return identity, nil
}

// BearerAuthenticator authenticates resource-server requests against one registration.
// It implements auth.Authenticator.
type BearerAuthenticator struct {
	resolver     Resolver
	registration Registration
}

// NewBearerAuthenticator creates a BearerAuthenticator.
func NewBearerAuthenticator(resolver Resolver, registration Registration) *BearerAuthenticator {
	return &BearerAuthenticator{resolver: resolver, registration: registration}
}

// Authenticate verifies rawToken and returns the caller's identity.
func (a *BearerAuthenticator) Authenticate(ctx context.Context, rawToken string) (*auth.Identity, error) {
	return decode(ctx, a.resolver, a.registration, rawToken)
}

// UserRequest carries the outcome of a login-flow token exchange.
type UserRequest struct {
	Registration Registration
	AccessToken  string
}

// UserService resolves the logged-in user from the access token itself. The
// provider's user-info endpoint is never called, since it may omit role claims.
type UserService struct {
	resolver Resolver
}

// NewUserService creates a UserService.
func NewUserService(resolver Resolver) *UserService {
	return &UserService{resolver: resolver}
}

// LoadUser decodes req.AccessToken with the registration's decoder.
func (s *UserService) LoadUser(ctx context.Context, req UserRequest) (*auth.Identity, error) {
	if req.AccessToken == "" {
		return nil, errors.NewTokenInvalidError("token exchange returned no access token", nil)
	}
	return decode(ctx, s.resolver, req.Registration, req.AccessToken)
}
