package decoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	sserrors "github.com/ssobridge/ssobridge/pkg/errors"
)

// DefaultLeeway is the clock skew tolerated when checking exp, nbf and iat.
const DefaultLeeway = 30 * time.Second

// Common errors
var (
	ErrMissingJWKSURL = errors.New("missing JWKS URL")
	ErrMissingKeyID   = errors.New("token header missing kid")
	ErrUnknownKeyID   = errors.New("key ID not found in JWKS")
)

// signingMethods are the asymmetric algorithms a published key set can verify.
var signingMethods = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
}

// Config describes how tokens of one registration are verified.
type Config struct {
	// JWKSURL is the signing key set endpoint of the registration.
	JWKSURL string

	// Issuer, when set, must equal the token's iss claim.
	Issuer string

	// Audience, when set, must appear in the token's aud claim.
	Audience string

	// Leeway is the tolerated clock skew. Zero means DefaultLeeway.
	Leeway time.Duration
}

// JWKSDecoder verifies tokens against a key set published at a JWKS URL.
// Keys are held in a shared jwk.Cache, which refreshes them in the background.
type JWKSDecoder struct {
	jwksURL string
	keys    *jwk.Cache
	parser  *jwt.Parser
}

// RegisterKeySet registers jwksURL with keys and waits for the first fetch.
// A URL that is already registered is left alone. A fetch failure is returned
// as a key_retrieval error and the registration made by this call is removed,
// so the call may be retried.
//
// Callers sharing keys must not register the same URL concurrently; Cache
// serializes registrations per URL.
func RegisterKeySet(ctx context.Context, keys *jwk.Cache, jwksURL string) error {
	if jwksURL == "" {
		return sserrors.NewInvalidArgumentError("cannot register key set", ErrMissingJWKSURL)
	}
	if keys.IsRegistered(ctx, jwksURL) {
		return nil
	}
	if err := keys.Register(ctx, jwksURL); err != nil {
		// a resource that never became ready must not block the next attempt
		_ = keys.Unregister(context.WithoutCancel(ctx), jwksURL)
		return sserrors.NewKeyRetrievalError(
			fmt.Sprintf("failed to fetch signing keys from %s", jwksURL), err)
	}
	return nil
}

// NewJWKSDecoder builds a decoder over cfg.JWKSURL, which must already be
// registered with keys (see RegisterKeySet).
func NewJWKSDecoder(ctx context.Context, keys *jwk.Cache, cfg Config) (*JWKSDecoder, error) {
	if cfg.JWKSURL == "" {
		return nil, sserrors.NewInvalidArgumentError("cannot build decoder", ErrMissingJWKSURL)
	}
	if _, err := keys.Lookup(ctx, cfg.JWKSURL); err != nil {
		return nil, sserrors.NewKeyRetrievalError(
			fmt.Sprintf("failed to fetch signing keys from %s", cfg.JWKSURL), err)
	}

	leeway := cfg.Leeway
	if leeway == 0 {
		leeway = DefaultLeeway
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(signingMethods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWKSDecoder{
		jwksURL: cfg.JWKSURL,
		keys:    keys,
		parser:  jwt.NewParser(opts...),
	}, nil
}

// JWKSURL returns the key set endpoint this decoder is bound to.
func (d *JWKSDecoder) JWKSURL() string {
	return d.jwksURL
}

// Decode verifies rawToken and returns its claims.
func (d *JWKSDecoder) Decode(ctx context.Context, rawToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := d.parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		return d.keyFor(ctx, token)
	})
	if err != nil {
		if sserrors.IsKeyRetrieval(err) {
			return nil, err
		}
		return nil, sserrors.NewTokenInvalidError(reason(err), err)
	}
	return claims, nil
}

func (d *JWKSDecoder) keyFor(ctx context.Context, token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, ErrMissingKeyID
	}

	keySet, err := d.keys.Lookup(ctx, d.jwksURL)
	if err != nil {
		return nil, sserrors.NewKeyRetrievalError("failed to look up signing keys", err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyID, kid)
	}

	var rawKey any
	if err := jwk.Export(key, &rawKey); err != nil {
		return nil, fmt.Errorf("failed to export raw key: %w", err)
	}
	return rawKey, nil
}

// reason maps a parse failure to a short message that is safe to return to clients.
func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "token is not valid yet"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "token is missing a required claim"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "token has an invalid issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "token has an invalid audience"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "token signature is invalid"
	default:
		return "token could not be verified"
	}
}
