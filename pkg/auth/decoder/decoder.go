// Package decoder verifies signed tokens and caches one verifier per client
// registration.
package decoder

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

//go:generate mockgen -destination=mocks/mock_decoder.go -package=mocks -source=decoder.go Decoder

// Decoder verifies a compact serialized token and returns its claims.
//
// Implementations must be safe for concurrent use. A token that fails
// verification yields a token_invalid error; a key set that cannot be
// retrieved yields a key_retrieval error.
type Decoder interface {
	Decode(ctx context.Context, rawToken string) (jwt.MapClaims, error)
}
