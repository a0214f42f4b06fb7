package auth

import (
	"context"
)

// IdentityContextKey is the key under which the caller's Identity is stored in
// a request context. An empty struct type cannot collide with keys from other
// packages.
type IdentityContextKey struct{}

// WithIdentity stores identity in ctx. A nil identity leaves ctx unchanged.
//
// Example:
//
//	ctx = auth.WithIdentity(ctx, &auth.Identity{Subject: "u1"})
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, IdentityContextKey{}, identity)
}

// IdentityFromContext returns the caller's Identity, or nil and false if the
// request is unauthenticated.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}
