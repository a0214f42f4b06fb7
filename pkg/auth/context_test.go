package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContext_StoreAndRetrieve(t *testing.T) {
	t.Parallel()

	identity := &Identity{
		Subject:     "user123",
		Authorities: []string{"ROLE_admins"},
		Claims:      map[string]any{"sub": "user123"},
	}

	ctx := WithIdentity(context.Background(), identity)

	retrieved, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, identity, retrieved)
}

func TestIdentityContext_NilIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newCtx := WithIdentity(ctx, nil)
	assert.Equal(t, ctx, newCtx)

	_, ok := IdentityFromContext(newCtx)
	assert.False(t, ok)
}

func TestIdentityContext_MissingIdentity(t *testing.T) {
	t.Parallel()

	identity, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, identity)
}

// A typed nil stored directly must read as unauthenticated.
func TestIdentityContext_ExplicitNilValue(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), IdentityContextKey{}, (*Identity)(nil))

	identity, ok := IdentityFromContext(ctx)
	assert.False(t, ok)
	assert.Nil(t, identity)
}

func TestIdentityContext_Overwrite(t *testing.T) {
	t.Parallel()

	ctx := WithIdentity(context.Background(), &Identity{Subject: "user1"})
	ctx = WithIdentity(ctx, &Identity{Subject: "user2"})

	retrieved, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user2", retrieved.Subject)
}
