package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenStore_WithoutRedis(t *testing.T) {
	store := NewTokenStore(nil)
	ctx := context.Background()

	assert.NoError(t, store.StoreRefreshToken(ctx, "jti", 1, "alice", time.Minute))

	_, _, err := store.GetRefreshToken(ctx, "jti")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	blacklisted, err := store.IsAccessTokenBlacklisted(ctx, "jti")
	assert.NoError(t, err)
	assert.False(t, blacklisted)
	assert.NoError(t, store.BlacklistAccessToken(ctx, "jti", 0))
}
