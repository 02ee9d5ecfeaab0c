package auth

import (
	"context"
	"time"

	"cdm/internal/cache"
)

const revokedTokenKeyPrefix = "blacklist:access_token:"

// TokenStoreInterface defines the revocation operations used by the auth service.
type TokenStoreInterface interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) bool
}

// TokenStore keeps revoked token ids in Redis until the token would have expired anyway.
type TokenStore struct {
	cache *cache.Client
}

var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

// RevokeToken marks a token id as revoked for ttl. Non-positive ttls are ignored.
func (s *TokenStore) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	s.cache.Set(ctx, revokedTokenKeyPrefix+tokenID, []byte("1"), ttl)
	return nil
}

// IsRevoked reports whether the token id was revoked. An unreachable Redis reports false.
func (s *TokenStore) IsRevoked(ctx context.Context, tokenID string) bool {
	if tokenID == "" {
		return false
	}
	return s.cache.Get(ctx, revokedTokenKeyPrefix+tokenID) != nil
}
