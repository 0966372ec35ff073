package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore keeps revoked session token ids until their natural
// expiry, so a logout is effective across restarts of nothing more than the
// token's own lifetime.
type RedisTokenStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, prefix: "revoked:"}
}

func (s *RedisTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.prefix+jti, "1", ttl).Err()
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	count, err := s.rdb.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
