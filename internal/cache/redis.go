package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"landscape-job-service/internal/entity"
)

const roleKeyPrefix = "roles:"

// RedisRoleCache shares resolved roles between API replicas.
type RedisRoleCache struct {
	rdb redis.UniversalClient
}

func NewRedisRoleCache(rdb redis.UniversalClient) *RedisRoleCache {
	return &RedisRoleCache{rdb: rdb}
}

func roleKey(userID uuid.UUID) string {
	return roleKeyPrefix + userID.String()
}

// Get treats Redis failures as a miss so lookups fall through to the database.
func (c *RedisRoleCache) Get(ctx context.Context, userID uuid.UUID) (entity.Role, bool) {
	v, err := c.rdb.Get(ctx, roleKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Ctx(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("role cache get failed")
		}
		return "", false
	}
	return entity.Role(v), true
}

func (c *RedisRoleCache) Set(ctx context.Context, userID uuid.UUID, role entity.Role, ttl time.Duration) error {
	return c.rdb.Set(ctx, roleKey(userID), string(role), ttl).Err()
}

func (c *RedisRoleCache) Delete(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, roleKey(userID)).Err()
}
