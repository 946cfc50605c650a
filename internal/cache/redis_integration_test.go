//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"landscape-job-service/internal/entity"
)

func setupRedis(t *testing.T, ctx context.Context) redis.UniversalClient {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{endpoint}})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestIntegration_RedisRoleCache(t *testing.T) {
	ctx := context.Background()
	c := NewRedisRoleCache(setupRedis(t, ctx))
	user := uuid.New()

	_, ok := c.Get(ctx, user)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, user, entity.RoleAdmin, time.Minute))
	role, ok := c.Get(ctx, user)
	require.True(t, ok)
	require.Equal(t, entity.RoleAdmin, role)

	ttl, err := c.rdb.TTL(ctx, roleKey(user)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 50*time.Second)

	require.NoError(t, c.Delete(ctx, user))
	_, ok = c.Get(ctx, user)
	require.False(t, ok)
}
