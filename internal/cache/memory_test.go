package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"landscape-job-service/internal/entity"
)

func TestMemoryRoleCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := NewMemoryRoleCache(0)
	c.now = func() time.Time { return now }

	id := uuid.New()
	require.NoError(t, c.Set(ctx, id, entity.RoleAdmin, time.Minute))

	role, ok := c.Get(ctx, id)
	require.True(t, ok)
	require.Equal(t, entity.RoleAdmin, role)

	now = now.Add(time.Minute)
	_, ok = c.Get(ctx, id)
	require.False(t, ok, "entry must expire at ttl")
}

func TestMemoryRoleCache_EmptyRoleIsCacheable(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryRoleCache(0)

	id := uuid.New()
	require.NoError(t, c.Set(ctx, id, "", time.Minute))
	role, ok := c.Get(ctx, id)
	require.True(t, ok)
	require.Equal(t, entity.Role(""), role)
}

func TestMemoryRoleCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryRoleCache(0)

	id := uuid.New()
	require.NoError(t, c.Set(ctx, id, entity.RoleLandscaper, time.Minute))
	require.NoError(t, c.Delete(ctx, id))
	_, ok := c.Get(ctx, id)
	require.False(t, ok)
}

func TestMemoryRoleCache_SizeCap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := NewMemoryRoleCache(2)
	c.now = func() time.Time { return now }

	first, second, third := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, c.Set(ctx, first, entity.RoleClient, time.Minute))
	require.NoError(t, c.Set(ctx, second, entity.RoleClient, 2*time.Minute))
	require.NoError(t, c.Set(ctx, third, entity.RoleClient, 3*time.Minute))

	require.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, first)
	require.False(t, ok, "entry closest to expiry is evicted")
	_, ok = c.Get(ctx, third)
	require.True(t, ok)
}
