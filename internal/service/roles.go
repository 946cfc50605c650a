package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/realtime"
	"landscape-job-service/internal/repository/postgresql"
	"landscape-job-service/internal/telemetry"
)

const DefaultRoleTTL = 5 * time.Minute

type RoleStore interface {
	RoleByUserID(ctx context.Context, userID uuid.UUID) (entity.Role, error)
}

// RoleCache stores resolved roles for a bounded time.
// Implementations: cache.MemoryRoleCache, cache.RedisRoleCache.
type RoleCache interface {
	Get(ctx context.Context, userID uuid.UUID) (entity.Role, bool)
	Set(ctx context.Context, userID uuid.UUID, role entity.Role, ttl time.Duration) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// RoleResolver looks roles up through a cache. A user without a role row
// resolves to the empty role, which is cached like any other.
type RoleResolver struct {
	store RoleStore
	cache RoleCache
	ttl   time.Duration
}

func NewRoleResolver(store RoleStore, cache RoleCache, ttl time.Duration) *RoleResolver {
	if ttl <= 0 {
		ttl = DefaultRoleTTL
	}
	return &RoleResolver{store: store, cache: cache, ttl: ttl}
}

func (r *RoleResolver) Role(ctx context.Context, userID uuid.UUID) (entity.Role, error) {
	m := telemetry.GetMetrics()

	if r.cache != nil {
		if role, ok := r.cache.Get(ctx, userID); ok {
			m.RoleCacheHitsTotal.Add(ctx, 1)
			return role, nil
		}
	}
	m.RoleCacheMissesTotal.Add(ctx, 1)

	role, err := r.store.RoleByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, postgresql.ErrNotFound) {
			return "", err
		}
		role = ""
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, userID, role, r.ttl); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("role cache set failed")
		}
	}
	return role, nil
}

// Invalidate drops the cached role so the next lookup reads the store.
// Call it after changing a user's role.
func (r *RoleResolver) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, userID)
}

// WatchInvalidations drops cached roles as user_roles rows change on feed.
// It blocks until ctx is done or the channel closes. Events are not
// debounced: every change names its own user.
func (r *RoleResolver) WatchInvalidations(ctx context.Context, feed realtime.Feed) error {
	ch, err := feed.Open(ctx, "role-invalidation", []realtime.Subscription{
		{Table: "user_roles", Event: entity.ChangeAny},
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	events := ch.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errors.New("role invalidation channel closed")
			}
			for _, row := range []entity.Row{ev.New, ev.Old} {
				s, _ := row["user_id"].(string)
				userID, err := uuid.Parse(s)
				if err != nil {
					continue
				}
				if err := r.Invalidate(ctx, userID); err != nil {
					log.Ctx(ctx).Warn().Err(err).Str("user_id", s).Msg("role cache invalidate failed")
				}
			}
		}
	}
}
