package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"landscape-job-service/internal/entity"
)

const defaultMaxEntries = 10_000

type cachedRole struct {
	role      entity.Role
	expiresAt time.Time
}

// MemoryRoleCache is a process-local role cache with per-entry expiry and a
// size cap. Expired entries are dropped lazily and when the cap is reached.
type MemoryRoleCache struct {
	mu         sync.RWMutex
	entries    map[uuid.UUID]cachedRole
	maxEntries int
	now        func() time.Time
}

func NewMemoryRoleCache(maxEntries int) *MemoryRoleCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryRoleCache{
		entries:    make(map[uuid.UUID]cachedRole),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryRoleCache) Get(_ context.Context, userID uuid.UUID) (entity.Role, bool) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return "", false
	}
	return e.role, true
}

func (c *MemoryRoleCache) Set(_ context.Context, userID uuid.UUID, role entity.Role, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[userID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[userID] = cachedRole{role: role, expiresAt: now.Add(ttl)}
	return nil
}

func (c *MemoryRoleCache) Delete(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}

func (c *MemoryRoleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops expired entries, or the entry closest to expiry when none are.
func (c *MemoryRoleCache) evictLocked(now time.Time) {
	var (
		oldestID uuid.UUID
		oldestAt time.Time
		removed  bool
	)
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
			removed = true
			continue
		}
		if oldestAt.IsZero() || e.expiresAt.Before(oldestAt) {
			oldestID, oldestAt = id, e.expiresAt
		}
	}
	if !removed && !oldestAt.IsZero() {
		delete(c.entries, oldestID)
	}
}
