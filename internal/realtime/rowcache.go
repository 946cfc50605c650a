package realtime

import (
	"sync"

	"landscape-job-service/internal/entity"
)

// RowCache is a goroutine-safe ordered row list mirrored from a query and
// kept current by feed changes.
type RowCache struct {
	mu    sync.RWMutex
	rows  []entity.Row
	patch PatchFunc
}

func NewRowCache(normalize Normalize) *RowCache {
	return &RowCache{patch: NewArrayPatcher(normalize)}
}

// Replace swaps in a freshly queried list.
func (c *RowCache) Replace(rows []entity.Row) {
	cp := make([]entity.Row, len(rows))
	copy(cp, rows)

	c.mu.Lock()
	c.rows = cp
	c.mu.Unlock()
}

// Apply patches the list with ch and reports whether it changed.
func (c *RowCache) Apply(ch entity.Change) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.patch(c.rows, ch)
	if sameSlice(next, c.rows) {
		return false
	}
	c.rows = next
	return true
}

// Rows returns a snapshot; callers must not mutate the rows it contains.
func (c *RowCache) Rows() []entity.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]entity.Row, len(c.rows))
	copy(out, c.rows)
	return out
}

func (c *RowCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// sameSlice reports whether a and b share the same backing array and length.
func sameSlice(a, b []entity.Row) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
