package realtime

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"landscape-job-service/internal/telemetry"
)

// SilentRefetch rate-limits a full reload triggered by change events. A trigger
// inside the cooldown of the previous run is skipped, and concurrent triggers
// share one in-flight call. It has no loading state to expose.
type SilentRefetch struct {
	fn       func(ctx context.Context) error
	cooldown time.Duration

	mu    sync.Mutex
	last  time.Time
	group singleflight.Group
	now   func() time.Time
}

func NewSilentRefetch(cooldown time.Duration, fn func(ctx context.Context) error) *SilentRefetch {
	return &SilentRefetch{fn: fn, cooldown: cooldown, now: time.Now}
}

// Trigger runs the refetch unless it ran less than cooldown ago.
// ran reports whether this call executed (or joined) a refetch.
func (r *SilentRefetch) Trigger(ctx context.Context) (ran bool, err error) {
	r.mu.Lock()
	now := r.now()
	if !r.last.IsZero() && now.Sub(r.last) < r.cooldown {
		r.mu.Unlock()
		return false, nil
	}
	r.last = now
	r.mu.Unlock()

	_, err, _ = r.group.Do("refetch", func() (any, error) {
		telemetry.GetMetrics().SilentRefetchTotal.Add(ctx, 1)
		return nil, r.fn(ctx)
	})
	return true, err
}
