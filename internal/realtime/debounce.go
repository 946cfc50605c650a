package realtime

import (
	"context"
	"sync"
	"time"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/telemetry"
)

// debouncer delivers at most one change per window. The first change opens a
// window; changes arriving before it closes replace the pending one; when the
// window closes the latest pending change is delivered. The window does not
// restart on each change, so a steady stream still yields one delivery per window.
// Deliveries never overlap.
type debouncer struct {
	mu      sync.Mutex
	pending *entity.Change
	timer   *time.Timer
	stopped bool

	// delivering is held for the whole of a fire call.
	delivering sync.Mutex

	window func() time.Duration
	fire   func(entity.Change)
}

func newDebouncer(window func() time.Duration, fire func(entity.Change)) *debouncer {
	return &debouncer{window: window, fire: fire}
}

func (d *debouncer) push(ch entity.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.pending != nil {
		d.pending = &ch
		telemetry.GetMetrics().FeedEventsCoalescedTotal.Add(context.Background(), 1)
		return
	}
	d.pending = &ch
	d.timer = time.AfterFunc(d.window(), d.flush)
}

func (d *debouncer) flush() {
	d.delivering.Lock()
	defer d.delivering.Unlock()

	d.mu.Lock()
	if d.stopped || d.pending == nil {
		d.mu.Unlock()
		return
	}
	ch := *d.pending
	d.pending = nil
	d.mu.Unlock()

	d.fire(ch)
}

// stop discards any pending change and returns once a delivery already
// running has finished. It must not be called from fire.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	// wait out a delivery in progress
	d.delivering.Lock()
	d.delivering.Unlock()
}
