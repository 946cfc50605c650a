package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/telemetry"
)

const DefaultDebounce = 500 * time.Millisecond

// Handler receives a change after debouncing.
type Handler func(ch entity.Change)

type Config struct {
	// Channel names the subscription; it must be unique per Subscriber owner.
	Channel       string
	Subscriptions []Subscription
	Enabled       bool
	// Debounce defaults to DefaultDebounce when zero.
	Debounce time.Duration
	Handler  Handler
}

// Subscriber owns at most one open channel and re-creates it only when the
// channel name, the enabled flag or the subscription list change. Handler and
// debounce updates take effect on the live channel.
type Subscriber struct {
	feed Feed

	handler  atomic.Pointer[Handler]
	debounce atomic.Int64

	mu     sync.Mutex
	key    string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSubscriber(feed Feed) *Subscriber {
	s := &Subscriber{feed: feed}
	s.debounce.Store(int64(DefaultDebounce))
	return s
}

func subscriptionKey(cfg Config) string {
	subs, _ := json.Marshal(cfg.Subscriptions)
	return cfg.Channel + "|" + strconv.FormatBool(cfg.Enabled) + "|" + string(subs)
}

// Apply brings the subscriber in line with cfg. It returns once any previous
// channel has been closed; the new channel is opened in the background and a
// failure to open it is logged, not returned.
func (s *Subscriber) Apply(ctx context.Context, cfg Config) {
	h := cfg.Handler
	s.handler.Store(&h)
	d := cfg.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}
	s.debounce.Store(int64(d))

	s.mu.Lock()
	defer s.mu.Unlock()

	key := subscriptionKey(cfg)
	if s.done != nil && key == s.key {
		return
	}
	s.teardownLocked()
	s.key = key

	if !cfg.Enabled {
		return
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, cfg.Channel, cfg.Subscriptions, s.done)
}

// Close unsubscribes and waits for the channel to shut down, including a
// handler call in progress; no delivery happens after it returns. Calling
// Close, or Apply with changed subscriptions, from inside the handler
// deadlocks. Safe to call repeatedly.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	s.key = ""
}

func (s *Subscriber) teardownLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Subscriber) run(ctx context.Context, name string, subs []Subscription, done chan struct{}) {
	defer close(done)

	m := telemetry.GetMetrics()

	ch, err := s.feed.Open(ctx, name, subs)
	if err != nil {
		m.FeedSubscribeErrorsTotal.Add(ctx, 1)
		log.Warn().Err(err).Str("channel", name).Msg("realtime subscribe failed")
		return
	}
	defer func() {
		if err := ch.Close(); err != nil {
			log.Debug().Err(err).Str("channel", name).Msg("realtime channel close")
		}
	}()
	log.Debug().Str("channel", name).Int("subscriptions", len(subs)).Msg("realtime channel subscribed")

	deb := newDebouncer(
		func() time.Duration { return time.Duration(s.debounce.Load()) },
		func(c entity.Change) {
			if h := s.handler.Load(); h != nil && *h != nil {
				m.FeedEventsDeliveredTotal.Add(context.Background(), 1)
				(*h)(c)
			}
		},
	)
	defer deb.stop()

	events := ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-events:
			if !ok {
				log.Warn().Str("channel", name).Msg("realtime channel closed by feed")
				return
			}
			deb.push(c)
		}
	}
}
