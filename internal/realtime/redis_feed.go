package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/telemetry"
)

const channelBuffer = 64

// RedisFeed carries changes over Redis pub/sub, one topic per table.
// Delivery is at-most-once: subscribers that are disconnected miss changes.
type RedisFeed struct {
	rdb redis.UniversalClient
}

func NewRedisFeed(rdb redis.UniversalClient) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func (f *RedisFeed) Publish(ctx context.Context, ch entity.Change) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	return f.rdb.Publish(ctx, Topic(ch.Schema, ch.Table), data).Err()
}

// Open subscribes to the topics named by subs and waits for Redis to confirm.
func (f *RedisFeed) Open(ctx context.Context, name string, subs []Subscription) (Channel, error) {
	matchers, err := compile(subs)
	if err != nil {
		return nil, err
	}
	if len(matchers) == 0 {
		return nil, fmt.Errorf("channel %s: no subscriptions", name)
	}

	seen := map[string]bool{}
	var topics []string
	for _, m := range matchers {
		t := Topic(m.sub.schema(), m.sub.Table)
		if !seen[t] {
			seen[t] = true
			topics = append(topics, t)
		}
	}

	ps := f.rdb.Subscribe(ctx, topics...)
	// Receive blocks until the first subscribe confirmation (or an error).
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("channel %s: subscribe: %w", name, err)
	}

	c := &redisChannel{
		name:     name,
		ps:       ps,
		matchers: matchers,
		out:      make(chan entity.Change, channelBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	telemetry.GetMetrics().FeedActiveChannels.Add(ctx, 1)
	go c.run()
	return c, nil
}

type redisChannel struct {
	name     string
	ps       *redis.PubSub
	matchers []matcher
	out      chan entity.Change

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (c *redisChannel) Events() <-chan entity.Change { return c.out }

func (c *redisChannel) run() {
	defer close(c.done)
	defer close(c.out)

	msgs := c.ps.Channel()
	for {
		select {
		case <-c.stop:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ch entity.Change
			if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
				log.Warn().Err(err).Str("channel", c.name).Str("topic", msg.Channel).Msg("dropping undecodable change")
				continue
			}
			if !matchAny(c.matchers, ch) {
				continue
			}
			select {
			case c.out <- ch:
			case <-c.stop:
				return
			}
		}
	}
}

func (c *redisChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.ps.Close()
		<-c.done
		telemetry.GetMetrics().FeedActiveChannels.Add(context.Background(), -1)
	})
	return err
}
