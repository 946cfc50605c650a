package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"landscape-job-service/internal/entity"
	"landscape-job-service/internal/realtime"
	"landscape-job-service/internal/telemetry"
)

var ErrBadPayload = errors.New("bad change payload")

type Processor struct {
	pub realtime.Publisher
}

func NewProcessor(pub realtime.Publisher) *Processor {
	return &Processor{pub: pub}
}

// Decode parses a notify_row_change payload.
func (p *Processor) Decode(payload string) (entity.Change, error) {
	var ch entity.Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return entity.Change{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if ch.Table == "" {
		return entity.Change{}, fmt.Errorf("%w: missing table", ErrBadPayload)
	}
	switch ch.Type {
	case entity.ChangeInsert, entity.ChangeUpdate, entity.ChangeDelete:
	default:
		return entity.Change{}, fmt.Errorf("%w: unknown type %q", ErrBadPayload, ch.Type)
	}
	if ch.Schema == "" {
		ch.Schema = realtime.DefaultSchema
	}
	if ch.CommitTimestamp.IsZero() {
		ch.CommitTimestamp = time.Now().UTC()
	}
	return ch, nil
}

// Process publishes one change to the feed.
func (p *Processor) Process(ctx context.Context, ch entity.Change) error {
	start := time.Now()
	m := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("table", ch.Table), attribute.String("type", string(ch.Type)))

	err := p.pub.Publish(ctx, ch)
	m.RelayPublishDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	if err != nil {
		m.RelayPublishErrorsTotal.Add(ctx, 1, attrs)
		return fmt.Errorf("publish %s.%s %s: %w", ch.Schema, ch.Table, ch.Type, err)
	}
	m.RelayPublishedTotal.Add(ctx, 1, attrs)

	log.Debug().
		Str("table", ch.Table).
		Str("type", string(ch.Type)).
		Str("row_id", rowID(ch)).
		Int64("duration_us", time.Since(start).Microseconds()).
		Msg("change published")
	return nil
}

func rowID(ch entity.Change) string {
	if id := ch.New.ID(); id != "" {
		return id
	}
	return ch.Old.ID()
}
