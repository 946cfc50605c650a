// Package realtime keeps in-process row lists in step with table changes
// published on the change feed.
package realtime

import (
	"context"
	"fmt"
	"strings"

	"landscape-job-service/internal/entity"
)

const DefaultSchema = "public"

// Subscription selects changes on one table. Event "*" (or empty) matches all
// change types; Filter is an optional "column=op.value" expression.
type Subscription struct {
	Schema string            `json:"schema,omitempty"`
	Table  string            `json:"table"`
	Event  entity.ChangeType `json:"event"`
	Filter string            `json:"filter,omitempty"`
}

func (s Subscription) schema() string {
	if s.Schema == "" {
		return DefaultSchema
	}
	return s.Schema
}

func (s Subscription) Validate() error {
	if s.Table == "" {
		return fmt.Errorf("subscription: table is required")
	}
	switch s.Event {
	case "", entity.ChangeAny, entity.ChangeInsert, entity.ChangeUpdate, entity.ChangeDelete:
	default:
		return fmt.Errorf("subscription %s: unknown event %q", s.Table, s.Event)
	}
	if s.Filter != "" {
		if _, err := ParseFilter(s.Filter); err != nil {
			return fmt.Errorf("subscription %s: %w", s.Table, err)
		}
	}
	return nil
}

// Feed opens named channels on the change feed.
type Feed interface {
	Open(ctx context.Context, name string, subs []Subscription) (Channel, error)
}

// Channel is one open subscription. Events is closed after Close returns.
type Channel interface {
	Events() <-chan entity.Change
	Close() error
}

// Publisher puts a change on the feed.
type Publisher interface {
	Publish(ctx context.Context, ch entity.Change) error
}

// Topic is the feed topic carrying changes for schema.table.
func Topic(schema, table string) string {
	if schema == "" {
		schema = DefaultSchema
	}
	return "realtime:" + schema + ":" + table
}

// matcher is a compiled subscription.
type matcher struct {
	sub    Subscription
	filter *Filter
}

func compile(subs []Subscription) ([]matcher, error) {
	out := make([]matcher, 0, len(subs))
	for _, s := range subs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		m := matcher{sub: s}
		if s.Filter != "" {
			f, _ := ParseFilter(s.Filter)
			m.filter = &f
		}
		out = append(out, m)
	}
	return out, nil
}

func (m matcher) matches(ch entity.Change) bool {
	if !strings.EqualFold(m.sub.Table, ch.Table) {
		return false
	}
	if ch.Schema != "" && m.sub.schema() != ch.Schema {
		return false
	}
	if m.sub.Event != "" && m.sub.Event != entity.ChangeAny && m.sub.Event != ch.Type {
		return false
	}
	if m.filter == nil {
		return true
	}
	row := ch.New
	if ch.Type == entity.ChangeDelete {
		row = ch.Old
	}
	return m.filter.Match(row)
}

func matchAny(ms []matcher, ch entity.Change) bool {
	for _, m := range ms {
		if m.matches(ch) {
			return true
		}
	}
	return false
}
