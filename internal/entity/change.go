package entity

import (
	"fmt"
	"time"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeAny only appears in subscriptions, never on an emitted change.
	ChangeAny ChangeType = "*"
)

// Row is a table row as carried by the change feed, keyed by column name.
type Row map[string]any

// ID returns the row's "id" column rendered as a string, or "" when absent.
func (r Row) ID() string {
	if r == nil {
		return ""
	}
	v, ok := r["id"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Change is a single row-level event on a table.
type Change struct {
	Schema          string     `json:"schema"`
	Table           string     `json:"table"`
	Type            ChangeType `json:"type"`
	New             Row        `json:"new,omitempty"`
	Old             Row        `json:"old,omitempty"`
	CommitTimestamp time.Time  `json:"commit_timestamp"`
}
