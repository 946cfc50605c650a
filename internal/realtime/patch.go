package realtime

import (
	"maps"

	"landscape-job-service/internal/entity"
)

// Normalize reshapes a raw feed row before it is stored, e.g. to parse timestamps.
type Normalize func(entity.Row) entity.Row

// PatchFunc applies one change to a row list and returns the resulting list.
// When the change has no effect the input slice itself is returned.
type PatchFunc func(rows []entity.Row, ch entity.Change) []entity.Row

// NewArrayPatcher returns a PatchFunc keyed on the "id" column:
//
//	INSERT prepends the new row unless its id is already present
//	UPDATE shallow-merges the new row into the existing one; unknown ids are ignored
//	DELETE removes the row whose id appears on the old or the new payload
//
// The input slice is never modified.
func NewArrayPatcher(normalize Normalize) PatchFunc {
	if normalize == nil {
		normalize = func(r entity.Row) entity.Row { return r }
	}

	return func(rows []entity.Row, ch entity.Change) []entity.Row {
		switch ch.Type {
		case entity.ChangeInsert:
			if ch.New == nil {
				return rows
			}
			row := normalize(maps.Clone(ch.New))
			id := row.ID()
			if id == "" || indexOf(rows, id) >= 0 {
				return rows
			}
			out := make([]entity.Row, 0, len(rows)+1)
			out = append(out, row)
			return append(out, rows...)

		case entity.ChangeUpdate:
			id := ch.New.ID()
			i := indexOf(rows, id)
			if id == "" || i < 0 {
				return rows
			}
			merged := maps.Clone(rows[i])
			if merged == nil {
				merged = entity.Row{}
			}
			maps.Copy(merged, ch.New)
			out := make([]entity.Row, len(rows))
			copy(out, rows)
			out[i] = normalize(merged)
			return out

		case entity.ChangeDelete:
			id := ch.Old.ID()
			if id == "" {
				id = ch.New.ID()
			}
			i := indexOf(rows, id)
			if id == "" || i < 0 {
				return rows
			}
			out := make([]entity.Row, 0, len(rows)-1)
			out = append(out, rows[:i]...)
			return append(out, rows[i+1:]...)
		}
		return rows
	}
}

func indexOf(rows []entity.Row, id string) int {
	if id == "" {
		return -1
	}
	for i, r := range rows {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
