package diff

import (
	"slices"

	"github.com/roach88/formguard/internal/ir"
)

// ChangeType classifies a top-level field difference.
type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"
)

// FieldChange describes one field that differs between current and baseline.
// Before and After are the normalized values; nil means null/absent.
type FieldChange struct {
	Field  string     `json:"field"`
	Type   ChangeType `json:"type"`
	Before ir.IRValue `json:"before,omitempty"`
	After  ir.IRValue `json:"after,omitempty"`
}

// Changes lists the top-level fields of current that differ from baseline,
// sorted by field name. Nested objects are reported as a single Modified
// field.
func Changes(current, baseline ir.IRObject) []FieldChange {
	cur, _ := Normalize(current).(ir.IRObject)
	base, _ := Normalize(baseline).(ir.IRObject)

	var changes []FieldChange
	for k, after := range cur {
		before, ok := base[k]
		switch {
		case !ok:
			changes = append(changes, FieldChange{Field: k, Type: Added, After: after})
		case !equalNormalized(after, before):
			changes = append(changes, FieldChange{Field: k, Type: Modified, Before: before, After: after})
		}
	}
	for k, before := range base {
		if _, ok := cur[k]; !ok {
			changes = append(changes, FieldChange{Field: k, Type: Removed, Before: before})
		}
	}

	slices.SortFunc(changes, func(a, b FieldChange) int {
		switch {
		case a.Field < b.Field:
			return -1
		case a.Field > b.Field:
			return 1
		}
		return 0
	})
	return changes
}

// ChangedFields returns just the names from Changes.
func ChangedFields(current, baseline ir.IRObject) []string {
	changes := Changes(current, baseline)
	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
	}
	return fields
}
