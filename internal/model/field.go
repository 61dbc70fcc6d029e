package model

import "strings"

// Field names a mutable enrichment column.
type Field string

// FieldValues maps columns to their string values. An empty string means
// the column is NULL or blank.
type FieldValues map[Field]string

// Changes returns the subset of proposed values that are non-empty after
// trimming and differ from current. A nil result means nothing needs to be
// written. Every enrichment source merges through here.
func Changes(current, proposed FieldValues) FieldValues {
	var out FieldValues
	for f, v := range proposed {
		v = strings.TrimSpace(v)
		if v == "" || strings.TrimSpace(current[f]) == v {
			continue
		}
		if out == nil {
			out = make(FieldValues, len(proposed))
		}
		out[f] = v
	}
	return out
}

// Missing reports whether any of the given fields is empty.
func (v FieldValues) Missing(fields ...Field) bool {
	for _, f := range fields {
		if strings.TrimSpace(v[f]) == "" {
			return true
		}
	}
	return false
}
