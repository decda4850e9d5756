package docstore

import "time"

// Fields is a patch of document field values. Nested map fields are addressed
// with dotted paths, e.g. "reactions.🍻".
type Fields map[string]any

// Document is a single decoded document.
type Document struct {
	// ID is the document id within its collection.
	ID string
	// Score is the ordering-index position of the document within the query
	// that produced it. Used to build a cursor that resumes after this row.
	Score float64
	// Fields holds the decoded field values. Numbers decode as float64.
	Fields map[string]any
}

// Cursor returns a cursor positioned directly after this document.
func (d Document) Cursor() Cursor {
	return Cursor{Score: d.Score, ID: d.ID}
}

// String returns the named field as a string, or "" if absent.
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Int64 returns the named field as an int64, or 0 if absent.
func (d Document) Int64(field string) int64 {
	switch v := d.Fields[field].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// Bool returns the named field as a bool, or false if absent.
func (d Document) Bool(field string) bool {
	b, _ := d.Fields[field].(bool)
	return b
}

// Time interprets the named field as unix milliseconds.
// Returns the zero time if the field is absent or zero.
func (d Document) Time(field string) time.Time {
	ms := d.Int64(field)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// StringSlice returns the named field as a slice of strings, or nil if absent.
func (d Document) StringSlice(field string) []string {
	raw, ok := d.Fields[field].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// StringSliceMap returns the named field as a map of string slices,
// or nil if absent.
func (d Document) StringSliceMap(field string) map[string][]string {
	raw, ok := d.Fields[field].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for k, v := range raw {
		items, ok := v.([]any)
		if !ok {
			continue
		}
		vals := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				vals = append(vals, s)
			}
		}
		out[k] = vals
	}
	return out
}

// OpKind identifies an atomic field operation.
type OpKind int

const (
	// OpIncrement adds a signed delta to a numeric field.
	OpIncrement OpKind = iota
	// OpSetUnion adds values to a set-valued field, ignoring duplicates.
	OpSetUnion
	// OpSetDifference removes values from a set-valued field.
	OpSetDifference
	// OpDeleteField removes a field from the document.
	OpDeleteField
)

// Op is an atomic field operation applied server-side during an update.
// Concurrent operations on the same field from different writers never
// overwrite each other.
type Op struct {
	Kind   OpKind
	Field  string
	Delta  int64
	Values []string
}

// Increment returns an op that atomically adds delta to a numeric field.
func Increment(field string, delta int64) Op {
	return Op{Kind: OpIncrement, Field: field, Delta: delta}
}

// SetUnion returns an op that atomically adds values to a set-valued field.
func SetUnion(field string, values ...string) Op {
	return Op{Kind: OpSetUnion, Field: field, Values: values}
}

// SetDifference returns an op that atomically removes values from a
// set-valued field.
func SetDifference(field string, values ...string) Op {
	return Op{Kind: OpSetDifference, Field: field, Values: values}
}

// DeleteField returns an op that removes a field from the document.
func DeleteField(field string) Op {
	return Op{Kind: OpDeleteField, Field: field}
}
