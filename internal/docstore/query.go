package docstore

// Direction is the sort order of a query.
type Direction int

const (
	// Ascending sorts by the order field from lowest to highest.
	Ascending Direction = iota
	// Descending sorts by the order field from highest to lowest.
	Descending
)

// Where is an equality condition on a document field.
type Where struct {
	Field string
	Value any
}

// Query describes a filtered, ordered read over one collection.
type Query struct {
	// Collection is the collection path, e.g. "events" or
	// "events/abc123/comments".
	Collection string
	// Conditions are equality filters combined with AND.
	Conditions []Where
	// OrderBy names the numeric field the results are sorted on.
	OrderBy string
	// Direction is the sort order. Defaults to Ascending.
	Direction Direction
	// Limit caps the number of returned documents. Zero means no limit.
	Limit int
	// StartAfter resumes the query directly after a previously seen row.
	StartAfter *Cursor
}

// Cursor is an opaque position within an ordered query, pointing directly
// after one row. Callers obtain cursors from Document.Cursor and pass them
// back via Query.StartAfter.
type Cursor struct {
	Score float64
	ID    string
}

// Snapshot is the result of one query execution.
type Snapshot struct {
	Docs []Document
}

// Cursor returns the position after the last document of the snapshot,
// or nil if the snapshot is empty.
func (s Snapshot) Cursor() *Cursor {
	if len(s.Docs) == 0 {
		return nil
	}
	c := s.Docs[len(s.Docs)-1].Cursor()
	return &c
}
