// Package docstore defines the document store contract the contest services
// are written against. A store keeps schemaless documents in named
// collections, applies atomic field operations server-side, and pushes query
// snapshots to subscribers whenever the underlying data changes.
package docstore

import "context"

// Store is the interface all document store backends implement.
type Store interface {
	// Get fetches a single document by id.
	// Returns ErrNotFound if the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Add creates a new document. When id is empty the store generates one.
	// Returns the id of the created document.
	Add(ctx context.Context, collection, id string, fields Fields) (string, error)

	// Update applies a field patch and any atomic operations to an existing
	// document. Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, collection, id string, fields Fields, ops ...Op) error

	// Delete removes a document entirely.
	// Returns ErrNotFound if the document does not exist.
	Delete(ctx context.Context, collection, id string) error

	// RunQuery executes a query once and returns the matching documents.
	RunQuery(ctx context.Context, q Query) (Snapshot, error)

	// Subscribe runs the query, delivers the initial snapshot, then re-runs
	// it and delivers a fresh snapshot every time the collection changes.
	// Stream failures after setup are reported through onError. Deliveries
	// stop once the subscription is canceled or ctx ends.
	Subscribe(ctx context.Context, q Query, deliver func(Snapshot), onError func(error)) (Subscription, error)

	// ApplyBatch commits all writes as a single atomic unit.
	// Returns ErrEmptyBatch if writes is empty.
	ApplyBatch(ctx context.Context, writes []Write) error

	// Close releases the underlying connections.
	Close()
}

// Subscription is a handle to an active push subscription.
type Subscription interface {
	// Cancel stops deliveries. Safe to call more than once.
	Cancel()
}

// Write is a single entry of a batched commit. Fields are applied as a patch
// on the target document, creating it if necessary.
type Write struct {
	Collection string
	ID         string
	Fields     Fields
}
