package contest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// Feed is a live mirror of the event feed, optionally scoped to one group.
// Deliveries replace the mirror wholesale rather than merging diffs, so
// pages fetched via LoadMore are dropped on the next change and re-fetched
// on demand. Each page is produced by fetching a raw window larger than the
// page, filtering out soft-deleted rows, and truncating to the page size;
// HasMore reports whether the raw window was full, not an exact remaining
// count.
type Feed struct {
	store     docstore.Store
	logger    *zap.Logger
	groupID   string
	pageSize  int
	rawWindow int

	mu      sync.Mutex
	events  []*types.Event
	cursor  *docstore.Cursor
	hasMore bool
	err     error
	gen     int
	closed  bool
	sub     docstore.Subscription
}

// newFeed opens the mirror. A subscription setup failure leaves the mirror
// empty with the error exposed through Err instead of failing construction.
func newFeed(
	ctx context.Context, store docstore.Store, logger *zap.Logger, config Config, groupID string,
) *Feed {
	f := &Feed{
		store:     store,
		logger:    logger.Named("feed"),
		groupID:   groupID,
		pageSize:  config.FeedPageSize,
		rawWindow: config.FeedRawWindow,
	}

	gen := f.gen

	sub, err := store.Subscribe(ctx, f.window(nil),
		func(snap docstore.Snapshot) { f.replace(gen, snap) },
		func(err error) { f.fail(gen, err) })
	if err != nil {
		f.logger.Error("Failed to open feed subscription",
			zap.String("groupID", groupID),
			zap.Error(err))
		f.err = err

		return f
	}

	f.sub = sub

	return f
}

// window builds the raw-window query, resuming after the given cursor.
func (f *Feed) window(after *docstore.Cursor) docstore.Query {
	q := docstore.Query{
		Collection: types.EventsCollection,
		OrderBy:    "ts",
		Direction:  docstore.Descending,
		Limit:      f.rawWindow,
		StartAfter: after,
	}
	if f.groupID != "" {
		q.Conditions = []docstore.Where{{Field: "groupId", Value: f.groupID}}
	}

	return q
}

// Events returns the currently mirrored events, newest first, with
// soft-deleted rows already filtered out.
func (f *Feed) Events() []*types.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*types.Event, len(f.events))
	copy(out, f.events)

	return out
}

// HasMore reports whether the last fetched raw window was full.
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.hasMore
}

// Err returns the mirror's error flag. It clears on the next successful
// delivery.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.err
}

// LoadMore extends the mirror by one more page using the stored cursor.
// A no-op when the feed is exhausted or closed.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()

	if f.closed || !f.hasMore || f.cursor == nil {
		f.mu.Unlock()
		return nil
	}

	gen := f.gen
	after := *f.cursor
	f.mu.Unlock()

	snap, err := f.store.RunQuery(ctx, f.window(&after))
	if err != nil {
		f.fail(gen, err)
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || gen != f.gen {
		return nil
	}

	events, cursor, hasMore := f.reduce(snap)
	f.events = append(f.events, events...)

	if cursor != nil {
		f.cursor = cursor
	}

	f.hasMore = hasMore

	return nil
}

// Close cancels the subscription. In-flight deliveries observe the bumped
// generation and drop themselves instead of writing into a torn-down mirror.
func (f *Feed) Close() {
	f.mu.Lock()

	if f.closed {
		f.mu.Unlock()
		return
	}

	f.closed = true
	f.gen++
	sub := f.sub
	f.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

// replace applies a subscription delivery, resetting the mirror to the
// first page.
func (f *Feed) replace(gen int, snap docstore.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || gen != f.gen {
		return
	}

	f.events, f.cursor, f.hasMore = f.reduce(snap)
	f.err = nil
}

// fail raises the mirror's error flag.
func (f *Feed) fail(gen int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || gen != f.gen {
		return
	}

	f.err = err
}

// reduce filters soft-deleted rows out of a raw window and truncates to the
// page size. The cursor lands on the last kept row; when every raw row was
// filtered out it falls to the last raw row so pagination still advances.
func (f *Feed) reduce(snap docstore.Snapshot) ([]*types.Event, *docstore.Cursor, bool) {
	hasMore := len(snap.Docs) == f.rawWindow
	kept := make([]*types.Event, 0, f.pageSize)

	var cursor *docstore.Cursor

	for _, doc := range snap.Docs {
		if len(kept) == f.pageSize {
			break
		}

		ev := types.EventFromDoc(doc)
		if ev.Deleted {
			continue
		}

		c := doc.Cursor()
		cursor = &c

		kept = append(kept, ev)
	}

	if cursor == nil {
		cursor = snap.Cursor()
	}

	return kept, cursor, hasMore
}
