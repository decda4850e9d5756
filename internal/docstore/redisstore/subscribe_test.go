package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiglabs/swigboard/internal/docstore"
)

func TestSubscribe(t *testing.T) {
	t.Parallel()

	store, mr := setupStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "events", "e1", docstore.Fields{"ts": int64(100)})
	require.NoError(t, err)

	updates := make(chan docstore.Snapshot, 8)

	sub, err := store.Subscribe(ctx, docstore.Query{
		Collection: "events",
		OrderBy:    "ts",
		Direction:  docstore.Descending,
	}, func(snap docstore.Snapshot) {
		updates <- snap
	}, nil)
	require.NoError(t, err)
	defer sub.Cancel()

	initial := <-updates
	assert.Equal(t, []string{"e1"}, docIDs(initial))

	// Probe messages carry a payload no query matches, so they only tell us
	// the change channel has a listener attached.
	require.Eventually(t, func() bool {
		return mr.Publish("chg:events", "probe") > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = store.Add(ctx, "events", "e2", docstore.Fields{"ts": int64(200)})
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.Equal(t, []string{"e2", "e1"}, docIDs(snap))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change snapshot")
	}
}

func TestSubscribeCancel(t *testing.T) {
	t.Parallel()

	store, mr := setupStore(t)
	ctx := context.Background()

	updates := make(chan docstore.Snapshot, 8)

	sub, err := store.Subscribe(ctx, docstore.Query{
		Collection: "events",
		OrderBy:    "ts",
		Direction:  docstore.Descending,
	}, func(snap docstore.Snapshot) {
		updates <- snap
	}, nil)
	require.NoError(t, err)

	<-updates

	require.Eventually(t, func() bool {
		return mr.Publish("chg:events", "probe") > 0
	}, 2*time.Second, 10*time.Millisecond)

	sub.Cancel()
	sub.Cancel()

	// The unsubscribe has gone through once the probe stops finding listeners.
	require.Eventually(t, func() bool {
		return mr.Publish("chg:events", "probe") == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = store.Add(ctx, "events", "late", docstore.Fields{"ts": int64(300)})
	require.NoError(t, err)

	select {
	case <-updates:
		t.Fatal("delivery after cancel")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscribeSetupFailure(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.Subscribe(ctx, docstore.Query{
		Collection: "mystery",
		OrderBy:    "ts",
	}, func(docstore.Snapshot) {}, nil)
	assert.Error(t, err)
}

func TestSubscribeFiltersSiblingCollections(t *testing.T) {
	t.Parallel()

	store, mr := setupStore(t)
	ctx := context.Background()

	updates := make(chan docstore.Snapshot, 8)

	sub, err := store.Subscribe(ctx, docstore.Query{
		Collection: "events/e1/comments",
		OrderBy:    "ts",
		Direction:  docstore.Ascending,
	}, func(snap docstore.Snapshot) {
		updates <- snap
	}, nil)
	require.NoError(t, err)
	defer sub.Cancel()

	<-updates

	require.Eventually(t, func() bool {
		return mr.Publish("chg:events/*/comments", "probe") > 0
	}, 2*time.Second, 10*time.Millisecond)

	// A comment on a different event shares the channel but must not
	// produce a delivery for this subscriber.
	_, err = store.Add(ctx, "events/e2/comments", "other", docstore.Fields{"ts": int64(100)})
	require.NoError(t, err)

	select {
	case <-updates:
		t.Fatal("delivery for sibling collection")
	case <-time.After(200 * time.Millisecond):
	}

	_, err = store.Add(ctx, "events/e1/comments", "mine", docstore.Fields{"ts": int64(200)})
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.Equal(t, []string{"mine"}, docIDs(snap))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for own-collection snapshot")
	}
}
