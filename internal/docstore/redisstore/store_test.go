package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/docstore"
	"github.com/swiglabs/swigboard/internal/docstore/redisstore"
)

func testCollections() []redisstore.Collection {
	return []redisstore.Collection{
		{Name: "events", OrderFields: []string{"ts"}, PartitionField: "groupId"},
		{Name: "events/*/comments", OrderFields: []string{"ts"}},
		{Name: "participants", OrderFields: []string{"totalScore", "createdAt"}},
	}
}

func setupStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	store := redisstore.New(client, zap.NewNop(), testCollections()...)
	t.Cleanup(store.Close)

	return store, mr
}

func TestAddAndGet(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	t.Run("explicit id round trips", func(t *testing.T) {
		id, err := store.Add(ctx, "participants", "p1", docstore.Fields{
			"displayName": "Lena",
			"totalScore":  int64(12),
			"hidden":      false,
		})
		require.NoError(t, err)
		assert.Equal(t, "p1", id)

		doc, err := store.Get(ctx, "participants", "p1")
		require.NoError(t, err)
		assert.Equal(t, "Lena", doc.String("displayName"))
		assert.Equal(t, int64(12), doc.Int64("totalScore"))
		assert.False(t, doc.Bool("hidden"))
	})

	t.Run("generated id", func(t *testing.T) {
		id, err := store.Add(ctx, "events", "", docstore.Fields{
			"participantId": "p1",
			"count":         int64(2),
			"ts":            int64(1000),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		doc, err := store.Get(ctx, "events", id)
		require.NoError(t, err)
		assert.Equal(t, "p1", doc.String("participantId"))
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := store.Get(ctx, "participants", "nobody")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := store.Add(ctx, "mystery", "", docstore.Fields{"a": int64(1)})
		assert.Error(t, err)
	})
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	store, mr := setupStore(t)
	ctx := context.Background()

	t.Run("field patch", func(t *testing.T) {
		_, err := store.Add(ctx, "events", "e1", docstore.Fields{
			"participantId": "p1",
			"count":         int64(3),
			"ts":            int64(1000),
			"description":   "first round",
		})
		require.NoError(t, err)

		err = store.Update(ctx, "events", "e1", docstore.Fields{"description": "second round"})
		require.NoError(t, err)

		doc, err := store.Get(ctx, "events", "e1")
		require.NoError(t, err)
		assert.Equal(t, "second round", doc.String("description"))
		assert.Equal(t, int64(3), doc.Int64("count"))
	})

	t.Run("missing document", func(t *testing.T) {
		err := store.Update(ctx, "events", "ghost", docstore.Fields{"description": "x"})
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("increment", func(t *testing.T) {
		_, err := store.Add(ctx, "participants", "inc", docstore.Fields{"totalScore": int64(10)})
		require.NoError(t, err)

		err = store.Update(ctx, "participants", "inc", nil, docstore.Increment("totalScore", 5))
		require.NoError(t, err)

		err = store.Update(ctx, "participants", "inc", nil, docstore.Increment("totalScore", -3))
		require.NoError(t, err)

		doc, err := store.Get(ctx, "participants", "inc")
		require.NoError(t, err)
		assert.Equal(t, int64(12), doc.Int64("totalScore"))
	})

	t.Run("set union deduplicates", func(t *testing.T) {
		_, err := store.Add(ctx, "events", "e2", docstore.Fields{"ts": int64(2000)})
		require.NoError(t, err)

		err = store.Update(ctx, "events", "e2", nil, docstore.SetUnion("flags", "p1", "p2"))
		require.NoError(t, err)

		err = store.Update(ctx, "events", "e2", nil, docstore.SetUnion("flags", "p2", "p3"))
		require.NoError(t, err)

		doc, err := store.Get(ctx, "events", "e2")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2", "p3"}, doc.StringSlice("flags"))
	})

	t.Run("set difference leaves tombstone", func(t *testing.T) {
		_, err := store.Add(ctx, "events", "e3", docstore.Fields{"ts": int64(3000)})
		require.NoError(t, err)

		err = store.Update(ctx, "events", "e3", nil, docstore.SetUnion("flags", "p1"))
		require.NoError(t, err)

		err = store.Update(ctx, "events", "e3", nil, docstore.SetDifference("flags", "p1"))
		require.NoError(t, err)

		raw := mr.HGet("doc:events:e3", "flags")
		assert.Equal(t, "[]", raw)

		doc, err := store.Get(ctx, "events", "e3")
		require.NoError(t, err)
		assert.Empty(t, doc.StringSlice("flags"))
	})

	t.Run("set difference on absent field", func(t *testing.T) {
		_, err := store.Add(ctx, "events", "e4", docstore.Fields{"ts": int64(4000)})
		require.NoError(t, err)

		err = store.Update(ctx, "events", "e4", nil, docstore.SetDifference("flags", "p1"))
		require.NoError(t, err)

		doc, err := store.Get(ctx, "events", "e4")
		require.NoError(t, err)
		_, ok := doc.Fields["flags"]
		assert.False(t, ok)
	})

	t.Run("dotted path folds into nested map", func(t *testing.T) {
		_, err := store.Add(ctx, "events", "e5", docstore.Fields{"ts": int64(5000)})
		require.NoError(t, err)

		err = store.Update(ctx, "events", "e5", nil, docstore.SetUnion("reactions.🍻", "p1", "p2"))
		require.NoError(t, err)

		doc, err := store.Get(ctx, "events", "e5")
		require.NoError(t, err)

		reactions := doc.StringSliceMap("reactions")
		require.Contains(t, reactions, "🍻")
		assert.Equal(t, []string{"p1", "p2"}, reactions["🍻"])
	})

	t.Run("delete field", func(t *testing.T) {
		_, err := store.Add(ctx, "events", "e6", docstore.Fields{
			"ts":       int64(6000),
			"imageRef": "img/abc",
		})
		require.NoError(t, err)

		err = store.Update(ctx, "events", "e6", nil, docstore.DeleteField("imageRef"))
		require.NoError(t, err)

		doc, err := store.Get(ctx, "events", "e6")
		require.NoError(t, err)
		_, ok := doc.Fields["imageRef"]
		assert.False(t, ok)
	})
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "events", "e1", docstore.Fields{"ts": int64(1000)})
	require.NoError(t, err)

	_, err = store.Add(ctx, "events", "e2", docstore.Fields{"ts": int64(2000)})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "events", "e1"))

	_, err = store.Get(ctx, "events", "e1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	snap, err := store.RunQuery(ctx, docstore.Query{
		Collection: "events",
		OrderBy:    "ts",
		Direction:  docstore.Descending,
	})
	require.NoError(t, err)
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "e2", snap.Docs[0].ID)

	assert.ErrorIs(t, store.Delete(ctx, "events", "e1"), docstore.ErrNotFound)
}

func TestApplyBatch(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	t.Run("empty batch", func(t *testing.T) {
		assert.ErrorIs(t, store.ApplyBatch(ctx, nil), docstore.ErrEmptyBatch)
	})

	t.Run("commits all writes", func(t *testing.T) {
		_, err := store.Add(ctx, "participants", "p1", docstore.Fields{"totalScore": int64(5)})
		require.NoError(t, err)

		_, err = store.Add(ctx, "participants", "p2", docstore.Fields{"totalScore": int64(30)})
		require.NoError(t, err)

		err = store.ApplyBatch(ctx, []docstore.Write{
			{Collection: "participants", ID: "p1", Fields: docstore.Fields{"totalScore": int64(50)}},
			{Collection: "participants", ID: "p2", Fields: docstore.Fields{"totalScore": int64(10)}},
		})
		require.NoError(t, err)

		doc, err := store.Get(ctx, "participants", "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(50), doc.Int64("totalScore"))

		snap, err := store.RunQuery(ctx, docstore.Query{
			Collection: "participants",
			OrderBy:    "totalScore",
			Direction:  docstore.Descending,
		})
		require.NoError(t, err)
		require.Len(t, snap.Docs, 2)
		assert.Equal(t, "p1", snap.Docs[0].ID)
		assert.Equal(t, "p2", snap.Docs[1].ID)
	})
}
