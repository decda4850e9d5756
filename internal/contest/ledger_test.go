package contest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiglabs/swigboard/internal/contest"
	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

func TestToggleReaction(t *testing.T) {
	t.Parallel()

	svc, _, mr := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")
	eventID := logEvent(t, svc, "p1", 2, time.Now().UTC())

	t.Run("adds then removes", func(t *testing.T) {
		require.NoError(t, svc.Ledger().ToggleReaction(ctx, "p2", eventID, "🔥"))

		ev, err := svc.Events().Get(ctx, eventID)
		require.NoError(t, err)
		assert.True(t, ev.HasReaction("🔥", "p2"))
		assert.Equal(t, 1, ev.ReactionCount("🔥"))

		require.NoError(t, svc.Ledger().ToggleReaction(ctx, "p2", eventID, "🔥"))

		ev, err = svc.Events().Get(ctx, eventID)
		require.NoError(t, err)
		assert.False(t, ev.HasReaction("🔥", "p2"))
		assert.Equal(t, 0, ev.ReactionCount("🔥"))
	})

	t.Run("removal leaves a tombstone", func(t *testing.T) {
		raw := mr.HGet("doc:events:"+eventID, "reactions.🔥")
		assert.Equal(t, "[]", raw)
	})

	t.Run("membership is per symbol", func(t *testing.T) {
		require.NoError(t, svc.Ledger().ToggleReaction(ctx, "p2", eventID, "🔥"))
		require.NoError(t, svc.Ledger().ToggleReaction(ctx, "p2", eventID, "💀"))

		ev, err := svc.Events().Get(ctx, eventID)
		require.NoError(t, err)
		assert.True(t, ev.HasReaction("🔥", "p2"))
		assert.True(t, ev.HasReaction("💀", "p2"))

		require.NoError(t, svc.Ledger().ToggleReaction(ctx, "p2", eventID, "🔥"))

		ev, err = svc.Events().Get(ctx, eventID)
		require.NoError(t, err)
		assert.False(t, ev.HasReaction("🔥", "p2"))
		assert.True(t, ev.HasReaction("💀", "p2"))
	})

	t.Run("missing event", func(t *testing.T) {
		err := svc.Ledger().ToggleReaction(ctx, "p2", "ghost", "🔥")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("empty symbol rejected", func(t *testing.T) {
		err := svc.Ledger().ToggleReaction(ctx, "p2", eventID, "")
		assert.True(t, types.IsValidation(err))
	})
}

func TestToggleFlag(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")
	eventID := logEvent(t, svc, "p1", 2, time.Now().UTC())

	require.NoError(t, svc.Ledger().ToggleFlag(ctx, "p2", eventID))
	require.NoError(t, svc.Ledger().ToggleFlag(ctx, "p3", eventID))

	ev, err := svc.Events().Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.FlagCount())
	assert.True(t, ev.HasFlagged("p2"))

	require.NoError(t, svc.Ledger().ToggleFlag(ctx, "p2", eventID))

	ev, err = svc.Events().Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.FlagCount())
	assert.False(t, ev.HasFlagged("p2"))
	assert.True(t, ev.HasFlagged("p3"))
}

func TestLegacyReactionMigration(t *testing.T) {
	t.Parallel()

	svc, store, mr := setupService(t, contest.Config{})
	ctx := context.Background()

	seedLegacyEvent := func(t *testing.T, id string) {
		t.Helper()

		_, err := store.Add(ctx, types.EventsCollection, id, docstore.Fields{
			"participantId":   "p1",
			"count":           int64(1),
			"ts":              time.Now().UTC().UnixMilli(),
			"legacyReactions": []string{"p1", "p2"},
		})
		require.NoError(t, err)
	}

	t.Run("read folds legacy list without writing", func(t *testing.T) {
		seedLegacyEvent(t, "legacy-read")

		ev, err := svc.Events().Get(ctx, "legacy-read")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2"}, ev.Reactors(types.DefaultReactionSymbol))

		// The stored document is untouched by a plain read.
		assert.NotEmpty(t, mr.HGet("doc:events:legacy-read", "legacyReactions"))
		assert.Empty(t, mr.HGet("doc:events:legacy-read", "reactions."+types.DefaultReactionSymbol))
	})

	t.Run("toggle persists the migration", func(t *testing.T) {
		seedLegacyEvent(t, "legacy-toggle")

		require.NoError(t, svc.Ledger().ToggleReaction(ctx, "p3", "legacy-toggle", types.DefaultReactionSymbol))

		assert.Empty(t, mr.HGet("doc:events:legacy-toggle", "legacyReactions"))

		ev, err := svc.Events().Get(ctx, "legacy-toggle")
		require.NoError(t, err)
		assert.Empty(t, ev.LegacyReactions)
		assert.Equal(t, []string{"p1", "p2", "p3"}, ev.Reactors(types.DefaultReactionSymbol))
	})

	t.Run("legacy member toggles off after migration", func(t *testing.T) {
		seedLegacyEvent(t, "legacy-member")

		require.NoError(t, svc.Ledger().ToggleReaction(ctx, "p1", "legacy-member", types.DefaultReactionSymbol))

		ev, err := svc.Events().Get(ctx, "legacy-member")
		require.NoError(t, err)
		assert.Equal(t, []string{"p2"}, ev.Reactors(types.DefaultReactionSymbol))
	})

	t.Run("toggle of another symbol still migrates", func(t *testing.T) {
		seedLegacyEvent(t, "legacy-other")

		require.NoError(t, svc.Ledger().ToggleReaction(ctx, "p3", "legacy-other", "🔥"))

		assert.Empty(t, mr.HGet("doc:events:legacy-other", "legacyReactions"))

		ev, err := svc.Events().Get(ctx, "legacy-other")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2"}, ev.Reactors(types.DefaultReactionSymbol))
		assert.Equal(t, []string{"p3"}, ev.Reactors("🔥"))
	})
}
