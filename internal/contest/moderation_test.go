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

func TestDeleteAndRestoreEvent(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")
	first := logEvent(t, svc, "p1", 5, time.Now().UTC().Add(-time.Minute))
	second := logEvent(t, svc, "p1", 4, time.Now().UTC())
	require.Equal(t, int64(9), totalScore(t, svc, "p1"))

	t.Run("delete subtracts the count", func(t *testing.T) {
		require.NoError(t, svc.Moderation().DeleteEvent(ctx, "admin", first))
		assert.Equal(t, int64(4), totalScore(t, svc, "p1"))

		ev, err := svc.Events().Get(ctx, first)
		require.NoError(t, err)
		assert.True(t, ev.Deleted)
		assert.Equal(t, "admin", ev.DeletedBy)
		assert.False(t, ev.DeletedAt.IsZero())
	})

	t.Run("double delete rejected", func(t *testing.T) {
		err := svc.Moderation().DeleteEvent(ctx, "admin", first)
		assert.ErrorIs(t, err, types.ErrAlreadyDeleted)
		assert.Equal(t, int64(4), totalScore(t, svc, "p1"))
	})

	t.Run("restoring a live event rejected", func(t *testing.T) {
		err := svc.Moderation().RestoreEvent(ctx, "admin", second)
		assert.ErrorIs(t, err, types.ErrNotDeleted)
		assert.Equal(t, int64(4), totalScore(t, svc, "p1"))
	})

	t.Run("restore adds the count back", func(t *testing.T) {
		require.NoError(t, svc.Moderation().RestoreEvent(ctx, "admin", first))
		assert.Equal(t, int64(9), totalScore(t, svc, "p1"))

		ev, err := svc.Events().Get(ctx, first)
		require.NoError(t, err)
		assert.False(t, ev.Deleted)
		assert.Empty(t, ev.DeletedBy)
		assert.True(t, ev.DeletedAt.IsZero())

		err = svc.Moderation().RestoreEvent(ctx, "admin", first)
		assert.ErrorIs(t, err, types.ErrNotDeleted)
	})

	t.Run("missing event", func(t *testing.T) {
		err := svc.Moderation().DeleteEvent(ctx, "admin", "ghost")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestListFlagged(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")

	base := time.Now().UTC()
	lightly := logEvent(t, svc, "p1", 1, base.Add(-3*time.Minute))
	moderately := logEvent(t, svc, "p1", 1, base.Add(-2*time.Minute))
	heavily := logEvent(t, svc, "p1", 1, base.Add(-time.Minute))
	logEvent(t, svc, "p1", 1, base)

	flag := func(eventID string, actors ...string) {
		for _, actor := range actors {
			require.NoError(t, svc.Ledger().ToggleFlag(ctx, actor, eventID))
		}
	}

	flag(lightly, "p2", "p3", "p4")
	flag(moderately, "p2", "p3")
	flag(heavily, "p2", "p3", "p4", "p5")

	// A deleted event with enough flags still surfaces for review.
	require.NoError(t, svc.Moderation().DeleteEvent(ctx, "admin", heavily))

	t.Run("default threshold", func(t *testing.T) {
		flagged, err := svc.Moderation().ListFlagged(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{heavily, lightly}, eventIDs(flagged))
	})

	t.Run("explicit threshold", func(t *testing.T) {
		flagged, err := svc.Moderation().ListFlagged(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, []string{heavily}, eventIDs(flagged))

		flagged, err = svc.Moderation().ListFlagged(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{heavily, moderately, lightly}, eventIDs(flagged))
	})

	t.Run("clear flags drops the event from review", func(t *testing.T) {
		require.NoError(t, svc.Moderation().ClearFlags(ctx, "admin", lightly))

		ev, err := svc.Events().Get(ctx, lightly)
		require.NoError(t, err)
		assert.Equal(t, 0, ev.FlagCount())

		flagged, err := svc.Moderation().ListFlagged(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{heavily}, eventIDs(flagged))
	})
}

func TestDeletedEvents(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")

	base := time.Now().UTC()
	older := logEvent(t, svc, "p1", 1, base.Add(-2*time.Minute))
	newer := logEvent(t, svc, "p1", 1, base.Add(-time.Minute))
	logEvent(t, svc, "p1", 1, base)

	require.NoError(t, svc.Moderation().DeleteEvent(ctx, "admin", older))
	require.NoError(t, svc.Moderation().DeleteEvent(ctx, "admin", newer))

	deleted, err := svc.Moderation().DeletedEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{newer, older}, eventIDs(deleted))

	require.NoError(t, svc.Moderation().RestoreEvent(ctx, "admin", newer))

	deleted, err = svc.Moderation().DeletedEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{older}, eventIDs(deleted))
}

func TestHideAndShowParticipant(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")

	require.NoError(t, svc.Moderation().HideParticipant(ctx, "admin", "p1"))

	p, err := svc.Participants().Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Hidden)
	assert.Equal(t, "admin", p.HiddenBy)
	assert.False(t, p.HiddenAt.IsZero())

	require.NoError(t, svc.Moderation().ShowParticipant(ctx, "admin", "p1"))

	p, err = svc.Participants().Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, p.Hidden)
	assert.Empty(t, p.HiddenBy)
	assert.True(t, p.HiddenAt.IsZero())

	err = svc.Moderation().HideParticipant(ctx, "admin", "ghost")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestModerationAuditTrail(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")
	eventID := logEvent(t, svc, "p1", 5, time.Now().UTC())

	require.NoError(t, svc.Moderation().DeleteEvent(ctx, "admin", eventID))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, svc.Moderation().RestoreEvent(ctx, "mod2", eventID))

	logs, err := svc.Activity().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	restored := logs[0]
	assert.Equal(t, types.ActivityEventRestored, restored.Type)
	assert.Equal(t, "mod2", restored.ActorID)
	assert.Equal(t, eventID, restored.TargetID)
	assert.Equal(t, float64(5), restored.Details["count"])
	assert.False(t, restored.Timestamp.IsZero())

	deleted := logs[1]
	assert.Equal(t, types.ActivityEventDeleted, deleted.Type)
	assert.Equal(t, "admin", deleted.ActorID)
	assert.Equal(t, float64(5), deleted.Details["count"])
}

func eventIDs(events []*types.Event) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}

	return ids
}
