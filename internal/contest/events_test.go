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

func TestEventAdd(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")

	t.Run("applies aggregate increment", func(t *testing.T) {
		id, err := svc.Events().Add(ctx, "p1", contest.NewEvent{
			ParticipantID: "p1",
			Count:         3,
			Description:   "after work",
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		ev, err := svc.Events().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "p1", ev.ParticipantID)
		assert.Equal(t, int64(3), ev.Count)
		assert.Equal(t, "after work", ev.Description)
		assert.False(t, ev.Deleted)

		assert.Equal(t, int64(3), totalScore(t, svc, "p1"))
	})

	t.Run("zero count is allowed", func(t *testing.T) {
		_, err := svc.Events().Add(ctx, "p1", contest.NewEvent{
			ParticipantID: "p1",
			Count:         0,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), totalScore(t, svc, "p1"))
	})

	t.Run("negative count rejected before any write", func(t *testing.T) {
		_, err := svc.Events().Add(ctx, "p1", contest.NewEvent{
			ParticipantID: "p1",
			Count:         -1,
		})
		assert.True(t, types.IsValidation(err))
		assert.Equal(t, int64(3), totalScore(t, svc, "p1"))
	})

	t.Run("actor must own the event", func(t *testing.T) {
		_, err := svc.Events().Add(ctx, "p2", contest.NewEvent{
			ParticipantID: "p1",
			Count:         1,
		})
		assert.ErrorIs(t, err, types.ErrNotOwner)
	})

	t.Run("unregistered participant", func(t *testing.T) {
		_, err := svc.Events().Add(ctx, "ghost", contest.NewEvent{
			ParticipantID: "ghost",
			Count:         1,
		})
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestEventUpdate(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")

	id := logEvent(t, svc, "p1", 5, time.Now().UTC())
	require.Equal(t, int64(5), totalScore(t, svc, "p1"))

	t.Run("count change adjusts aggregate by the difference", func(t *testing.T) {
		count := int64(8)
		err := svc.Events().Update(ctx, "p1", id, contest.EventPatch{Count: &count})
		require.NoError(t, err)

		ev, err := svc.Events().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(8), ev.Count)
		assert.Equal(t, int64(8), totalScore(t, svc, "p1"))
	})

	t.Run("description only leaves aggregate alone", func(t *testing.T) {
		desc := "updated"
		err := svc.Events().Update(ctx, "p1", id, contest.EventPatch{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, int64(8), totalScore(t, svc, "p1"))
	})

	t.Run("empty patch rejected", func(t *testing.T) {
		err := svc.Events().Update(ctx, "p1", id, contest.EventPatch{})
		assert.True(t, types.IsValidation(err))
	})

	t.Run("negative count rejected", func(t *testing.T) {
		count := int64(-2)
		err := svc.Events().Update(ctx, "p1", id, contest.EventPatch{Count: &count})
		assert.True(t, types.IsValidation(err))
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		count := int64(1)
		err := svc.Events().Update(ctx, "p2", id, contest.EventPatch{Count: &count})
		assert.ErrorIs(t, err, types.ErrNotOwner)
	})

	t.Run("missing event", func(t *testing.T) {
		count := int64(1)
		err := svc.Events().Update(ctx, "p1", "ghost", contest.EventPatch{Count: &count})
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestEventUpdateOnDeletedEvent(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")

	id := logEvent(t, svc, "p1", 5, time.Now().UTC())
	require.NoError(t, svc.Moderation().DeleteEvent(ctx, "admin", id))
	require.Equal(t, int64(0), totalScore(t, svc, "p1"))

	// A deleted event's count is not part of the total, so editing it must
	// not shift the aggregate. The restore then adds the current count back.
	count := int64(9)
	require.NoError(t, svc.Events().Update(ctx, "p1", id, contest.EventPatch{Count: &count}))
	assert.Equal(t, int64(0), totalScore(t, svc, "p1"))

	require.NoError(t, svc.Moderation().RestoreEvent(ctx, "admin", id))
	assert.Equal(t, int64(9), totalScore(t, svc, "p1"))
}

func TestParticipantRegister(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	t.Run("creates with zero total", func(t *testing.T) {
		p := registerParticipant(t, svc, "p1", "Léna  ")
		assert.Equal(t, "Léna", p.DisplayName)
		assert.Equal(t, "lena", p.NormalizedName)
		assert.Equal(t, int64(0), p.TotalScore)
		assert.False(t, p.CreatedAt.IsZero())
	})

	t.Run("repeat registration keeps totals", func(t *testing.T) {
		logEvent(t, svc, "p1", 4, time.Now().UTC())

		p := registerParticipant(t, svc, "p1", "Lena B")
		assert.Equal(t, "Lena B", p.DisplayName)
		assert.Equal(t, "lena b", p.NormalizedName)
		assert.Equal(t, int64(4), p.TotalScore)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		_, err := svc.Participants().Register(ctx, contest.NewParticipant{DisplayName: "X"})
		assert.True(t, types.IsValidation(err))
	})

	t.Run("blank display name rejected", func(t *testing.T) {
		_, err := svc.Participants().Register(ctx, contest.NewParticipant{ID: "p9", DisplayName: "   "})
		assert.True(t, types.IsValidation(err))
	})
}
