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

func TestSyncAggregatesRepairsDrift(t *testing.T) {
	t.Parallel()

	svc, store, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")
	registerParticipant(t, svc, "p2", "Mika")
	logEvent(t, svc, "p1", 5, time.Now().UTC().Add(-2*time.Minute))
	logEvent(t, svc, "p1", 3, time.Now().UTC().Add(-time.Minute))
	logEvent(t, svc, "p2", 4, time.Now().UTC())

	corruptTotal(t, store, "p1", 100)

	drifts, err := svc.Reconciler().CheckDrift(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, contest.Drift{ParticipantID: "p1", Stored: 100, Actual: 8}, drifts[0])

	result, err := svc.Reconciler().SyncAggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Empty(t, result.Errors)

	assert.Equal(t, int64(8), totalScore(t, svc, "p1"))
	assert.Equal(t, int64(4), totalScore(t, svc, "p2"))
}

func TestSyncAggregatesIdempotent(t *testing.T) {
	t.Parallel()

	svc, store, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")
	registerParticipant(t, svc, "p2", "Mika")
	logEvent(t, svc, "p1", 5, time.Now().UTC().Add(-time.Minute))
	logEvent(t, svc, "p2", 4, time.Now().UTC())

	corruptTotal(t, store, "p1", -7)
	corruptTotal(t, store, "p2", 99)

	result, err := svc.Reconciler().SyncAggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.UpdatedCount)
	assert.Empty(t, result.Errors)

	// A second sweep finds nothing left to correct.
	result, err = svc.Reconciler().SyncAggregates(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.UpdatedCount)
	assert.Empty(t, result.Errors)

	assert.Equal(t, int64(5), totalScore(t, svc, "p1"))
	assert.Equal(t, int64(4), totalScore(t, svc, "p2"))
}

func TestSyncAggregatesExcludesDeletedEvents(t *testing.T) {
	t.Parallel()

	svc, store, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")
	kept := logEvent(t, svc, "p1", 4, time.Now().UTC().Add(-time.Minute))
	dropped := logEvent(t, svc, "p1", 5, time.Now().UTC())
	require.NoError(t, svc.Moderation().DeleteEvent(ctx, "admin", dropped))

	corruptTotal(t, store, "p1", 99)

	result, err := svc.Reconciler().SyncAggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Equal(t, int64(4), totalScore(t, svc, "p1"))

	_, err = svc.Events().Get(ctx, kept)
	require.NoError(t, err)
}

func TestSyncAggregatesOrphanedEvents(t *testing.T) {
	t.Parallel()

	svc, store, _ := setupService(t, contest.Config{})
	ctx := context.Background()

	registerParticipant(t, svc, "p1", "Lena")
	logEvent(t, svc, "p1", 5, time.Now().UTC().Add(-time.Minute))

	// An event whose participant document vanished cannot be repaired.
	_, err := store.Add(ctx, types.EventsCollection, "stray", docstore.Fields{
		"participantId": "ghost",
		"count":         int64(3),
		"ts":            time.Now().UTC().UnixMilli(),
	})
	require.NoError(t, err)

	result, err := svc.Reconciler().SyncAggregates(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.UpdatedCount)
	require.Len(t, result.Errors, 1)

	var recErr *types.ReconciliationError
	require.ErrorAs(t, result.Errors[0], &recErr)
	assert.Equal(t, "ghost", recErr.ParticipantID)
}

func TestSyncAggregatesEmptyStore(t *testing.T) {
	t.Parallel()

	svc, _, _ := setupService(t, contest.Config{})

	result, err := svc.Reconciler().SyncAggregates(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.UpdatedCount)
	assert.Empty(t, result.Errors)
}

func TestSyncAggregatesReadFailure(t *testing.T) {
	t.Parallel()

	svc, _, mr := setupService(t, contest.Config{})

	registerParticipant(t, svc, "p1", "Lena")
	mr.Close()

	result, err := svc.Reconciler().SyncAggregates(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Zero(t, result.UpdatedCount)
}
