package contest_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest"
	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
	"github.com/swiglabs/swigboard/internal/docstore/redisstore"
)

// setupService builds the service bundle over a fresh in-memory store.
func setupService(
	t *testing.T, config contest.Config,
) (*contest.Service, *redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	store := redisstore.New(client, zap.NewNop(), contest.Collections()...)
	t.Cleanup(store.Close)

	return contest.NewService(store, config, zap.NewNop()), store, mr
}

// registerParticipant registers a participant and returns it.
func registerParticipant(t *testing.T, svc *contest.Service, id, name string) *types.Participant {
	t.Helper()

	p, err := svc.Participants().Register(context.Background(), contest.NewParticipant{
		ID:          id,
		DisplayName: name,
	})
	require.NoError(t, err)

	return p
}

// logEvent logs an event for a registered participant and returns its id.
func logEvent(t *testing.T, svc *contest.Service, participantID string, count int64, ts time.Time) string {
	t.Helper()

	id, err := svc.Events().Add(context.Background(), participantID, contest.NewEvent{
		ParticipantID: participantID,
		Count:         count,
		Timestamp:     ts,
	})
	require.NoError(t, err)

	return id
}

// totalScore reads a participant's stored aggregate.
func totalScore(t *testing.T, svc *contest.Service, participantID string) int64 {
	t.Helper()

	p, err := svc.Participants().Get(context.Background(), participantID)
	require.NoError(t, err)

	return p.TotalScore
}

// corruptTotal overwrites a participant's stored aggregate behind the
// services' back.
func corruptTotal(t *testing.T, store *redisstore.Store, participantID string, score int64) {
	t.Helper()

	err := store.Update(context.Background(), types.ParticipantsCollection, participantID,
		docstore.Fields{"totalScore": score})
	require.NoError(t, err)
}
