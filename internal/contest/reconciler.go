package contest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// Reconciler repairs drift between the denormalized participant totals and
// the sum of their non-deleted event counts.
type Reconciler struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(store docstore.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.Named("reconciler"),
	}
}

// ReconcileResult reports the outcome of one aggregate sweep.
type ReconcileResult struct {
	// UpdatedCount is the number of participant totals corrected.
	UpdatedCount int
	// Errors collects the failures of the sweep: unrepairable totals and a
	// failed commit. A commit failure applies nothing, so UpdatedCount
	// stays zero.
	Errors []error
}

// Drift is one divergent participant total.
type Drift struct {
	ParticipantID string
	Stored        int64
	Actual        int64
}

// SyncAggregates recomputes every participant's total from their non-deleted
// events and commits all corrections as one atomic batch. No batch is
// submitted when nothing diverged, so running the sweep twice in a row
// corrects nothing the second time.
func (r *Reconciler) SyncAggregates(ctx context.Context) (*ReconcileResult, error) {
	events, participants, err := r.loadState(ctx)
	if err != nil {
		return &ReconcileResult{}, err
	}

	result := &ReconcileResult{}

	drifts, orphaned := computeDrift(events, participants)
	for _, id := range orphaned {
		result.Errors = append(result.Errors, &types.ReconciliationError{
			ParticipantID: id,
			Err:           errors.New("participant document missing"),
		})
	}

	if len(drifts) == 0 {
		r.logger.Debug("No aggregate drift found",
			zap.Int("events", len(events)),
			zap.Int("participants", len(participants)))

		return result, nil
	}

	writes := make([]docstore.Write, len(drifts))
	for i, d := range drifts {
		writes[i] = docstore.Write{
			Collection: types.ParticipantsCollection,
			ID:         d.ParticipantID,
			Fields:     docstore.Fields{"totalScore": d.Actual},
		}
	}

	if err := r.store.ApplyBatch(ctx, writes); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to commit aggregate corrections: %w", err))
		return result, nil
	}

	result.UpdatedCount = len(writes)

	r.logger.Info("Corrected aggregate drift",
		zap.Int("updated", result.UpdatedCount),
		zap.Int("events", len(events)),
		zap.Int("participants", len(participants)))

	return result, nil
}

// CheckDrift computes the divergent totals without writing anything.
func (r *Reconciler) CheckDrift(ctx context.Context) ([]Drift, error) {
	events, participants, err := r.loadState(ctx)
	if err != nil {
		return nil, err
	}

	drifts, _ := computeDrift(events, participants)

	return drifts, nil
}

// loadState reads all events and all participants concurrently. A failure of
// either read aborts the sweep before anything is computed.
func (r *Reconciler) loadState(ctx context.Context) ([]*types.Event, []*types.Participant, error) {
	var (
		events       []*types.Event
		participants []*types.Participant
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		snap, err := r.store.RunQuery(ctx, docstore.Query{
			Collection: types.EventsCollection,
			OrderBy:    "ts",
			Direction:  docstore.Descending,
		})
		if err != nil {
			return fmt.Errorf("failed to read events: %w", err)
		}

		events = make([]*types.Event, len(snap.Docs))
		for i, doc := range snap.Docs {
			events[i] = types.EventFromDoc(doc)
		}

		return nil
	})

	p.Go(func(ctx context.Context) error {
		snap, err := r.store.RunQuery(ctx, docstore.Query{
			Collection: types.ParticipantsCollection,
			OrderBy:    "totalScore",
			Direction:  docstore.Descending,
		})
		if err != nil {
			return fmt.Errorf("failed to read participants: %w", err)
		}

		participants = make([]*types.Participant, len(snap.Docs))
		for i, doc := range snap.Docs {
			participants[i] = types.ParticipantFromDoc(doc)
		}

		return nil
	})

	if err := p.Wait(); err != nil {
		return nil, nil, err
	}

	return events, participants, nil
}

// computeDrift compares stored totals against recomputed ones. It returns
// the divergent participants in id order, plus the ids of participants that
// have events but no document to repair.
func computeDrift(events []*types.Event, participants []*types.Participant) ([]Drift, []string) {
	actual := make(map[string]int64, len(participants))

	for _, ev := range events {
		if !ev.Deleted {
			actual[ev.ParticipantID] += ev.Count
		}
	}

	known := make(map[string]struct{}, len(participants))

	var drifts []Drift

	for _, p := range participants {
		known[p.ID] = struct{}{}

		if want := actual[p.ID]; want != p.TotalScore {
			drifts = append(drifts, Drift{ParticipantID: p.ID, Stored: p.TotalScore, Actual: want})
		}
	}

	sort.Slice(drifts, func(i, j int) bool {
		return drifts[i].ParticipantID < drifts[j].ParticipantID
	})

	var orphaned []string

	for id := range actual {
		if _, ok := known[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}

	sort.Strings(orphaned)

	return drifts, orphaned
}
