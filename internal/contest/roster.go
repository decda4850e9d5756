package contest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// Roster is a live mirror of all participants, ordered by total score
// descending. Deliveries replace the mirror wholesale.
type Roster struct {
	logger *zap.Logger

	mu           sync.Mutex
	participants []*types.Participant
	err          error
	gen          int
	closed       bool
	sub          docstore.Subscription
}

// newRoster opens the mirror. A subscription setup failure leaves the
// mirror empty with the error exposed through Err.
func newRoster(ctx context.Context, store docstore.Store, logger *zap.Logger) *Roster {
	r := &Roster{logger: logger.Named("roster")}

	gen := r.gen

	sub, err := store.Subscribe(ctx, docstore.Query{
		Collection: types.ParticipantsCollection,
		OrderBy:    "totalScore",
		Direction:  docstore.Descending,
	},
		func(snap docstore.Snapshot) { r.replace(gen, snap) },
		func(err error) { r.fail(gen, err) })
	if err != nil {
		r.logger.Error("Failed to open roster subscription", zap.Error(err))
		r.err = err

		return r
	}

	r.sub = sub

	return r
}

// All returns every mirrored participant, including hidden ones.
func (r *Roster) All() []*types.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*types.Participant, len(r.participants))
	copy(out, r.participants)

	return out
}

// Visible returns the mirrored participants that are not hidden.
func (r *Roster) Visible() []*types.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*types.Participant, 0, len(r.participants))

	for _, p := range r.participants {
		if !p.Hidden {
			out = append(out, p)
		}
	}

	return out
}

// Err returns the mirror's error flag. It clears on the next successful
// delivery.
func (r *Roster) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

// Close cancels the subscription. In-flight deliveries observe the bumped
// generation and drop themselves.
func (r *Roster) Close() {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return
	}

	r.closed = true
	r.gen++
	sub := r.sub
	r.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
}

func (r *Roster) replace(gen int, snap docstore.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || gen != r.gen {
		return
	}

	participants := make([]*types.Participant, len(snap.Docs))
	for i, doc := range snap.Docs {
		participants[i] = types.ParticipantFromDoc(doc)
	}

	r.participants = participants
	r.err = nil
}

func (r *Roster) fail(gen int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || gen != r.gen {
		return
	}

	r.err = err
}
