package contest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// LedgerService toggles reaction and flag memberships on events. Membership
// changes are always issued as atomic set operations, never as a
// read-modify-write of the whole document, so two participants toggling
// concurrently converge without locking.
type LedgerService struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewLedgerService creates a ledger service.
func NewLedgerService(store docstore.Store, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		logger: logger.Named("ledger"),
	}
}

// ToggleReaction adds the actor to the symbol's reaction set if absent, or
// removes them if present. A pending legacy single-reaction list is migrated
// onto the reactions map first.
func (s *LedgerService) ToggleReaction(ctx context.Context, actor, eventID, symbol string) error {
	if actor == "" {
		return types.NewValidationError("actor", "must not be empty")
	}

	if symbol == "" {
		return types.NewValidationError("symbol", "must not be empty")
	}

	ev, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}

	if len(ev.LegacyReactions) > 0 {
		if err := s.migrateLegacyReactions(ctx, ev); err != nil {
			return err
		}
	}

	field := "reactions." + symbol

	op := docstore.SetUnion(field, actor)
	if ev.HasReaction(symbol, actor) {
		op = docstore.SetDifference(field, actor)
	}

	if err := s.store.Update(ctx, types.EventsCollection, eventID, nil, op); err != nil {
		return fmt.Errorf("failed to toggle reaction on event %s: %w", eventID, err)
	}

	return nil
}

// ToggleFlag adds the actor to the event's flag set if absent, or removes
// them if present.
func (s *LedgerService) ToggleFlag(ctx context.Context, actor, eventID string) error {
	if actor == "" {
		return types.NewValidationError("actor", "must not be empty")
	}

	ev, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}

	op := docstore.SetUnion("flags", actor)
	if ev.HasFlagged(actor) {
		op = docstore.SetDifference("flags", actor)
	}

	if err := s.store.Update(ctx, types.EventsCollection, eventID, nil, op); err != nil {
		return fmt.Errorf("failed to toggle flag on event %s: %w", eventID, err)
	}

	return nil
}

// migrateLegacyReactions rewrites a legacy single-reaction list as the
// default symbol's set and drops the legacy field. The fold already happened
// in memory when the event was decoded; this persists it.
func (s *LedgerService) migrateLegacyReactions(ctx context.Context, ev *types.Event) error {
	s.logger.Info("Migrating legacy reaction list",
		zap.String("eventID", ev.ID),
		zap.Int("reactions", len(ev.LegacyReactions)))

	err := s.store.Update(ctx, types.EventsCollection, ev.ID,
		docstore.Fields{"reactions." + types.DefaultReactionSymbol: ev.LegacyReactions},
		docstore.DeleteField("legacyReactions"))
	if err != nil {
		return fmt.Errorf("failed to migrate legacy reactions on event %s: %w", ev.ID, err)
	}

	return nil
}

func (s *LedgerService) loadEvent(ctx context.Context, eventID string) (*types.Event, error) {
	doc, err := s.store.Get(ctx, types.EventsCollection, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}

	return types.EventFromDoc(doc), nil
}
