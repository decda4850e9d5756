package contest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// ModerationService handles administrative actions: soft-deleting and
// restoring events, clearing flags, hiding participants, and the review
// listings. Every action lands in the audit trail.
type ModerationService struct {
	store         docstore.Store
	activity      *ActivityService
	flagThreshold int
	logger        *zap.Logger
}

// NewModerationService creates a moderation service.
func NewModerationService(
	store docstore.Store, activity *ActivityService, flagThreshold int, logger *zap.Logger,
) *ModerationService {
	return &ModerationService{
		store:         store,
		activity:      activity,
		flagThreshold: flagThreshold,
		logger:        logger.Named("moderation"),
	}
}

// DeleteEvent marks an event deleted and subtracts its count from the
// owner's running total. Deleting an already-deleted event is rejected so
// the compensation cannot be applied twice.
func (m *ModerationService) DeleteEvent(ctx context.Context, actor, id string) error {
	ev, err := m.loadEvent(ctx, id)
	if err != nil {
		return err
	}

	if ev.Deleted {
		return types.ErrAlreadyDeleted
	}

	now := time.Now().UTC()

	err = m.store.Update(ctx, types.EventsCollection, id, docstore.Fields{
		"deleted":   true,
		"deletedAt": now.UnixMilli(),
		"deletedBy": actor,
	})
	if err != nil {
		return fmt.Errorf("failed to mark event %s deleted: %w", id, err)
	}

	err = m.store.Update(ctx, types.ParticipantsCollection, ev.ParticipantID,
		nil, docstore.Increment("totalScore", -ev.Count))
	if err != nil {
		m.logger.Error("Failed to apply delete compensation",
			zap.String("eventID", id),
			zap.Int64("count", ev.Count),
			zap.Error(err))

		return fmt.Errorf("failed to update aggregate: %w", err)
	}

	m.log(ctx, actor, id, types.ActivityEventDeleted, map[string]any{"count": ev.Count})

	return nil
}

// RestoreEvent clears an event's deletion fields and adds its count back to
// the owner's running total. Restoring a live event is rejected.
func (m *ModerationService) RestoreEvent(ctx context.Context, actor, id string) error {
	ev, err := m.loadEvent(ctx, id)
	if err != nil {
		return err
	}

	if !ev.Deleted {
		return types.ErrNotDeleted
	}

	err = m.store.Update(ctx, types.EventsCollection, id,
		docstore.Fields{"deleted": false},
		docstore.DeleteField("deletedAt"),
		docstore.DeleteField("deletedBy"))
	if err != nil {
		return fmt.Errorf("failed to restore event %s: %w", id, err)
	}

	err = m.store.Update(ctx, types.ParticipantsCollection, ev.ParticipantID,
		nil, docstore.Increment("totalScore", ev.Count))
	if err != nil {
		m.logger.Error("Failed to apply restore compensation",
			zap.String("eventID", id),
			zap.Int64("count", ev.Count),
			zap.Error(err))

		return fmt.Errorf("failed to update aggregate: %w", err)
	}

	m.log(ctx, actor, id, types.ActivityEventRestored, map[string]any{"count": ev.Count})

	return nil
}

// ClearFlags resets an event's flag set to empty.
func (m *ModerationService) ClearFlags(ctx context.Context, actor, id string) error {
	ev, err := m.loadEvent(ctx, id)
	if err != nil {
		return err
	}

	err = m.store.Update(ctx, types.EventsCollection, id, docstore.Fields{"flags": []string{}})
	if err != nil {
		return fmt.Errorf("failed to clear flags on event %s: %w", id, err)
	}

	m.log(ctx, actor, id, types.ActivityFlagsCleared, map[string]any{"cleared": ev.FlagCount()})

	return nil
}

// ListFlagged returns every event whose flag-set size is at least the given
// threshold, newest first. A non-positive threshold uses the configured
// default.
func (m *ModerationService) ListFlagged(ctx context.Context, threshold int) ([]*types.Event, error) {
	if threshold <= 0 {
		threshold = m.flagThreshold
	}

	events, err := m.allEvents(ctx)
	if err != nil {
		return nil, err
	}

	flagged := make([]*types.Event, 0)
	for _, ev := range events {
		if ev.FlagCount() >= threshold {
			flagged = append(flagged, ev)
		}
	}

	return flagged, nil
}

// DeletedEvents lists soft-deleted events for administrative review,
// newest first.
func (m *ModerationService) DeletedEvents(ctx context.Context) ([]*types.Event, error) {
	events, err := m.allEvents(ctx)
	if err != nil {
		return nil, err
	}

	deleted := make([]*types.Event, 0)
	for _, ev := range events {
		if ev.Deleted {
			deleted = append(deleted, ev)
		}
	}

	return deleted, nil
}

// HideParticipant hides a participant from the public roster.
func (m *ModerationService) HideParticipant(ctx context.Context, actor, id string) error {
	if _, err := m.store.Get(ctx, types.ParticipantsCollection, id); err != nil {
		return fmt.Errorf("failed to get participant %s: %w", id, err)
	}

	err := m.store.Update(ctx, types.ParticipantsCollection, id, docstore.Fields{
		"hidden":   true,
		"hiddenAt": time.Now().UTC().UnixMilli(),
		"hiddenBy": actor,
	})
	if err != nil {
		return fmt.Errorf("failed to hide participant %s: %w", id, err)
	}

	m.log(ctx, actor, id, types.ActivityParticipantHidden, nil)

	return nil
}

// ShowParticipant returns a hidden participant to the public roster.
func (m *ModerationService) ShowParticipant(ctx context.Context, actor, id string) error {
	if _, err := m.store.Get(ctx, types.ParticipantsCollection, id); err != nil {
		return fmt.Errorf("failed to get participant %s: %w", id, err)
	}

	err := m.store.Update(ctx, types.ParticipantsCollection, id,
		docstore.Fields{"hidden": false},
		docstore.DeleteField("hiddenAt"),
		docstore.DeleteField("hiddenBy"))
	if err != nil {
		return fmt.Errorf("failed to show participant %s: %w", id, err)
	}

	m.log(ctx, actor, id, types.ActivityParticipantShown, nil)

	return nil
}

// log records an audit trail entry. Trail failures never fail the action
// they describe.
func (m *ModerationService) log(
	ctx context.Context, actor, target string, typ types.ActivityType, details map[string]any,
) {
	if err := m.activity.Log(ctx, actor, target, typ, details); err != nil {
		m.logger.Warn("Failed to record audit trail entry",
			zap.String("type", string(typ)),
			zap.String("targetID", target),
			zap.Error(err))
	}
}

func (m *ModerationService) loadEvent(ctx context.Context, id string) (*types.Event, error) {
	doc, err := m.store.Get(ctx, types.EventsCollection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}

	return types.EventFromDoc(doc), nil
}

func (m *ModerationService) allEvents(ctx context.Context) ([]*types.Event, error) {
	snap, err := m.store.RunQuery(ctx, docstore.Query{
		Collection: types.EventsCollection,
		OrderBy:    "ts",
		Direction:  docstore.Descending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]*types.Event, len(snap.Docs))
	for i, doc := range snap.Docs {
		events[i] = types.EventFromDoc(doc)
	}

	return events, nil
}
