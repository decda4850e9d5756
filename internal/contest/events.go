package contest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// EventService handles event reads and owner-side writes. Aggregate totals
// are maintained with atomic increments so concurrent writers never lose
// updates; any residual drift is the reconciler's job.
type EventService struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewEventService creates an event service.
func NewEventService(store docstore.Store, logger *zap.Logger) *EventService {
	return &EventService{
		store:  store,
		logger: logger.Named("events"),
	}
}

// NewEvent holds the fields of an event to be logged.
type NewEvent struct {
	ParticipantID string
	GroupID       string
	Count         int64
	Timestamp     time.Time
	Description   string
	ImageRef      string
}

func (d NewEvent) validate(actor string) error {
	if d.ParticipantID == "" {
		return types.NewValidationError("participantId", "must not be empty")
	}

	if actor != d.ParticipantID {
		return types.ErrNotOwner
	}

	if d.Count < 0 {
		return types.NewValidationError("count", "must not be negative")
	}

	return nil
}

// Add logs a new event and applies its count to the owner's running total.
// Returns the id of the created event.
func (s *EventService) Add(ctx context.Context, actor string, data NewEvent) (string, error) {
	if err := data.validate(actor); err != nil {
		s.logger.Debug("Rejected event", zap.Error(err))
		return "", err
	}

	if _, err := s.store.Get(ctx, types.ParticipantsCollection, data.ParticipantID); err != nil {
		return "", fmt.Errorf("failed to load participant %s: %w", data.ParticipantID, err)
	}

	now := time.Now().UTC()

	ts := data.Timestamp
	if ts.IsZero() {
		ts = now
	}

	fields := docstore.Fields{
		"participantId": data.ParticipantID,
		"count":         data.Count,
		"ts":            ts.UnixMilli(),
	}
	if data.GroupID != "" {
		fields["groupId"] = data.GroupID
	}

	if data.Description != "" {
		fields["description"] = data.Description
	}

	if data.ImageRef != "" {
		fields["imageRef"] = data.ImageRef
	}

	id, err := s.store.Add(ctx, types.EventsCollection, "", fields)
	if err != nil {
		return "", fmt.Errorf("failed to add event: %w", err)
	}

	err = s.store.Update(ctx, types.ParticipantsCollection, data.ParticipantID,
		docstore.Fields{"lastActive": now.UnixMilli()},
		docstore.Increment("totalScore", data.Count))
	if err != nil {
		s.logger.Error("Failed to apply aggregate increment",
			zap.String("eventID", id),
			zap.String("participantID", data.ParticipantID),
			zap.Error(err))

		return id, fmt.Errorf("failed to update aggregate: %w", err)
	}

	s.logger.Debug("Event added",
		zap.String("eventID", id),
		zap.String("participantID", data.ParticipantID),
		zap.Int64("count", data.Count))

	return id, nil
}

// Get fetches a single event.
func (s *EventService) Get(ctx context.Context, id string) (*types.Event, error) {
	doc, err := s.store.Get(ctx, types.EventsCollection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}

	return types.EventFromDoc(doc), nil
}

// EventPatch holds the owner-editable fields of an event. Nil fields are
// left untouched.
type EventPatch struct {
	Count       *int64
	Description *string
	ImageRef    *string
}

// Update applies an owner patch to an event. A count change adjusts the
// owner's running total by the difference, unless the event is soft-deleted
// and its count is therefore not part of the total.
func (s *EventService) Update(ctx context.Context, actor, id string, patch EventPatch) error {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if ev.ParticipantID != actor {
		return types.ErrNotOwner
	}

	fields := docstore.Fields{}

	var delta int64

	if patch.Count != nil {
		if *patch.Count < 0 {
			return types.NewValidationError("count", "must not be negative")
		}

		fields["count"] = *patch.Count
		delta = *patch.Count - ev.Count
	}

	if patch.Description != nil {
		fields["description"] = *patch.Description
	}

	if patch.ImageRef != nil {
		fields["imageRef"] = *patch.ImageRef
	}

	if len(fields) == 0 {
		return types.NewValidationError("patch", "no fields to update")
	}

	if err := s.store.Update(ctx, types.EventsCollection, id, fields); err != nil {
		return fmt.Errorf("failed to update event %s: %w", id, err)
	}

	if delta != 0 && !ev.Deleted {
		err := s.store.Update(ctx, types.ParticipantsCollection, ev.ParticipantID,
			nil, docstore.Increment("totalScore", delta))
		if err != nil {
			s.logger.Error("Failed to apply aggregate delta",
				zap.String("eventID", id),
				zap.Int64("delta", delta),
				zap.Error(err))

			return fmt.Errorf("failed to update aggregate: %w", err)
		}
	}

	return nil
}

// All returns every event, newest first, including soft-deleted ones.
func (s *EventService) All(ctx context.Context) ([]*types.Event, error) {
	snap, err := s.store.RunQuery(ctx, docstore.Query{
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
