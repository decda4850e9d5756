package contest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// ParticipantService handles participant registration and reads.
type ParticipantService struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewParticipantService creates a participant service.
func NewParticipantService(store docstore.Store, logger *zap.Logger) *ParticipantService {
	return &ParticipantService{
		store:  store,
		logger: logger.Named("participants"),
	}
}

// NewParticipant holds the fields of a participant registration.
type NewParticipant struct {
	// ID is the account id of the participant.
	ID          string
	DisplayName string
}

// Register creates the participant document on first authentication. Calling
// it again for a known id only refreshes the display name, so registration
// is safe to repeat on every login.
func (s *ParticipantService) Register(ctx context.Context, data NewParticipant) (*types.Participant, error) {
	if data.ID == "" {
		return nil, types.NewValidationError("id", "must not be empty")
	}

	name := strings.TrimSpace(data.DisplayName)
	if name == "" {
		return nil, types.NewValidationError("displayName", "must not be empty")
	}

	nameFields := docstore.Fields{
		"displayName":    name,
		"normalizedName": normalizeName(name),
	}

	_, err := s.store.Get(ctx, types.ParticipantsCollection, data.ID)

	switch {
	case err == nil:
		if err := s.store.Update(ctx, types.ParticipantsCollection, data.ID, nameFields); err != nil {
			return nil, fmt.Errorf("failed to update participant %s: %w", data.ID, err)
		}

	case errors.Is(err, docstore.ErrNotFound):
		now := time.Now().UTC().UnixMilli()
		fields := docstore.Fields{
			"totalScore": int64(0),
			"createdAt":  now,
			"lastActive": now,
			"hidden":     false,
		}
		for k, v := range nameFields {
			fields[k] = v
		}

		if _, err := s.store.Add(ctx, types.ParticipantsCollection, data.ID, fields); err != nil {
			return nil, fmt.Errorf("failed to register participant %s: %w", data.ID, err)
		}

		s.logger.Info("Participant registered",
			zap.String("participantID", data.ID),
			zap.String("displayName", name))

	default:
		return nil, fmt.Errorf("failed to load participant %s: %w", data.ID, err)
	}

	return s.Get(ctx, data.ID)
}

// Get fetches a single participant.
func (s *ParticipantService) Get(ctx context.Context, id string) (*types.Participant, error) {
	doc, err := s.store.Get(ctx, types.ParticipantsCollection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant %s: %w", id, err)
	}

	return types.ParticipantFromDoc(doc), nil
}

// All returns every participant ordered by total score descending,
// including hidden ones.
func (s *ParticipantService) All(ctx context.Context) ([]*types.Participant, error) {
	snap, err := s.store.RunQuery(ctx, docstore.Query{
		Collection: types.ParticipantsCollection,
		OrderBy:    "totalScore",
		Direction:  docstore.Descending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}

	participants := make([]*types.Participant, len(snap.Docs))
	for i, doc := range snap.Docs {
		participants[i] = types.ParticipantFromDoc(doc)
	}

	return participants, nil
}
