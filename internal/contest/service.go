// Package contest implements the data-synchronization, aggregation, and
// ranking services of the contest backend: live feed and roster mirrors,
// event and comment writes, reaction/flag toggles, soft deletion with
// aggregate compensation, and the drift reconciler. All state lives in the
// document store; these services never hold authoritative data.
package contest

import (
	"context"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
	"github.com/swiglabs/swigboard/internal/docstore/redisstore"
)

// Config holds the tunables of the contest services.
type Config struct {
	// FeedPageSize is the number of events one feed page presents.
	FeedPageSize int
	// FeedRawWindow is the number of raw rows fetched per page before
	// soft-deleted rows are filtered out.
	FeedRawWindow int
	// FlagThreshold is the default flag count at which an event surfaces
	// for moderation review.
	FlagThreshold int
}

func (c Config) withDefaults() Config {
	if c.FeedPageSize <= 0 {
		c.FeedPageSize = 10
	}

	if c.FeedRawWindow <= 0 {
		c.FeedRawWindow = 2 * c.FeedPageSize
	}

	if c.FlagThreshold <= 0 {
		c.FlagThreshold = types.DefaultFlagThreshold
	}

	return c
}

// Service bundles the contest services over one document store.
type Service struct {
	store  docstore.Store
	logger *zap.Logger
	config Config

	activity     *ActivityService
	events       *EventService
	participants *ParticipantService
	comments     *CommentService
	ledger       *LedgerService
	moderation   *ModerationService
	reconciler   *Reconciler
}

// NewService creates the service bundle with the given store.
func NewService(store docstore.Store, config Config, logger *zap.Logger) *Service {
	config = config.withDefaults()
	activity := NewActivityService(store, logger)

	return &Service{
		store:        store,
		logger:       logger.Named("contest"),
		config:       config,
		activity:     activity,
		events:       NewEventService(store, logger),
		participants: NewParticipantService(store, logger),
		comments:     NewCommentService(store, logger),
		ledger:       NewLedgerService(store, logger),
		moderation:   NewModerationService(store, activity, config.FlagThreshold, logger),
		reconciler:   NewReconciler(store, logger),
	}
}

// Events returns the event service.
func (s *Service) Events() *EventService {
	return s.events
}

// Participants returns the participant service.
func (s *Service) Participants() *ParticipantService {
	return s.participants
}

// Comments returns the comment service.
func (s *Service) Comments() *CommentService {
	return s.comments
}

// Ledger returns the reaction/flag ledger.
func (s *Service) Ledger() *LedgerService {
	return s.ledger
}

// Moderation returns the moderation service.
func (s *Service) Moderation() *ModerationService {
	return s.moderation
}

// Reconciler returns the aggregate reconciler.
func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

// Activity returns the audit trail service.
func (s *Service) Activity() *ActivityService {
	return s.activity
}

// NewFeed opens a live event feed mirror, optionally scoped to one group.
func (s *Service) NewFeed(ctx context.Context, groupID string) *Feed {
	return newFeed(ctx, s.store, s.logger, s.config, groupID)
}

// NewRoster opens a live participant roster mirror.
func (s *Service) NewRoster(ctx context.Context) *Roster {
	return newRoster(ctx, s.store, s.logger)
}

// Collections returns the store schema the contest services rely on.
func Collections() []redisstore.Collection {
	return []redisstore.Collection{
		{Name: types.EventsCollection, OrderFields: []string{"ts"}, PartitionField: "groupId"},
		{Name: types.EventsCollection + "/*/comments", OrderFields: []string{"ts"}},
		{Name: types.ParticipantsCollection, OrderFields: []string{"totalScore", "createdAt"}},
		{Name: types.ActivityCollection, OrderFields: []string{"ts"}},
	}
}
