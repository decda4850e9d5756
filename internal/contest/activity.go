package contest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/docstore"
)

// ActivityService records and reads the audit trail of administrative
// actions.
type ActivityService struct {
	store  docstore.Store
	logger *zap.Logger
}

// NewActivityService creates an activity service.
func NewActivityService(store docstore.Store, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		store:  store,
		logger: logger.Named("activity"),
	}
}

// Log records one audit trail entry.
func (s *ActivityService) Log(
	ctx context.Context, actorID, targetID string, typ types.ActivityType, details map[string]any,
) error {
	fields := docstore.Fields{
		"actorId":  actorID,
		"targetId": targetID,
		"type":     string(typ),
		"ts":       time.Now().UTC().UnixMilli(),
	}
	if len(details) > 0 {
		fields["details"] = details
	}

	if _, err := s.store.Add(ctx, types.ActivityCollection, "", fields); err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}

	return nil
}

// Recent returns the newest audit trail entries, most recent first.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]*types.ActivityLog, error) {
	snap, err := s.store.RunQuery(ctx, docstore.Query{
		Collection: types.ActivityCollection,
		OrderBy:    "ts",
		Direction:  docstore.Descending,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}

	logs := make([]*types.ActivityLog, len(snap.Docs))
	for i, doc := range snap.Docs {
		logs[i] = types.ActivityLogFromDoc(doc)
	}

	return logs, nil
}
