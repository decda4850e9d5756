package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/archive/types"
)

// StandingsModel handles database operations for hourly leaderboard snapshots.
type StandingsModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewStandingsModel creates a new standings model.
func NewStandingsModel(db *bun.DB, logger *zap.Logger) *StandingsModel {
	return &StandingsModel{
		db:     db,
		logger: logger.Named("db_standings"),
	}
}

// SaveHourlyStandings saves a full leaderboard snapshot. Rows for an hour that
// was already captured are overwritten, so re-running a snapshot is safe.
func (r *StandingsModel) SaveHourlyStandings(ctx context.Context, standings []*types.HourlyStanding) error {
	if len(standings) == 0 {
		return nil
	}

	_, err := r.db.NewInsert().
		Model(&standings).
		On("CONFLICT (timestamp, participant_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("total_score = EXCLUDED.total_score").
		Set("rank = EXCLUDED.rank").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save hourly standings: %w", err)
	}

	return nil
}

// GetStandingsHistory retrieves all snapshots taken at or after the given time,
// ordered oldest hour first with ranks ascending within each hour.
func (r *StandingsModel) GetStandingsHistory(ctx context.Context, since time.Time) ([]*types.HourlyStanding, error) {
	var standings []*types.HourlyStanding

	err := r.db.NewSelect().
		Model(&standings).
		Where("timestamp >= ?", since).
		Order("timestamp ASC").
		Order("rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get standings history: %w", err)
	}

	return standings, nil
}

// PurgeOldStandings removes snapshots older than the cutoff date.
func (r *StandingsModel) PurgeOldStandings(ctx context.Context, cutoffDate time.Time) error {
	result, err := r.db.NewDelete().
		Model((*types.HourlyStanding)(nil)).
		Where("timestamp < ?", cutoffDate).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge old standings: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.Debug("Purged old hourly standings",
		zap.Int64("rowsAffected", rowsAffected),
		zap.Time("cutoffDate", cutoffDate))

	return nil
}
