package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/swiglabs/swigboard/internal/archive/types"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewCreateTable().
			Model((*types.HourlyStanding)(nil)).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create hourly_standings table: %w", err)
		}

		_, err = db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_hourly_standings_participant_time
			ON hourly_standings (participant_id, timestamp DESC);

			CREATE INDEX IF NOT EXISTS idx_hourly_standings_time
			ON hourly_standings (timestamp DESC, rank ASC);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create hourly_standings indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_hourly_standings_participant_time;
			DROP INDEX IF EXISTS idx_hourly_standings_time;
			DROP TABLE IF EXISTS hourly_standings;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop hourly_standings schema: %w", err)
		}

		return nil
	})
}
