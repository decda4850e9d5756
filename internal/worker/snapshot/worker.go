// Package snapshot implements the background worker that captures hourly
// leaderboard snapshots into the archive database and renders the standings
// progression chart.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/archive"
	archivetypes "github.com/swiglabs/swigboard/internal/archive/types"
	"github.com/swiglabs/swigboard/internal/contest"
	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/progress"
	"github.com/swiglabs/swigboard/internal/setup"
	"github.com/swiglabs/swigboard/internal/standings"
	"github.com/swiglabs/swigboard/internal/worker/core"
)

const (
	// defaultRetentionDays keeps a month of standings when unconfigured.
	defaultRetentionDays = 30
	// defaultChartDir receives the progression chart when unconfigured.
	defaultChartDir = "charts"
	// chartFileName is the name of the rendered progression chart.
	chartFileName = "standings.png"
)

// Worker handles hourly standings snapshots.
type Worker struct {
	db            archive.Client
	participants  *contest.ParticipantService
	bar           *progress.Bar
	reporter      *core.StatusReporter
	logger        *zap.Logger
	retentionDays int
	chartDir      string
}

// New creates a new snapshot worker.
func New(app *setup.App, bar *progress.Bar, logger *zap.Logger) *Worker {
	reporter := core.NewStatusReporter(app.StatusClient, "snapshot", logger)

	retentionDays := app.Config.Worker.Snapshot.RetentionDays
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}

	chartDir := app.Config.Worker.Snapshot.ChartDir
	if chartDir == "" {
		chartDir = defaultChartDir
	}

	return &Worker{
		db:            app.DB,
		participants:  app.Contest.Participants(),
		bar:           bar,
		reporter:      reporter,
		logger:        logger.Named("snapshot_worker"),
		retentionDays: retentionDays,
		chartDir:      chartDir,
	}
}

// Start begins the snapshot worker's main loop.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Snapshot Worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	w.bar.SetTotal(100)

	for {
		if ctx.Err() != nil {
			w.logger.Info("Snapshot worker shutting down")
			return
		}

		w.bar.Reset()
		w.reporter.SetHealthy(true)

		// Step 1: Wait until the start of the next hour (0%)
		w.bar.SetStepMessage("Waiting for next hour", 0)
		w.reporter.UpdateStatus("Waiting for next hour", 0)

		nextHour := time.Now().UTC().Truncate(time.Hour).Add(time.Hour)
		select {
		case <-ctx.Done():
			w.logger.Info("Snapshot worker shutting down")
			return
		case <-time.After(time.Until(nextHour)):
		}

		// Step 2: Read the roster (20%)
		w.bar.SetStepMessage("Reading roster", 20)
		w.reporter.UpdateStatus("Reading roster", 20)

		participants, err := w.participants.All(ctx)
		if err != nil {
			w.logger.Error("Failed to read roster", zap.Error(err))
			w.reporter.SetHealthy(false)

			continue
		}

		// Step 3: Save the hourly standings (40%)
		w.bar.SetStepMessage("Saving standings", 40)
		w.reporter.UpdateStatus("Saving standings", 40)

		snapshot := buildSnapshot(participants, nextHour)
		if err := w.db.Standings().SaveHourlyStandings(ctx, snapshot); err != nil {
			w.logger.Error("Failed to save hourly standings", zap.Error(err))
			w.reporter.SetHealthy(false)

			continue
		}

		// Step 4: Render the progression chart (60%)
		w.bar.SetStepMessage("Rendering progression chart", 60)
		w.reporter.UpdateStatus("Rendering progression chart", 60)

		if err := w.renderChart(ctx, nextHour); err != nil {
			w.logger.Error("Failed to render progression chart", zap.Error(err))
			w.reporter.SetHealthy(false)

			continue
		}

		// Step 5: Clean up old standings (80%)
		w.bar.SetStepMessage("Cleaning up old standings", 80)
		w.reporter.UpdateStatus("Cleaning up old standings", 80)

		cutoffDate := time.Now().UTC().AddDate(0, 0, -w.retentionDays)
		if err := w.db.Standings().PurgeOldStandings(ctx, cutoffDate); err != nil {
			w.logger.Error("Failed to purge old standings", zap.Error(err))
			w.reporter.SetHealthy(false)

			continue
		}

		// Step 6: Completed (100%)
		w.bar.SetStepMessage("Snapshot saved", 100)
		w.reporter.UpdateStatus("Snapshot saved", 100)

		w.logger.Info("Hourly standings saved",
			zap.Int("participants", len(snapshot)),
			zap.Time("timestamp", nextHour))
	}
}

// buildSnapshot ranks the roster and stamps every row with the snapshot hour.
func buildSnapshot(participants []*types.Participant, hour time.Time) []*archivetypes.HourlyStanding {
	ranked := standings.Compute(standings.FromParticipants(participants))

	snapshot := make([]*archivetypes.HourlyStanding, len(ranked))
	for i, s := range ranked {
		snapshot[i] = &archivetypes.HourlyStanding{
			Timestamp:     hour,
			ParticipantID: s.ParticipantID,
			DisplayName:   s.DisplayName,
			TotalScore:    s.Score,
			Rank:          s.Rank,
		}
	}

	return snapshot
}

// renderChart renders the progression chart of the current leaders into the
// configured chart directory.
func (w *Worker) renderChart(ctx context.Context, now time.Time) error {
	history, err := w.db.Standings().GetStandingsHistory(ctx, now.Add(-hoursToShow*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to get standings history: %w", err)
	}

	if len(history) == 0 {
		w.logger.Debug("No standings history to chart")
		return nil
	}

	buf, err := NewChartBuilder(history).Build()
	if err != nil {
		return fmt.Errorf("failed to build chart: %w", err)
	}

	if err := os.MkdirAll(w.chartDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}

	chartPath := filepath.Join(w.chartDir, chartFileName)
	if err := os.WriteFile(chartPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}

	return nil
}
