// Package reconcile implements the background worker that periodically
// repairs drift between participant totals and their events.
package reconcile

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest"
	"github.com/swiglabs/swigboard/internal/progress"
	"github.com/swiglabs/swigboard/internal/setup"
	"github.com/swiglabs/swigboard/internal/worker/core"
)

const (
	// defaultInterval spaces sweeps when no interval is configured.
	defaultInterval = 5 * time.Minute
	// retryInitialInterval is the first wait after a failed sweep.
	retryInitialInterval = 5 * time.Second
	// retryMaxInterval caps the wait between failed sweeps.
	retryMaxInterval = 5 * time.Minute
)

// Worker runs the aggregate reconciliation sweep on a fixed interval.
type Worker struct {
	reconciler *contest.Reconciler
	bar        *progress.Bar
	reporter   *core.StatusReporter
	logger     *zap.Logger
	interval   time.Duration
	retry      *backoff.ExponentialBackOff
}

// New creates a new reconcile worker.
func New(app *setup.App, bar *progress.Bar, logger *zap.Logger) *Worker {
	reporter := core.NewStatusReporter(app.StatusClient, "reconcile", logger)

	interval := time.Duration(app.Config.Worker.Reconcile.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Worker{
		reconciler: app.Contest.Reconciler(),
		bar:        bar,
		reporter:   reporter,
		logger:     logger.Named("reconcile_worker"),
		interval:   interval,
		retry: backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(retryInitialInterval),
			backoff.WithMaxInterval(retryMaxInterval),
			backoff.WithMaxElapsedTime(0),
		),
	}
}

// Start begins the reconcile worker's main loop. Each sweep runs exactly one
// aggregate sync; a failed sweep backs off exponentially before the next
// attempt instead of retrying the operation itself.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Reconcile Worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	w.bar.SetTotal(100)

	for {
		if ctx.Err() != nil {
			w.logger.Info("Reconcile worker shutting down")
			return
		}

		w.bar.Reset()
		w.reporter.SetHealthy(true)

		// Step 1: Run the aggregate sweep (0%)
		w.bar.SetStepMessage("Reconciling participant totals", 0)
		w.reporter.UpdateStatus("Reconciling participant totals", 0)

		result, err := w.reconciler.SyncAggregates(ctx)
		if err != nil {
			w.logger.Error("Failed to run aggregate sweep", zap.Error(err))
			w.reporter.SetHealthy(false)

			if !w.sleep(ctx, w.retry.NextBackOff()) {
				return
			}

			continue
		}

		// Step 2: Inspect sweep outcome (60%)
		w.bar.SetStepMessage("Inspecting sweep outcome", 60)
		w.reporter.UpdateStatus("Inspecting sweep outcome", 60)

		for _, sweepErr := range result.Errors {
			w.logger.Warn("Sweep left a total unrepaired", zap.Error(sweepErr))
		}

		if len(result.Errors) > 0 {
			w.reporter.SetHealthy(false)
		}

		// Step 3: Wait for the next sweep (100%)
		w.bar.SetStepMessage("Waiting for next sweep", 100)
		w.reporter.UpdateStatus("Waiting for next sweep", 100)

		w.logger.Info("Aggregate sweep completed",
			zap.Int("updated", result.UpdatedCount),
			zap.Int("errors", len(result.Errors)))

		w.retry.Reset()

		if !w.sleep(ctx, w.interval) {
			return
		}
	}
}

// sleep waits for d or until ctx is canceled, reporting whether the worker
// should keep running.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		w.logger.Info("Reconcile worker shutting down")
		return false
	case <-time.After(d):
		return true
	}
}
