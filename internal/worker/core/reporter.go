package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// StatusReporter periodically publishes a worker's status while it runs.
type StatusReporter struct {
	monitor *Monitor
	logger  *zap.Logger

	mu     sync.Mutex
	status Status

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStatusReporter creates a new status reporter for a worker.
func NewStatusReporter(client rueidis.Client, workerType string, logger *zap.Logger) *StatusReporter {
	return &StatusReporter{
		monitor: NewMonitor(client, logger),
		status: Status{
			WorkerID:   uuid.New().String(),
			WorkerType: workerType,
			IsHealthy:  true,
		},
		stop:   make(chan struct{}),
		logger: logger.Named("status_reporter"),
	}
}

// Start begins periodic status reporting until Stop is called or the context
// is cancelled.
func (r *StatusReporter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		// Report initial status
		r.report(ctx)

		for {
			select {
			case <-ticker.C:
				r.report(ctx)
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			}
		}
	}()
}

func (r *StatusReporter) report(ctx context.Context) {
	r.mu.Lock()
	status := r.status
	r.mu.Unlock()

	if err := r.monitor.ReportStatus(ctx, status); err != nil {
		r.logger.Error("Failed to report status", zap.Error(err))
	}
}

// Stop ends status reporting.
func (r *StatusReporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

// UpdateStatus updates the current task and progress.
func (r *StatusReporter) UpdateStatus(task string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.CurrentTask = task
	r.status.Progress = progress
}

// SetHealthy updates the health status.
func (r *StatusReporter) SetHealthy(healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.IsHealthy = healthy
}

// GetWorkerID returns the unique worker ID.
func (r *StatusReporter) GetWorkerID() string {
	return r.status.WorkerID
}
