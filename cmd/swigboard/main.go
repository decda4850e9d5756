package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/export"
	"github.com/swiglabs/swigboard/internal/progress"
	"github.com/swiglabs/swigboard/internal/setup"
	"github.com/swiglabs/swigboard/internal/standings"
	"github.com/swiglabs/swigboard/internal/worker/core"
	"github.com/swiglabs/swigboard/internal/worker/reconcile"
	"github.com/swiglabs/swigboard/internal/worker/snapshot"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"
	// CommandLogDir specifies where one-shot command log files are stored.
	CommandLogDir = "logs/cli_logs"

	// ReconcileWorker repairs aggregate drift on an interval.
	ReconcileWorker = "reconcile"
	// SnapshotWorker captures hourly standings into the archive.
	SnapshotWorker = "snapshot"
)

var ErrInvalidHashType = errors.New("invalid hash type")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "swigboard",
		Usage: "Contest data backend: sync workers, moderation queries, standings, and exports",
		Commands: []*cli.Command{
			{
				Name:  "worker",
				Usage: "Start background workers",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Value:   1,
						Usage:   "Number of workers to start",
					},
				},
				Commands: []*cli.Command{
					{
						Name:  ReconcileWorker,
						Usage: "Start aggregate reconciliation workers",
						Action: func(ctx context.Context, c *cli.Command) error {
							runWorkers(ctx, ReconcileWorker, c.Int("workers"))
							return nil
						},
					},
					{
						Name:  SnapshotWorker,
						Usage: "Start hourly standings snapshot workers",
						Action: func(ctx context.Context, c *cli.Command) error {
							runWorkers(ctx, SnapshotWorker, c.Int("workers"))
							return nil
						},
					},
				},
			},
			{
				Name:   "status",
				Usage:  "List worker heartbeats",
				Action: runStatus,
			},
			{
				Name:   "reconcile",
				Usage:  "Run one aggregate reconciliation sweep and print the result",
				Action: runReconcile,
			},
			{
				Name:  "flagged",
				Usage: "List events at or over the flag threshold",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "threshold",
						Aliases: []string{"t"},
						Value:   types.DefaultFlagThreshold,
						Usage:   "Flag count at which events are listed",
					},
				},
				Action: runFlagged,
			},
			{
				Name:   "deleted",
				Usage:  "List soft-deleted events",
				Action: runDeleted,
			},
			{
				Name:  "standings",
				Usage: "Print the current standings with podium markers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "group",
						Aliases: []string{"g"},
						Usage:   "Restrict standings to one contest group",
					},
				},
				Action: runStandings,
			},
			{
				Name:  "export",
				Usage: "Export contest events and participants to archive file formats",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Base output directory for export files",
					},
					&cli.BoolFlag{
						Name:  "anonymize",
						Usage: "Replace participant IDs with salted hashes and drop display names",
					},
					&cli.StringFlag{
						Name:    "salt",
						Aliases: []string{"s"},
						Usage:   "Salt for hashing IDs",
					},
					&cli.StringFlag{
						Name:    "export-version",
						Aliases: []string{"v"},
						Usage:   "Export version",
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Export description",
					},
					&cli.StringFlag{
						Name:    "hash-type",
						Aliases: []string{"t"},
						Usage:   "Hash algorithm to use (argon2id or sha256)",
					},
					&cli.IntFlag{
						Name:    "concurrency",
						Aliases: []string{"c"},
						Usage:   "Number of concurrent hash operations",
					},
					&cli.UintFlag{
						Name:    "iterations",
						Aliases: []string{"i"},
						Usage:   "Number of hash iterations",
					},
					&cli.UintFlag{
						Name:    "memory",
						Aliases: []string{"m"},
						Usage:   "Memory to use for Argon2id in MB",
					},
				},
				Action: runExport,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runWorkers starts multiple instances of a worker type.
func runWorkers(ctx context.Context, workerType string, count int64) {
	app, err := setup.InitializeApp(ctx, WorkerLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	// Initialize progress bars
	bars := make([]*progress.Bar, count)
	for i := range count {
		bars[i] = progress.NewBar(100, 25, fmt.Sprintf("Worker %d", i))
	}

	// Create and start the renderer
	renderer := progress.NewRenderer(bars)
	go renderer.Render()

	// Start workers
	var wg sync.WaitGroup

	for i := range count {
		wg.Add(1)

		go func(workerID int64) {
			defer wg.Done()

			workerLogger := setup.GetWorkerLogger(
				fmt.Sprintf("%s_worker_%d", workerType, workerID),
				WorkerLogDir,
				app.Config.Common.Debug.LogLevel,
			)

			// Get progress bar for this worker
			bar := bars[workerID]

			var w interface{ Start(ctx context.Context) }

			switch workerType {
			case ReconcileWorker:
				w = reconcile.New(app, bar, workerLogger)
			case SnapshotWorker:
				w = snapshot.New(app, bar, workerLogger)
			default:
				log.Fatalf("Invalid worker type: %s", workerType)
			}

			runWorker(ctx, w, workerLogger)
		}(i)
	}

	log.Printf("Started %d %s workers", count, workerType)
	wg.Wait()
	renderer.Stop()
	log.Println("All workers have finished. Exiting.")
}

// runWorker runs a single worker in a loop with error recovery.
func runWorker(ctx context.Context, w interface{ Start(ctx context.Context) }, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, stopping worker")
			return
		default:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("Worker execution failed",
							zap.String("worker_type", fmt.Sprintf("%T", w)),
							zap.Any("panic", r),
						)
						logger.Info("Restarting worker in 5 seconds...")
						time.Sleep(5 * time.Second)
					}
				}()

				logger.Info("Starting worker")
				w.Start(ctx)
			}()

			if ctx.Err() != nil {
				continue
			}

			logger.Warn("Worker stopped unexpectedly",
				zap.String("worker_type", fmt.Sprintf("%T", w)),
			)
			time.Sleep(5 * time.Second)
		}
	}
}

// runStatus lists the workers that reported a heartbeat recently.
func runStatus(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx, CommandLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	statuses, err := core.NewMonitor(app.StatusClient, app.Logger).GetAllStatuses(ctx)
	if err != nil {
		return fmt.Errorf("failed to get worker statuses: %w", err)
	}

	fmt.Printf("%d workers reporting\n", len(statuses))

	for _, s := range statuses {
		state := "healthy"

		switch {
		case time.Since(s.LastSeen) > core.StaleThreshold:
			state = "offline"
		case !s.IsHealthy:
			state = "unhealthy"
		}

		task := s.CurrentTask
		if task == "" {
			task = "idle"
		}

		fmt.Printf("%s %s  %-9s  %3d%%  %s\n", s.WorkerType, s.WorkerID, state, s.Progress, task)
	}

	return nil
}

// runReconcile runs one aggregate sweep and prints what it corrected.
func runReconcile(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx, CommandLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	result, err := app.Contest.Reconciler().SyncAggregates(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync aggregates: %w", err)
	}

	fmt.Printf("Corrected %d participant totals\n", result.UpdatedCount)

	for _, sweepErr := range result.Errors {
		fmt.Printf("  error: %v\n", sweepErr)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("Sweep completed with %d errors\n", len(result.Errors))
	}

	return nil
}

// runFlagged lists the events whose flag count meets the threshold.
func runFlagged(ctx context.Context, c *cli.Command) error {
	app, err := setup.InitializeApp(ctx, CommandLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	threshold := int(c.Int("threshold"))

	events, err := app.Contest.Moderation().ListFlagged(ctx, threshold)
	if err != nil {
		return fmt.Errorf("failed to list flagged events: %w", err)
	}

	fmt.Printf("%d events at or over %d flags\n", len(events), threshold)

	for _, ev := range events {
		fmt.Printf("%s  flags=%d  participant=%s  %s\n",
			ev.ID, ev.FlagCount(), ev.ParticipantID, ev.Timestamp.UTC().Format(time.RFC3339))
	}

	return nil
}

// runDeleted lists the soft-deleted events with their deletion metadata.
func runDeleted(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx, CommandLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	events, err := app.Contest.Moderation().DeletedEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list deleted events: %w", err)
	}

	fmt.Printf("%d soft-deleted events\n", len(events))

	for _, ev := range events {
		fmt.Printf("%s  participant=%s  deletedBy=%s  deletedAt=%s\n",
			ev.ID, ev.ParticipantID, ev.DeletedBy, ev.DeletedAt.UTC().Format(time.RFC3339))
	}

	return nil
}

// runStandings prints the ranked leaderboard, optionally scoped to the
// non-deleted events of one group.
func runStandings(ctx context.Context, c *cli.Command) error {
	app, err := setup.InitializeApp(ctx, CommandLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	participants, err := app.Contest.Participants().All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read participants: %w", err)
	}

	var rows []standings.Row

	if group := c.String("group"); group != "" {
		rows, err = groupRows(ctx, app, participants, group)
		if err != nil {
			return err
		}
	} else {
		rows = standings.FromParticipants(participants)
	}

	ranked := standings.Compute(rows)
	if len(ranked) == 0 {
		fmt.Println("No standings to show")
		return nil
	}

	for _, s := range ranked {
		marker := s.Place.Marker()
		if marker != "" {
			marker = "  " + marker
		}

		fmt.Printf("%4s  %-24s  %6d%s\n", s.Label, s.DisplayName, s.Score, marker)
	}

	return nil
}

// groupRows recomputes per-participant totals from the non-deleted events of
// one group. Participants without events in the group are left out.
func groupRows(
	ctx context.Context, app *setup.App, participants []*types.Participant, group string,
) ([]standings.Row, error) {
	events, err := app.Contest.Events().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	totals := make(map[string]int64)

	for _, ev := range events {
		if ev.GroupID == group && !ev.Deleted {
			totals[ev.ParticipantID] += ev.Count
		}
	}

	var rows []standings.Row

	for _, p := range participants {
		if score, ok := totals[p.ID]; ok {
			rows = append(rows, standings.Row{
				ParticipantID: p.ID,
				DisplayName:   p.DisplayName,
				Score:         score,
			})
		}
	}

	return rows, nil
}

// runExport dumps events and participants into the archive file formats.
func runExport(ctx context.Context, c *cli.Command) error {
	app, err := setup.InitializeApp(ctx, CommandLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	// Create timestamped output directory
	baseDir := c.String("out")
	if baseDir == "" {
		baseDir = app.Config.Worker.Export.OutDir
	}

	if baseDir == "" {
		baseDir = "exports"
	}

	timestamp := time.Now().UTC().Format("2006-01-02_150405")

	outDir := filepath.Join(baseDir, timestamp)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Get export configuration
	config, err := getExportConfig(c, app)
	if err != nil {
		return fmt.Errorf("failed to get export configuration: %w", err)
	}

	// Export all formats
	exporter := export.New(app.Contest, outDir, config)
	if err := exporter.ExportAll(ctx); err != nil {
		return fmt.Errorf("failed to export data: %w", err)
	}

	return nil
}

// getExportConfig builds the export configuration from CLI flags, falling
// back to the worker config, and finally to interactive prompts for the
// anonymization inputs that cannot be defaulted.
func getExportConfig(c *cli.Command, app *setup.App) (*export.Config, error) {
	defaults := app.Config.Worker.Export

	config := &export.Config{
		ExportVersion: c.String("export-version"),
		Description:   c.String("description"),
		Anonymize:     c.Bool("anonymize"),
		Salt:          c.String("salt"),
		HashType:      c.String("hash-type"),
		Concurrency:   c.Int("concurrency"),
		Iterations:    uint32(c.Uint("iterations")), //nolint:gosec // -
		Memory:        uint32(c.Uint("memory")),     //nolint:gosec // -
	}

	if config.ExportVersion == "" {
		config.ExportVersion = "1.0.0"
	}

	if config.Description == "" {
		config.Description = "Swigboard Export"
	}

	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}

	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	if !config.Anonymize {
		return config, nil
	}

	if config.HashType == "" {
		config.HashType = defaults.HashType
	}

	if config.HashType == "" {
		config.HashType = string(export.HashTypeSHA256)
	}

	if config.HashType != string(export.HashTypeArgon2id) && config.HashType != string(export.HashTypeSHA256) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHashType, config.HashType)
	}

	reader := bufio.NewReader(os.Stdin)

	// A missing salt cannot be defaulted without making exports linkable
	if config.Salt == "" {
		salt, err := promptString(reader, "Enter salt for hashing IDs")
		if err != nil {
			return nil, fmt.Errorf("failed to read salt: %w", err)
		}

		config.Salt = salt
	}

	if config.Iterations == 0 {
		config.Iterations = defaults.Iterations
	}

	if config.Iterations == 0 {
		defaultIter := "1"
		if config.HashType == string(export.HashTypeArgon2id) {
			defaultIter = "16"
		}

		iter, err := promptUint32(reader, "Enter hash iterations", defaultIter)
		if err != nil {
			return nil, fmt.Errorf("failed to read iterations: %w", err)
		}

		config.Iterations = iter
	}

	if config.Memory == 0 && config.HashType == string(export.HashTypeArgon2id) {
		config.Memory = defaults.Memory
	}

	if config.Memory == 0 && config.HashType == string(export.HashTypeArgon2id) {
		mem, err := promptUint32(reader, "Enter memory usage in MB for Argon2id", "16")
		if err != nil {
			return nil, fmt.Errorf("failed to read memory: %w", err)
		}

		config.Memory = mem
	}

	return config, nil
}

// promptString prompts for a string value.
func promptString(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt + ": ")

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(input), nil
}

// promptUint32 prompts for a uint32 value with a default.
func promptUint32(reader *bufio.Reader, prompt, defValue string) (uint32, error) {
	val, err := promptString(reader, prompt+" ["+defValue+"]")
	if err != nil {
		return 0, err
	}

	if val == "" {
		val = defValue
	}

	num, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}

	return uint32(num), nil
}
