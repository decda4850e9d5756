package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/swiglabs/swigboard/internal/contest"
	contestTypes "github.com/swiglabs/swigboard/internal/contest/types"
	"github.com/swiglabs/swigboard/internal/export/csv"
	"github.com/swiglabs/swigboard/internal/export/jsonl"
	"github.com/swiglabs/swigboard/internal/export/sqlite"
	"github.com/swiglabs/swigboard/internal/export/types"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatJSONL  Format = "jsonl"
	FormatCSV    Format = "csv"
)

const (
	// EngineVersion represents the version of the export engine.
	// This should be updated when making breaking changes to the export format.
	EngineVersion = "1.0.0"
)

// Config holds the configuration for exports.
type Config struct {
	ExportVersion string `json:"exportVersion"`
	Description   string `json:"description"`
	Anonymize     bool   `json:"anonymize"`
	Salt          string `json:"salt,omitempty"`
	HashType      string `json:"hashType,omitempty"`
	Iterations    uint32 `json:"iterations,omitempty"`
	Memory        uint32 `json:"memory,omitempty"`
	Concurrency   int64  `json:"-"`
}

// Exporter handles exporting contest events and participants.
type Exporter struct {
	svc     *contest.Service
	outDir  string
	config  *Config
	formats []Format
}

// New creates a new exporter instance.
func New(svc *contest.Service, outDir string, config *Config) *Exporter {
	return &Exporter{
		svc:    svc,
		outDir: outDir,
		config: config,
		formats: []Format{
			FormatSQLite,
			FormatJSONL,
			FormatCSV,
		},
	}
}

// ExportAll exports all data in all supported formats.
func (e *Exporter) ExportAll(ctx context.Context) error {
	// Print export configuration
	fmt.Printf("Starting export with configuration:\n")
	fmt.Printf("  Anonymize: %t\n", e.config.Anonymize)

	if e.config.Anonymize {
		fmt.Printf("  Hash Type: %s\n", e.config.HashType)
		fmt.Printf("  Concurrency: %d workers\n", e.config.Concurrency)
		fmt.Printf("  Iterations: %d\n", e.config.Iterations)

		if e.config.HashType == string(HashTypeArgon2id) {
			fmt.Printf("  Memory: %d MB\n", e.config.Memory)
		}
	}

	fmt.Printf("  Output Directory: %s\n", e.outDir)
	fmt.Printf("  Export Version: %s\n", e.config.ExportVersion)
	fmt.Printf("  Engine Version: %s\n", EngineVersion)
	fmt.Printf("  Description: %s\n\n", e.config.Description)

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Get all events and participants
	fmt.Printf("Fetching contest data...\n")

	events, participants, err := e.getContestData(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d events and %d participants to export\n\n", len(events), len(participants))

	// Convert to export records
	eventRecords, participantRecords := e.buildRecords(events, participants)

	// Save config file
	fmt.Printf("Saving export configuration...\n")

	configPath := filepath.Join(e.outDir, "export_config.json")

	// Create config with engine version for JSON
	jsonConfig := struct {
		*Config

		EngineVersion string `json:"engineVersion"`
	}{
		Config:        e.config,
		EngineVersion: EngineVersion,
	}

	configData, err := sonic.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(configPath, configData, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	// Export each format
	fmt.Printf("Exporting data in %d formats...\n", len(e.formats))

	for _, format := range e.formats {
		fmt.Printf("  Writing %s format...\n", format)

		if err := e.export(format, eventRecords, participantRecords); err != nil {
			return fmt.Errorf("failed to export %s format: %w", format, err)
		}
	}

	fmt.Printf("\nExport completed successfully\n")
	fmt.Printf("Files written to: %s\n", e.outDir)

	return nil
}

// getContestData retrieves all events and participants from the store.
func (e *Exporter) getContestData(
	ctx context.Context,
) (events []*contestTypes.Event, participants []*contestTypes.Participant, err error) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		events, err = e.svc.Events().All(ctx)
		if err != nil {
			return fmt.Errorf("failed to get events: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		var err error

		participants, err = e.svc.Participants().All(ctx)
		if err != nil {
			return fmt.Errorf("failed to get participants: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return events, participants, nil
}

// buildRecords converts events and participants to export records. When the
// export is anonymized, participant IDs are replaced with salted hashes and
// display names are dropped.
func (e *Exporter) buildRecords(
	events []*contestTypes.Event, participants []*contestTypes.Participant,
) ([]*types.EventRecord, []*types.ParticipantRecord) {
	lookup := func(id string) string { return id }

	if e.config.Anonymize {
		// Hash each distinct participant ID once
		seen := make(map[string]struct{}, len(participants))
		ids := make([]string, 0, len(participants))

		for _, participant := range participants {
			if _, ok := seen[participant.ID]; !ok {
				seen[participant.ID] = struct{}{}
				ids = append(ids, participant.ID)
			}
		}

		for _, event := range events {
			if _, ok := seen[event.ParticipantID]; !ok {
				seen[event.ParticipantID] = struct{}{}
				ids = append(ids, event.ParticipantID)
			}
		}

		fmt.Printf("Hashing participant IDs...\n")

		hashes := hashIDs(ids, e.config.Salt, HashType(e.config.HashType),
			e.config.Concurrency, e.config.Iterations, e.config.Memory)

		fmt.Printf("\nCompleted hashing all records\n\n")

		table := make(map[string]string, len(ids))
		for i, id := range ids {
			table[id] = hashes[i]
		}

		lookup = func(id string) string { return table[id] }
	}

	eventRecords := make([]*types.EventRecord, len(events))
	for i, event := range events {
		var reactions int64
		for _, reactors := range event.Reactions {
			reactions += int64(len(reactors))
		}

		eventRecords[i] = &types.EventRecord{
			ID:          event.ID,
			Participant: lookup(event.ParticipantID),
			Group:       event.GroupID,
			Count:       event.Count,
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Description: event.Description,
			Deleted:     event.Deleted,
			Flags:       int64(event.FlagCount()),
			Reactions:   reactions,
		}
	}

	participantRecords := make([]*types.ParticipantRecord, len(participants))
	for i, participant := range participants {
		displayName := participant.DisplayName
		if e.config.Anonymize {
			displayName = ""
		}

		participantRecords[i] = &types.ParticipantRecord{
			Participant: lookup(participant.ID),
			DisplayName: displayName,
			TotalScore:  participant.TotalScore,
			Joined:      participant.CreatedAt.UTC().Format(time.RFC3339),
			Hidden:      participant.Hidden,
		}
	}

	return eventRecords, participantRecords
}

// export handles exporting data in the specified format.
func (e *Exporter) export(format Format, eventRecords []*types.EventRecord, participantRecords []*types.ParticipantRecord) error {
	var exporter interface {
		Export(eventRecords []*types.EventRecord, participantRecords []*types.ParticipantRecord) error
	}

	switch format {
	case FormatSQLite:
		exporter = sqlite.New(e.outDir)
	case FormatJSONL:
		exporter = jsonl.New(e.outDir)
	case FormatCSV:
		exporter = csv.New(e.outDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return exporter.Export(eventRecords, participantRecords)
}
