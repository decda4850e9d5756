package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/swiglabs/swigboard/internal/export/types"
)

// Exporter handles exporting contest data to csv files.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes event and participant records to separate csv files.
func (e *Exporter) Export(eventRecords []*types.EventRecord, participantRecords []*types.ParticipantRecord) error {
	// Remove existing files if they exist
	files := []string{"events.csv", "participants.csv"}
	for _, file := range files {
		path := filepath.Join(e.outDir, file)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file %s: %w", file, err)
		}
	}

	if err := e.writeEvents(eventRecords); err != nil {
		return fmt.Errorf("failed to export events: %w", err)
	}

	if err := e.writeParticipants(participantRecords); err != nil {
		return fmt.Errorf("failed to export participants: %w", err)
	}

	return nil
}

// writeEvents writes event records to a csv file.
func (e *Exporter) writeEvents(records []*types.EventRecord) error {
	file, err := os.Create(filepath.Join(e.outDir, "events.csv"))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	// Create CSV writer
	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{"id", "participant", "group", "count", "timestamp", "description", "deleted", "flags", "reactions"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write each record
	for _, record := range records {
		if err := writer.Write([]string{
			record.ID,
			record.Participant,
			record.Group,
			strconv.FormatInt(record.Count, 10),
			record.Timestamp,
			record.Description,
			strconv.FormatBool(record.Deleted),
			strconv.FormatInt(record.Flags, 10),
			strconv.FormatInt(record.Reactions, 10),
		}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

// writeParticipants writes participant records to a csv file.
func (e *Exporter) writeParticipants(records []*types.ParticipantRecord) error {
	file, err := os.Create(filepath.Join(e.outDir, "participants.csv"))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	// Create CSV writer
	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"participant", "display_name", "total_score", "joined", "hidden"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write each record
	for _, record := range records {
		if err := writer.Write([]string{
			record.Participant,
			record.DisplayName,
			strconv.FormatInt(record.TotalScore, 10),
			record.Joined,
			strconv.FormatBool(record.Hidden),
		}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}
