package jsonl

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/swiglabs/swigboard/internal/export/types"
)

// Exporter handles exporting contest data to JSON Lines files.
type Exporter struct {
	outDir string
}

// New creates a new jsonl exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes event and participant records to separate jsonl files.
func (e *Exporter) Export(eventRecords []*types.EventRecord, participantRecords []*types.ParticipantRecord) error {
	// Remove existing files if they exist
	files := []string{"events.jsonl", "participants.jsonl"}
	for _, file := range files {
		path := filepath.Join(e.outDir, file)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file %s: %w", file, err)
		}
	}

	if err := writeFile(filepath.Join(e.outDir, "events.jsonl"), eventRecords); err != nil {
		return fmt.Errorf("failed to export events: %w", err)
	}

	if err := writeFile(filepath.Join(e.outDir, "participants.jsonl"), participantRecords); err != nil {
		return fmt.Errorf("failed to export participants: %w", err)
	}

	return nil
}

// writeFile writes records as one JSON document per line.
func writeFile[T any](path string, records []T) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create jsonl file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	for _, record := range records {
		line, err := sonic.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}

		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush jsonl file: %w", err)
	}

	return nil
}
