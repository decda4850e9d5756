package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/swiglabs/swigboard/internal/export/types"
)

// Exporter handles exporting contest data to SQLite databases.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes event and participant records to separate SQLite databases.
func (e *Exporter) Export(eventRecords []*types.EventRecord, participantRecords []*types.ParticipantRecord) error {
	// Remove existing files if they exist
	files := []string{"events.db", "participants.db"}
	for _, file := range files {
		path := filepath.Join(e.outDir, file)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file %s: %w", file, err)
		}
	}

	if err := e.createEventsDB(eventRecords); err != nil {
		return fmt.Errorf("failed to export events: %w", err)
	}

	if err := e.createParticipantsDB(participantRecords); err != nil {
		return fmt.Errorf("failed to export participants: %w", err)
	}

	return nil
}

// createEventsDB creates a SQLite database containing event records.
func (e *Exporter) createEventsDB(records []*types.EventRecord) error {
	conn, err := sqlite.OpenConn(filepath.Join(e.outDir, "events.db"), sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	err = sqlitex.Execute(conn, `
		CREATE TABLE events (
			id TEXT PRIMARY KEY,
			participant TEXT NOT NULL,
			group_id TEXT NOT NULL,
			count INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			description TEXT NOT NULL,
			deleted INTEGER NOT NULL,
			flags INTEGER NOT NULL,
			reactions INTEGER NOT NULL
		)
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Insert records in batches
	const batchSize = 1000
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))

		// Begin transaction
		err = sqlitex.Execute(conn, "BEGIN TRANSACTION", nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		// Insert batch
		for _, record := range records[i:end] {
			deleted := 0
			if record.Deleted {
				deleted = 1
			}

			err = sqlitex.Execute(conn,
				`INSERT INTO events (id, participant, group_id, count, timestamp, description, deleted, flags, reactions)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				&sqlitex.ExecOptions{
					Args: []any{
						record.ID, record.Participant, record.Group, record.Count,
						record.Timestamp, record.Description, deleted, record.Flags, record.Reactions,
					},
				})
			if err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
			}
		}

		// Commit transaction
		err = sqlitex.Execute(conn, "COMMIT", nil)
		if err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return nil
}

// createParticipantsDB creates a SQLite database containing participant records.
func (e *Exporter) createParticipantsDB(records []*types.ParticipantRecord) error {
	conn, err := sqlite.OpenConn(filepath.Join(e.outDir, "participants.db"), sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	err = sqlitex.Execute(conn, `
		CREATE TABLE participants (
			participant TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			total_score INTEGER NOT NULL,
			joined TEXT NOT NULL,
			hidden INTEGER NOT NULL
		)
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Insert records in batches
	const batchSize = 1000
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))

		// Begin transaction
		err = sqlitex.Execute(conn, "BEGIN TRANSACTION", nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		// Insert batch
		for _, record := range records[i:end] {
			hidden := 0
			if record.Hidden {
				hidden = 1
			}

			err = sqlitex.Execute(conn,
				`INSERT INTO participants (participant, display_name, total_score, joined, hidden)
				VALUES (?, ?, ?, ?, ?)`,
				&sqlitex.ExecOptions{
					Args: []any{record.Participant, record.DisplayName, record.TotalScore, record.Joined, hidden},
				})
			if err != nil {
				return fmt.Errorf("failed to insert record: %w", err)
			}
		}

		// Commit transaction
		err = sqlitex.Execute(conn, "COMMIT", nil)
		if err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return nil
}
