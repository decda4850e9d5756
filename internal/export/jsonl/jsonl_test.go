package jsonl_test

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exportJSONL "github.com/swiglabs/swigboard/internal/export/jsonl"
	"github.com/swiglabs/swigboard/internal/export/types"
)

// readLines decodes every line of a jsonl file into the given record type.
func readLines[T any](t *testing.T, path string) []T {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []T

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record T
		require.NoError(t, sonic.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}

	require.NoError(t, scanner.Err())

	return records
}

func TestExporter_Export(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	eventRecords := []*types.EventRecord{
		{
			ID:          "evt-a",
			Participant: "alice",
			Group:       "crew",
			Count:       3,
			Timestamp:   "2026-07-04T18:00:00Z",
			Description: "round one",
			Flags:       1,
			Reactions:   2,
		},
		{
			ID:          "evt-b",
			Participant: "bob",
			Count:       1,
			Timestamp:   "2026-07-04T18:05:00Z",
			Deleted:     true,
		},
	}
	participantRecords := []*types.ParticipantRecord{
		{
			Participant: "alice",
			DisplayName: "Alice",
			TotalScore:  3,
			Joined:      "2026-07-04T17:00:00Z",
		},
		{
			Participant: "bob",
			TotalScore:  0,
			Joined:      "2026-07-04T17:30:00Z",
			Hidden:      true,
		},
	}

	e := exportJSONL.New(tempDir)
	require.NoError(t, e.Export(eventRecords, participantRecords))

	gotEvents := readLines[*types.EventRecord](t, filepath.Join(tempDir, "events.jsonl"))
	require.Len(t, gotEvents, len(eventRecords))

	for i, expected := range eventRecords {
		assert.Equal(t, expected, gotEvents[i])
	}

	gotParticipants := readLines[*types.ParticipantRecord](t, filepath.Join(tempDir, "participants.jsonl"))
	require.Len(t, gotParticipants, len(participantRecords))

	for i, expected := range participantRecords {
		assert.Equal(t, expected, gotParticipants[i])
	}
}

func TestExporter_EmptyRecords(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	e := exportJSONL.New(tempDir)
	require.NoError(t, e.Export(nil, nil))

	// Both files exist but hold no lines
	for _, file := range []string{"events.jsonl", "participants.jsonl"} {
		data, err := os.ReadFile(filepath.Join(tempDir, file))
		require.NoError(t, err)
		assert.Empty(t, data)
	}
}

func TestExporter_ExistingFiles(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	// Create existing files
	files := []string{"events.jsonl", "participants.jsonl"}
	for _, file := range files {
		err := os.WriteFile(filepath.Join(tempDir, file), []byte("existing content\n"), 0o644)
		require.NoError(t, err)
	}

	e := exportJSONL.New(tempDir)

	eventRecords := []*types.EventRecord{
		{
			ID:          "evt-a",
			Participant: "alice",
			Count:       1,
			Timestamp:   "2026-07-04T18:00:00Z",
		},
	}

	// Export should overwrite existing files
	require.NoError(t, e.Export(eventRecords, nil))

	gotEvents := readLines[*types.EventRecord](t, filepath.Join(tempDir, "events.jsonl"))
	require.Len(t, gotEvents, 1)
	assert.Equal(t, eventRecords[0], gotEvents[0])

	gotParticipants := readLines[*types.ParticipantRecord](t, filepath.Join(tempDir, "participants.jsonl"))
	assert.Empty(t, gotParticipants)
}
