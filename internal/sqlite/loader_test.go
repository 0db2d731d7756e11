// Tests for loading JSONL into SQLite with forward compatibility.
package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/neurodata/pkg/model"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

func TestLoadJSONLUnknownFields(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		jsonl    string
		countSQL string
		wantRows int
		checkSQL string
		checkVal string
	}{
		{
			name:     "collections with unknown fields load",
			file:     collectionsJSONL,
			jsonl:    `{"collection_id":"c-1","name":"session","allow_external":false,"roots":"[]","written_at":"2025-01-15T10:30:00Z","format_version":3}` + "\n",
			countSQL: "SELECT COUNT(*) FROM collections",
			wantRows: 1,
			checkSQL: "SELECT name FROM collections WHERE collection_id = 'c-1'",
			checkVal: "session",
		},
		{
			name:     "containers with nested unknown fields load",
			file:     containersJSONL,
			jsonl:    `{"collection_id":"c-1","container_id":"x-1","ordinal":0,"type":"core:Device","name":"laser","children":"[]","table_rows":null,"layout":{"hdf5":"/general/devices"}}` + "\n",
			countSQL: "SELECT COUNT(*) FROM containers",
			wantRows: 1,
			checkSQL: "SELECT type FROM containers WHERE container_id = 'x-1'",
			checkVal: "core:Device",
		},
		{
			name: "multiple cells with varying unknown fields",
			file: cellsJSONL,
			jsonl: `{"collection_id":"c-1","container_id":"t-1","column_name":"x","row_index":0,"value":"1.5","a":"v"}
{"collection_id":"c-1","container_id":"t-1","column_name":"x","row_index":1,"value":"2.5","b":[1,2]}
{"collection_id":"c-1","container_id":"t-1","column_name":"x","row_index":2,"value":"3.5"}
`,
			countSQL: "SELECT COUNT(*) FROM cells",
			wantRows: 3,
			checkSQL: "SELECT value FROM cells WHERE row_index = 1",
			checkVal: "2.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, dataDir := setupTestDB(t)
			require.NoError(t, os.WriteFile(filepath.Join(dataDir, tt.file), []byte(tt.jsonl), 0o644))

			_, err := loadAllJSONL(context.Background(), db, dataDir, zerolog.Nop())
			require.NoError(t, err, "loadAllJSONL must not error on unknown fields")

			var count int
			require.NoError(t, db.QueryRow(tt.countSQL).Scan(&count))
			assert.Equal(t, tt.wantRows, count)

			var val string
			require.NoError(t, db.QueryRow(tt.checkSQL).Scan(&val))
			assert.Equal(t, tt.checkVal, val)
		})
	}
}

func TestLoadJSONLSkipsBadRecords(t *testing.T) {
	db, dataDir := setupTestDB(t)

	// A malformed line, a record missing a NOT NULL column, and a duplicate
	// primary key are all skipped.
	jsonl := `{"collection_id":"c-1","name":"one","allow_external":false,"roots":"[]","written_at":"2025-01-15T10:30:00Z"}
not valid json at all
{"collection_id":"c-2","allow_external":false,"roots":"[]","written_at":"2025-01-15T10:30:00Z"}
{"collection_id":"c-1","name":"again","allow_external":true,"roots":"[]","written_at":"2025-01-15T10:31:00Z"}
{"collection_id":"c-3","name":"three","allow_external":true,"roots":"[]","written_at":"2025-01-15T10:32:00Z"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, collectionsJSONL), []byte(jsonl), 0o644))

	var buf bytes.Buffer
	n, err := loadAllJSONL(context.Background(), db, dataDir, zerolog.New(&buf))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Every skipped line leaves one warning naming its file.
	var warnings []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, collectionsJSONL, entry["file"])
		warnings = append(warnings, entry)
	}
	require.Len(t, warnings, 3)
	assert.EqualValues(t, 2, warnings[0]["line"])
	assert.Equal(t, "collections", warnings[1]["table"])
	assert.EqualValues(t, 1, warnings[1]["record"])
	assert.Contains(t, warnings[1], "error")
	assert.EqualValues(t, 2, warnings[2]["record"])

	var allow int
	require.NoError(t, db.QueryRow("SELECT allow_external FROM collections WHERE collection_id = 'c-3'").Scan(&allow))
	assert.Equal(t, 1, allow)
}

func TestLoadJSONLEmptyFiles(t *testing.T) {
	db, dataDir := setupTestDB(t)

	n, err := loadAllJSONL(context.Background(), db, dataDir, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertRecordsStrict(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	records, err := snapshotRecords(session(t, newTestRegistry(t)).Snapshot(), time.Now())
	require.NoError(t, err)
	cells := records["cells"]
	require.NotEmpty(t, cells)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	columns := []string{"collection_id", "container_id", "column_name", "row_index", "value"}
	n, err := insertRecords(ctx, tx, "cells", columns, cells, nil)
	require.NoError(t, err)
	assert.Equal(t, len(cells), n)

	// The same cells again violate the primary key.
	_, err = insertRecords(ctx, tx, "cells", columns, cells[:1], nil)
	assert.Error(t, err)

	var buf bytes.Buffer
	skipped := zerolog.New(&buf)
	n, err = insertRecords(ctx, tx, "cells", columns, cells[:1], &skipped)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"table":"cells"`)
}

func TestBackendRoundTripWithUnknownFields(t *testing.T) {
	reg := newTestRegistry(t)
	dataDir := t.TempDir()
	ctx := context.Background()

	coll := session(t, reg)
	func() {
		b := attachBackend(t, reg, dataDir, "")
		_, err := b.Write(ctx, coll)
		require.NoError(t, err)
		require.NoError(t, b.Detach())
	}()

	// A newer writer added a field to every record.
	for _, m := range jsonlTableMapping {
		path := filepath.Join(dataDir, m.file)
		records, err := readJSONL(path, zerolog.Nop())
		require.NoError(t, err)
		for i, rec := range records {
			records[i] = append(rec[:len(rec)-1], []byte(`,"future_field":"x"}`)...)
		}
		require.NoError(t, writeJSONL(path, records))
	}

	b := attachBackend(t, reg, dataDir, "")
	got, err := b.Read(ctx, model.Handle(coll.ID()))
	require.NoError(t, err)
	assert.True(t, model.Equal(coll, got), model.Diff(coll, got))
}

func TestReadSnapshotRejectsUnknownTypes(t *testing.T) {
	db, dataDir := setupTestDB(t)
	jsonl := map[string]string{
		collectionsJSONL: `{"collection_id":"c-1","name":"s","allow_external":false,"roots":"[]","written_at":"2025-01-15T10:30:00Z"}` + "\n",
		containersJSONL:  `{"collection_id":"c-1","container_id":"x-1","ordinal":0,"type":"core:Hologram","name":"h","children":"[]","table_rows":null}` + "\n",
	}
	for file, content := range jsonl {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, file), []byte(content), 0o644))
	}
	_, err := loadAllJSONL(context.Background(), db, dataDir, zerolog.Nop())
	require.NoError(t, err)

	_, err = readSnapshot(context.Background(), db, newTestRegistry(t), "c-1")
	assert.ErrorIs(t, err, types.ErrTypeNotFound)
}
