// Tests for the JSONL files behind the store.
package sqlite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/neurodata/pkg/model"
)

func TestCollectionPersistedToJSONL(t *testing.T) {
	reg := newTestRegistry(t)
	tmpDir := t.TempDir()
	b := attachBackend(t, reg, tmpDir, "")

	coll := session(t, reg)
	h, err := b.Write(context.Background(), coll)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, collectionsJSONL))
	if err != nil {
		t.Fatalf("failed to read %s: %v", collectionsJSONL, err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line in %s, got %d", collectionsJSONL, len(lines))
	}

	var rec collectionJSON
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("line is not a collection record: %v", err)
	}
	if rec.CollectionID != string(h) {
		t.Errorf("expected collection_id %q, got %q", h, rec.CollectionID)
	}
	if rec.Name != "session-1" {
		t.Errorf("expected name session-1, got %q", rec.Name)
	}

	containers, err := readJSONL(filepath.Join(tmpDir, containersJSONL), zerolog.Nop())
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(containers) != coll.Len() {
		t.Errorf("expected %d container records, got %d", coll.Len(), len(containers))
	}
}

func TestJSONLNotPrettyPrinted(t *testing.T) {
	reg := newTestRegistry(t)
	tmpDir := t.TempDir()
	b := attachBackend(t, reg, tmpDir, "")

	if _, err := b.Write(context.Background(), session(t, reg)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	for _, m := range jsonlTableMapping {
		data, _ := os.ReadFile(filepath.Join(tmpDir, m.file))
		if strings.Contains(string(data), "\n  ") {
			t.Errorf("%s should not be pretty-printed", m.file)
		}
	}
}

func TestJSONLExportIsStable(t *testing.T) {
	reg := newTestRegistry(t)
	tmpDir := t.TempDir()
	b := attachBackend(t, reg, tmpDir, "")
	ctx := context.Background()

	coll := session(t, reg)
	if _, err := b.Write(ctx, coll); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	first, _ := os.ReadFile(filepath.Join(tmpDir, cellsJSONL))

	if _, err := b.Write(ctx, coll); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	second, _ := os.ReadFile(filepath.Join(tmpDir, cellsJSONL))

	if string(first) != string(second) {
		t.Errorf("rewriting an unchanged collection changed %s", cellsJSONL)
	}
}

func TestJSONLEmptyLinesSkipped(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.jsonl")
	content := `{"collection_id":"c-1"}

{"collection_id":"c-2"}

`
	os.WriteFile(path, []byte(content), 0o644)

	records, err := readJSONL(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records (empty lines skipped), got %d", len(records))
	}
}

func TestJSONLMalformedLinesSkipped(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.jsonl")
	content := `{"collection_id":"c-1"}
{invalid json here
{"collection_id":"c-2"}
`
	os.WriteFile(path, []byte(content), 0o644)

	records, err := readJSONL(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records (malformed line skipped), got %d", len(records))
	}
}

func TestWriteJSONLAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.jsonl")

	records := []json.RawMessage{
		json.RawMessage(`{"key":"value1"}`),
		json.RawMessage(`{"key":"value2"}`),
	}
	if err := writeJSONL(path, records); err != nil {
		t.Fatalf("writeJSONL failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lines))
	}

	// No temp files are left behind.
	entries, _ := os.ReadDir(tmpDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestJSONLPersistenceAcrossRestarts(t *testing.T) {
	reg := newTestRegistry(t)
	tmpDir := t.TempDir()
	ctx := context.Background()

	var handles []model.Handle
	func() {
		b := attachBackend(t, reg, tmpDir, "")
		for range 3 {
			h, err := b.Write(ctx, session(t, reg))
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			handles = append(handles, h)
		}
		if err := b.Detach(); err != nil {
			t.Fatalf("Detach failed: %v", err)
		}
	}()

	// The database is derived; removing it loses nothing.
	os.Remove(filepath.Join(tmpDir, dbFile))

	b := attachBackend(t, reg, tmpDir, "")
	got, err := b.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != len(handles) {
		t.Fatalf("expected %d collections after restart, got %d", len(handles), len(got))
	}
	for _, h := range handles {
		if _, err := b.Read(ctx, h); err != nil {
			t.Errorf("Read(%s) failed: %v", h, err)
		}
	}
}
