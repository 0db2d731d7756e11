package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// jsonlTableMapping maps JSONL filenames to their SQLite tables and column
// lists. orderBy fixes the line order of exported files so unchanged data
// produces unchanged files.
var jsonlTableMapping = []struct {
	file    string
	table   string
	columns []string
	orderBy string
}{
	{collectionsJSONL, "collections", []string{"collection_id", "name", "allow_external", "roots", "written_at"}, "collection_id"},
	{containersJSONL, "containers", []string{"collection_id", "container_id", "ordinal", "type", "name", "children", "table_rows"}, "collection_id, ordinal"},
	{fieldsJSONL, "fields", []string{"collection_id", "container_id", "name", "kind", "value"}, "collection_id, container_id, name"},
	{columnsJSONL, "columns", []string{"collection_id", "container_id", "ordinal", "name", "value_type", "target_type", "description", "shape"}, "collection_id, container_id, ordinal"},
	{cellsJSONL, "cells", []string{"collection_id", "container_id", "column_name", "row_index", "value"}, "collection_id, container_id, column_name, row_index"},
}

// loadAllJSONL reads each JSONL file from dataDir and inserts its records
// into the matching SQLite table. Loading is transactional: all files load
// or the database stays empty. Malformed lines and records that violate a
// constraint are skipped with a warning to log, and unknown fields are
// ignored.
func loadAllJSONL(ctx context.Context, db *sql.DB, dataDir string, log zerolog.Logger) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	loaded := 0
	for _, mapping := range jsonlTableMapping {
		records, err := readJSONL(filepath.Join(dataDir, mapping.file), log)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", mapping.file, err)
		}
		if len(records) == 0 {
			continue
		}
		skipped := log.With().Str("file", mapping.file).Logger()
		n, err := insertRecords(ctx, tx, mapping.table, mapping.columns, records, &skipped)
		if err != nil {
			return 0, fmt.Errorf("loading %s into %s: %w", mapping.file, mapping.table, err)
		}
		loaded += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	return loaded, nil
}

// insertRecords inserts JSON records into a SQLite table and returns how
// many were inserted. Only the listed columns are read from each record.
// With skipped set, records that fail to parse or insert are logged to it
// at warn level and skipped; otherwise the first failure is returned.
func insertRecords(ctx context.Context, tx *sql.Tx, table string, columns []string, records []json.RawMessage, skipped *zerolog.Logger) (int, error) {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	inserted := 0
	for idx, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			if skipped != nil {
				skipped.Warn().Err(err).Str("table", table).Int("record", idx).Msg("skipping undecodable record")
				continue
			}
			return inserted, fmt.Errorf("decoding %s record: %w", table, err)
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			val, ok := obj[col]
			if !ok {
				continue
			}
			switch v := val.(type) {
			case bool:
				// SQLite has no boolean type.
				if v {
					args[i] = 1
				} else {
					args[i] = 0
				}
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					continue
				}
				args[i] = string(b)
			default:
				args[i] = val
			}
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			if skipped != nil {
				skipped.Warn().Err(err).Str("table", table).Int("record", idx).Msg("skipping record")
				continue
			}
			return inserted, fmt.Errorf("inserting into %s: %w", table, err)
		}
		inserted++
	}
	return inserted, nil
}

// persistAllJSONL exports every table to its JSONL file.
func persistAllJSONL(ctx context.Context, db *sql.DB, dataDir string) error {
	for _, mapping := range jsonlTableMapping {
		records, err := dumpTable(ctx, db, mapping.table, mapping.columns, mapping.orderBy)
		if err != nil {
			return err
		}
		if err := writeJSONL(filepath.Join(dataDir, mapping.file), records); err != nil {
			return fmt.Errorf("persisting %s: %w", mapping.file, err)
		}
	}
	return nil
}

// dumpTable reads a whole table as JSON records keyed by column name.
func dumpTable(ctx context.Context, db *sql.DB, table string, columns []string, orderBy string) ([]json.RawMessage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(columns, ", "), table, orderBy)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		obj := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := vals[i].([]byte); ok {
				obj[col] = string(b)
			} else {
				obj[col] = vals[i]
			}
		}
		rec, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("encoding %s record: %w", table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	return records, nil
}
