package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/neurodata/pkg/model"
	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// snapshotRecords flattens a snapshot into JSON records keyed by table.
func snapshotRecords(s *model.Snapshot, writtenAt time.Time) (map[string][]json.RawMessage, error) {
	out := make(map[string][]json.RawMessage)
	add := func(table string, rec any) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding %s record: %w", table, err)
		}
		out[table] = append(out[table], data)
		return nil
	}

	cid := string(s.ID)
	roots, err := json.Marshal(s.Roots)
	if err != nil {
		return nil, fmt.Errorf("encoding roots: %w", err)
	}
	if err := add("collections", collectionJSON{
		CollectionID:  cid,
		Name:          s.Name,
		AllowExternal: s.AllowExternalReferences,
		Roots:         string(roots),
		WrittenAt:     writtenAt.UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return nil, err
	}

	for i, cs := range s.Containers {
		children, err := json.Marshal(cs.Children)
		if err != nil {
			return nil, fmt.Errorf("encoding children of %s: %w", cs.ID, err)
		}
		rec := containerJSON{
			CollectionID: cid,
			ContainerID:  string(cs.ID),
			Ordinal:      i,
			Type:         cs.Type,
			Name:         cs.Name,
			Children:     string(children),
		}
		if cs.Table != nil {
			rows := cs.Table.Rows
			rec.TableRows = &rows
		}
		if err := add("containers", rec); err != nil {
			return nil, err
		}

		fields := func(kind string, valueType string, vals map[string]any) error {
			for name, v := range vals {
				data, err := model.EncodeValue(valueType, v)
				if err != nil {
					return fmt.Errorf("%s.%s: %w", cs.ID, name, err)
				}
				if err := add("fields", fieldJSON{
					CollectionID: cid,
					ContainerID:  string(cs.ID),
					Name:         name,
					Kind:         kind,
					Value:        string(data),
				}); err != nil {
					return err
				}
			}
			return nil
		}
		if err := fields(fieldValue, "", cs.Values); err != nil {
			return nil, err
		}
		refs := make(map[string]any, len(cs.References))
		for k, v := range cs.References {
			refs[k] = v
		}
		if err := fields(fieldReference, types.ValueTypeReference, refs); err != nil {
			return nil, err
		}
		regions := make(map[string]any, len(cs.Regions))
		for k, v := range cs.Regions {
			regions[k] = v
		}
		if err := fields(fieldRegion, types.ValueTypeRegion, regions); err != nil {
			return nil, err
		}

		if cs.Table == nil {
			continue
		}
		for j, col := range cs.Table.Columns {
			shape, err := json.Marshal(col.Shape)
			if err != nil {
				return nil, fmt.Errorf("encoding shape of %s: %w", col.Name, err)
			}
			if err := add("columns", columnJSON{
				CollectionID: cid,
				ContainerID:  string(cs.ID),
				Ordinal:      j,
				Name:         col.Name,
				ValueType:    col.ValueType,
				TargetType:   col.TargetType,
				Description:  col.Description,
				Shape:        string(shape),
			}); err != nil {
				return nil, err
			}
			for row, v := range col.Values {
				data, err := model.EncodeValue(col.ValueType, v)
				if err != nil {
					return nil, fmt.Errorf("%s column %s row %d: %w", cs.ID, col.Name, row, err)
				}
				if err := add("cells", cellJSON{
					CollectionID: cid,
					ContainerID:  string(cs.ID),
					ColumnName:   col.Name,
					Row:          row,
					Value:        string(data),
				}); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// readSnapshot rebuilds the snapshot of one collection from the database.
// Field values are decoded with the value types their container's type
// declares in reg.
func readSnapshot(ctx context.Context, q *sql.DB, reg *schema.Registry, id string) (*model.Snapshot, error) {
	var (
		s     = &model.Snapshot{ID: model.ID(id)}
		roots string
		allow int
	)
	err := q.QueryRowContext(ctx,
		"SELECT name, allow_external, roots FROM collections WHERE collection_id = ?", id,
	).Scan(&s.Name, &allow, &roots)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrHandleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", id, err)
	}
	s.AllowExternalReferences = allow != 0
	if err := json.Unmarshal([]byte(roots), &s.Roots); err != nil {
		return nil, fmt.Errorf("decoding roots of %s: %w", id, err)
	}

	index := make(map[string]int)
	schemas := make(map[string]*schema.EffectiveSchema)

	rows, err := q.QueryContext(ctx,
		"SELECT container_id, type, name, children, table_rows FROM containers WHERE collection_id = ? ORDER BY ordinal", id)
	if err != nil {
		return nil, fmt.Errorf("querying containers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cs        model.ContainerSnapshot
			cid       string
			children  string
			tableRows sql.NullInt64
		)
		if err := rows.Scan(&cid, &cs.Type, &cs.Name, &children, &tableRows); err != nil {
			return nil, fmt.Errorf("scanning container: %w", err)
		}
		cs.ID = model.ID(cid)
		if err := json.Unmarshal([]byte(children), &cs.Children); err != nil {
			return nil, fmt.Errorf("decoding children of %s: %w", cid, err)
		}
		if tableRows.Valid {
			cs.Table = &model.TableSnapshot{Rows: int(tableRows.Int64)}
		}
		eff, err := effectiveSchema(reg, cs.Type)
		if err != nil {
			return nil, fmt.Errorf("container %s: %w", cid, err)
		}
		schemas[cid] = eff
		index[cid] = len(s.Containers)
		s.Containers = append(s.Containers, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading containers: %w", err)
	}

	if err := readFields(ctx, q, id, s, index, schemas); err != nil {
		return nil, err
	}
	if err := readColumns(ctx, q, id, s, index); err != nil {
		return nil, err
	}
	return s, nil
}

func effectiveSchema(reg *schema.Registry, ident string) (*schema.EffectiveSchema, error) {
	t, err := reg.Lookup(ident)
	if err != nil {
		return nil, err
	}
	return reg.Effective(t)
}

func readFields(ctx context.Context, q *sql.DB, id string, s *model.Snapshot, index map[string]int, schemas map[string]*schema.EffectiveSchema) error {
	rows, err := q.QueryContext(ctx,
		"SELECT container_id, name, kind, value FROM fields WHERE collection_id = ?", id)
	if err != nil {
		return fmt.Errorf("querying fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid, name, kind, value string
		if err := rows.Scan(&cid, &name, &kind, &value); err != nil {
			return fmt.Errorf("scanning field: %w", err)
		}
		i, ok := index[cid]
		if !ok {
			continue
		}
		cs := &s.Containers[i]
		f, ok := schemas[cid].Field(name)
		if !ok {
			return fmt.Errorf("%w: %s has no attribute %q", types.ErrUnknownAttribute, cs.Type, name)
		}

		switch kind {
		case fieldReference:
			v, err := model.DecodeValue(types.ValueTypeReference, nil, []byte(value))
			if err != nil {
				return fmt.Errorf("%s.%s: %w", cid, name, err)
			}
			if cs.References == nil {
				cs.References = make(map[string]model.Reference)
			}
			cs.References[name] = v.(model.Reference)
		case fieldRegion:
			v, err := model.DecodeValue(types.ValueTypeRegion, nil, []byte(value))
			if err != nil {
				return fmt.Errorf("%s.%s: %w", cid, name, err)
			}
			if cs.Regions == nil {
				cs.Regions = make(map[string]model.Region)
			}
			cs.Regions[name] = v.(model.Region)
		default:
			v, err := model.DecodeValue(f.ValueType, f.Shape, []byte(value))
			if err != nil {
				return fmt.Errorf("%s.%s: %w", cid, name, err)
			}
			if cs.Values == nil {
				cs.Values = make(map[string]any)
			}
			cs.Values[name] = v
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading fields: %w", err)
	}
	return nil
}

func readColumns(ctx context.Context, q *sql.DB, id string, s *model.Snapshot, index map[string]int) error {
	rows, err := q.QueryContext(ctx,
		"SELECT container_id, name, value_type, target_type, description, shape FROM columns WHERE collection_id = ? ORDER BY container_id, ordinal", id)
	if err != nil {
		return fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	type colKey struct{ container, column string }
	columns := make(map[colKey]*model.ColumnSnapshot)
	for rows.Next() {
		var (
			cid                string
			def                model.ColumnDef
			target, desc, shpe sql.NullString
		)
		if err := rows.Scan(&cid, &def.Name, &def.ValueType, &target, &desc, &shpe); err != nil {
			return fmt.Errorf("scanning column: %w", err)
		}
		i, ok := index[cid]
		if !ok || s.Containers[i].Table == nil {
			return fmt.Errorf("%w: column %s on %s", types.ErrNotATable, def.Name, cid)
		}
		def.TargetType = target.String
		def.Description = desc.String
		if shpe.Valid && shpe.String != "" {
			if err := json.Unmarshal([]byte(shpe.String), &def.Shape); err != nil {
				return fmt.Errorf("decoding shape of %s: %w", def.Name, err)
			}
		}
		tbl := s.Containers[i].Table
		tbl.Columns = append(tbl.Columns, model.ColumnSnapshot{ColumnDef: def, Values: make([]any, tbl.Rows)})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading columns: %w", err)
	}
	rows.Close()

	for cid, i := range index {
		tbl := s.Containers[i].Table
		if tbl == nil {
			continue
		}
		for j := range tbl.Columns {
			columns[colKey{cid, tbl.Columns[j].Name}] = &tbl.Columns[j]
		}
	}

	cells, err := q.QueryContext(ctx,
		"SELECT container_id, column_name, row_index, value FROM cells WHERE collection_id = ?", id)
	if err != nil {
		return fmt.Errorf("querying cells: %w", err)
	}
	defer cells.Close()
	for cells.Next() {
		var (
			cid, name, value string
			row              int
		)
		if err := cells.Scan(&cid, &name, &row, &value); err != nil {
			return fmt.Errorf("scanning cell: %w", err)
		}
		col, ok := columns[colKey{cid, name}]
		if !ok {
			return fmt.Errorf("%w: cell of %s on %s", types.ErrColumnNotFound, name, cid)
		}
		if row < 0 || row >= len(col.Values) {
			return fmt.Errorf("%w: cell %d of column %s", types.ErrColumnLengthMismatch, row, name)
		}
		v, err := model.DecodeValue(col.ValueType, col.Shape, []byte(value))
		if err != nil {
			return fmt.Errorf("%s column %s row %d: %w", cid, name, row, err)
		}
		col.Values[row] = v
	}
	if err := cells.Err(); err != nil {
		return fmt.Errorf("reading cells: %w", err)
	}
	return nil
}
