package model

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// Snapshot is the logical content of a collection, detached from the live
// graph. Stores persist snapshots and two collections are equal when
// their snapshots are.
type Snapshot struct {
	ID                      ID                  `json:"id"`
	Name                    string              `json:"name,omitempty"`
	AllowExternalReferences bool                `json:"allow_external_references,omitempty"`
	Roots                   []ID                `json:"roots"`
	Containers              []ContainerSnapshot `json:"containers"`
}

// ContainerSnapshot is one container of a Snapshot.
type ContainerSnapshot struct {
	ID         ID                   `json:"id"`
	Type       string               `json:"type"`
	Name       string               `json:"name"`
	Children   []ID                 `json:"children,omitempty"`
	Values     map[string]any       `json:"values,omitempty"`
	References map[string]Reference `json:"references,omitempty"`
	Regions    map[string]Region    `json:"regions,omitempty"`
	Table      *TableSnapshot       `json:"table,omitempty"`
}

// TableSnapshot holds the columns of a table container.
type TableSnapshot struct {
	Rows    int              `json:"rows"`
	Columns []ColumnSnapshot `json:"columns"`
}

// ColumnSnapshot is one column with its cells. Reference columns hold
// Reference cells.
type ColumnSnapshot struct {
	ColumnDef
	Values []any `json:"values"`
}

// Snapshot copies the collection's content. Containers appear in creation
// order.
func (c *Collection) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := &Snapshot{
		ID:                      c.id,
		Name:                    c.name,
		AllowExternalReferences: c.allowExternal,
		Roots:                   slices.Clone(c.roots),
		Containers:              make([]ContainerSnapshot, 0, len(c.order)),
	}
	for _, id := range c.order {
		s.Containers = append(s.Containers, c.containers[id].snapshotLocked())
	}
	return s
}

func (ct *Container) snapshotLocked() ContainerSnapshot {
	cs := ContainerSnapshot{
		ID:         ct.id,
		Type:       ct.schema.Ident(),
		Name:       ct.name,
		Children:   slices.Clone(ct.children),
		Values:     make(map[string]any, len(ct.values)),
		References: maps.Clone(ct.refs),
		Regions:    make(map[string]Region, len(ct.regions)),
	}
	for k, v := range ct.values {
		cs.Values[k] = cloneValue(v)
	}
	for k, v := range ct.regions {
		cs.Regions[k] = v.clone()
	}
	if ct.table != nil {
		ts := &TableSnapshot{Rows: ct.table.rows, Columns: make([]ColumnSnapshot, 0, len(ct.table.columns))}
		for _, col := range ct.table.columns {
			vals := make([]any, len(col.values))
			for i, v := range col.values {
				vals[i] = cloneValue(v)
			}
			ts.Columns = append(ts.Columns, ColumnSnapshot{ColumnDef: col.ColumnDef, Values: vals})
		}
		cs.Table = ts
	}
	return cs
}

// Restore rebuilds a collection from a snapshot, typing containers with
// reg. Every value is validated again. References whose targets were
// already gone when the snapshot was taken stay dangling.
func Restore(reg *schema.Registry, s *Snapshot) (*Collection, error) {
	c := NewCollection(reg,
		withID(s.ID),
		WithName(s.Name),
		WithExternalReferences(s.AllowExternalReferences),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Containers first, so references and regions between them resolve
	// regardless of order.
	for _, cs := range s.Containers {
		if _, dup := c.containers[cs.ID]; dup {
			return nil, fmt.Errorf("%w: container %s appears twice", types.ErrOwnershipConflict, cs.ID)
		}
		t, err := reg.Lookup(cs.Type)
		if err != nil {
			return nil, fmt.Errorf("restoring %s: %w", cs.ID, err)
		}
		eff, err := reg.Effective(t)
		if err != nil {
			return nil, fmt.Errorf("restoring %s: %w", cs.ID, err)
		}
		ct := newContainer(c, cs.ID, eff, cs.Name)
		if eff.Table {
			ct.table = newTableData()
			if cs.Table != nil {
				if cs.Table.Rows < 0 {
					return nil, fmt.Errorf("restoring %s: %w: %d rows", cs.ID, types.ErrColumnLengthMismatch, cs.Table.Rows)
				}
				ct.table.rows = cs.Table.Rows
			}
		} else if cs.Table != nil {
			return nil, fmt.Errorf("restoring %s: %w: %s", cs.ID, types.ErrNotATable, eff.Ident())
		}
		c.containers[ct.id] = ct
		c.order = append(c.order, ct.id)
	}

	// Row counts are known up front, so row references and regions between
	// tables check out in any order.
	for _, cs := range s.Containers {
		if cs.Table == nil {
			continue
		}
		if err := c.restoreTableLocked(c.containers[cs.ID], cs.Table); err != nil {
			return nil, fmt.Errorf("restoring %s: %w", cs.ID, err)
		}
	}

	for _, cs := range s.Containers {
		ct := c.containers[cs.ID]
		for _, k := range slices.Sorted(maps.Keys(cs.Values)) {
			if err := c.assignLocked(ct, k, cs.Values[k], true); err != nil {
				return nil, fmt.Errorf("restoring %s: %w", cs.ID, err)
			}
		}
		for _, k := range slices.Sorted(maps.Keys(cs.References)) {
			if err := c.assignLocked(ct, k, cs.References[k], true); err != nil {
				return nil, fmt.Errorf("restoring %s: %w", cs.ID, err)
			}
		}
		for _, k := range slices.Sorted(maps.Keys(cs.Regions)) {
			if err := c.assignLocked(ct, k, cs.Regions[k], true); err != nil {
				return nil, fmt.Errorf("restoring %s: %w", cs.ID, err)
			}
		}
		if err := ct.completeLocked(); err != nil {
			return nil, fmt.Errorf("restoring %s: %w", cs.ID, err)
		}
	}

	for _, cs := range s.Containers {
		parent := c.containers[cs.ID]
		for _, id := range cs.Children {
			child, ok := c.containers[id]
			if !ok {
				return nil, fmt.Errorf("restoring %s: %w: child %s", cs.ID, types.ErrDanglingReference, id)
			}
			if err := c.attachLocked(parent, child); err != nil {
				return nil, fmt.Errorf("restoring %s: %w", cs.ID, err)
			}
		}
	}
	for _, id := range s.Roots {
		root, ok := c.containers[id]
		if !ok {
			return nil, fmt.Errorf("%w: root %s", types.ErrDanglingReference, id)
		}
		if root.owned {
			return nil, fmt.Errorf("%w: root %s already has an owner", types.ErrOwnershipConflict, id)
		}
		root.owned = true
		c.roots = append(c.roots, id)
	}
	return c, nil
}

func (c *Collection) restoreTableLocked(ct *Container, ts *TableSnapshot) error {
	tbl := &Table{Container: ct}
	for _, cs := range ts.Columns {
		def, err := tbl.columnDefLocked(cs.ColumnDef)
		if err != nil {
			return err
		}
		if _, dup := ct.table.index[def.Name]; dup {
			return fmt.Errorf("%w: %s", types.ErrDuplicateColumn, def.Name)
		}
		if len(cs.Values) != ts.Rows {
			return fmt.Errorf("%w: column %s has %d values for %d rows", types.ErrColumnLengthMismatch, def.Name, len(cs.Values), ts.Rows)
		}
		col := &column{ColumnDef: def, values: make([]any, len(cs.Values))}
		for i, v := range cs.Values {
			nv, err := c.cellLocked(def, v, true)
			if err != nil {
				return fmt.Errorf("column %s row %d: %w", def.Name, i, err)
			}
			col.values[i] = nv
		}
		ct.table.add(col)
	}
	for _, f := range ct.schema.Columns() {
		if _, ok := ct.table.index[f.Name]; f.Required && !ok {
			return fmt.Errorf("%w: column %s", types.ErrMissingRequiredField, f.Name)
		}
	}
	return nil
}

// Equal reports whether two collections hold the same content, including
// container identities. NaN equals NaN.
func Equal(a, b *Collection) bool {
	return cmp.Equal(a.Snapshot(), b.Snapshot(), cmpopts.EquateEmpty(), cmpopts.EquateNaNs())
}

// Diff describes how b differs from a, or returns "" when they are equal.
func Diff(a, b *Collection) string {
	return cmp.Diff(a.Snapshot(), b.Snapshot(), cmpopts.EquateEmpty(), cmpopts.EquateNaNs())
}
