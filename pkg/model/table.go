package model

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// Table is a container of a table type, viewed through its columns.
type Table struct {
	*Container
}

// ColumnDef describes one column. Shape is the shape of a single cell.
type ColumnDef struct {
	Name        string      `json:"name"`
	ValueType   string      `json:"dtype"`
	TargetType  string      `json:"target_type,omitempty"`
	Description string      `json:"description,omitempty"`
	Shape       types.Shape `json:"shape,omitempty"`
}

type column struct {
	ColumnDef
	values []any
}

type tableData struct {
	columns []*column
	index   map[string]int
	rows    int
}

func newTableData() *tableData {
	return &tableData{index: make(map[string]int)}
}

func (td *tableData) add(col *column) {
	td.index[col.Name] = len(td.columns)
	td.columns = append(td.columns, col)
}

func columnFromField(f types.FieldSpec) ColumnDef {
	return ColumnDef{
		Name:        f.Name,
		ValueType:   f.ValueType,
		TargetType:  f.TargetType,
		Description: f.Doc,
		Shape:       f.Shape,
	}
}

// AsTable views ct as a table.
func AsTable(ct *Container) (*Table, error) {
	if ct == nil || ct.table == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrNotATable, describeOrNil(ct))
	}
	return &Table{Container: ct}, nil
}

func describeOrNil(ct *Container) string {
	if ct == nil {
		return "nil container"
	}
	return ct.describe()
}

// NewTable instantiates a table type. Declared required columns exist,
// empty, from the start.
func (c *Collection) NewTable(t *types.TypeSpec, name string, attrs map[string]any) (*Table, error) {
	eff, err := c.registry.Effective(t)
	if err != nil {
		return nil, err
	}
	if !eff.Table {
		return nil, fmt.Errorf("%w: %s", types.ErrNotATable, eff.Ident())
	}
	ct, err := c.Instantiate(t, name, attrs)
	if err != nil {
		return nil, err
	}
	return &Table{Container: ct}, nil
}

// AddColumn appends a column filled with values, one per existing row. A
// column the type declares must agree with the declaration; other columns
// are free-form. Region columns are not supported.
func (t *Table) AddColumn(def ColumnDef, values []any) error {
	c := t.coll
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMemberLocked(t.Container); err != nil {
		return err
	}
	def, err := t.columnDefLocked(def)
	if err != nil {
		return err
	}
	if _, dup := t.table.index[def.Name]; dup {
		return fmt.Errorf("%w: %s on %s", types.ErrDuplicateColumn, def.Name, t.describe())
	}
	if len(values) != t.table.rows {
		return fmt.Errorf("%w: %d values for %d rows", types.ErrColumnLengthMismatch, len(values), t.table.rows)
	}

	col := &column{ColumnDef: def, values: make([]any, len(values))}
	for i, v := range values {
		nv, err := c.cellLocked(def, v, false)
		if err != nil {
			return fmt.Errorf("column %s row %d: %w", def.Name, i, err)
		}
		col.values[i] = nv
	}
	t.table.add(col)
	return nil
}

// columnDefLocked checks a column definition and fills in what the type
// declares for it.
func (t *Table) columnDefLocked(def ColumnDef) (ColumnDef, error) {
	if def.Name == "" {
		return def, fmt.Errorf("%w: column without name", types.ErrInvalidSpec)
	}
	if !types.IsValidValueType(def.ValueType) {
		return def, fmt.Errorf("%w: column %s has unknown dtype %q", types.ErrInvalidSpec, def.Name, def.ValueType)
	}
	if def.ValueType == types.ValueTypeRegion {
		return def, fmt.Errorf("%w: column %s: region columns are not supported", types.ErrInvalidSpec, def.Name)
	}
	if err := def.Shape.Validate(); err != nil {
		return def, fmt.Errorf("column %s: %w", def.Name, err)
	}

	switch {
	case def.ValueType == types.ValueTypeReference && def.TargetType == "":
		return def, fmt.Errorf("%w: reference column %s needs a target type", types.ErrInvalidSpec, def.Name)
	case def.ValueType == types.ValueTypeReference:
		target, err := t.lookupType(def.TargetType)
		if err != nil {
			return def, fmt.Errorf("column %s: %w", def.Name, err)
		}
		def.TargetType = target.Ident()
	case def.TargetType != "":
		return def, fmt.Errorf("%w: %s column %s cannot declare a target type", types.ErrInvalidSpec, def.ValueType, def.Name)
	}

	f, declared := t.schema.Field(def.Name)
	if !declared {
		return def, nil
	}
	if f.Kind != types.FieldColumn {
		return def, fmt.Errorf("%w: %s is declared as %s", types.ErrSchemaConflict, def.Name, f.Kind)
	}
	if f.ValueType != def.ValueType || f.TargetType != def.TargetType {
		return def, fmt.Errorf("%w: column %s is declared %s %s", types.ErrSchemaConflict, def.Name, f.ValueType, f.TargetType)
	}
	switch {
	case def.Shape == nil:
		def.Shape = f.Shape
	case !def.Shape.Narrows(f.Shape):
		return def, fmt.Errorf("%w: column %s shape %s does not fit %s", types.ErrSchemaConflict, def.Name, def.Shape, f.Shape)
	}
	if def.Description == "" {
		def.Description = f.Doc
	}
	return def, nil
}

// lookupType accepts a qualified type name or one visible from the
// table's namespace.
func (t *Table) lookupType(name string) (*types.TypeSpec, error) {
	if strings.Contains(name, ":") {
		return t.coll.registry.Lookup(name)
	}
	return t.coll.registry.Resolve(name, t.schema.Type.Namespace)
}

// cellLocked validates one cell value against its column.
func (c *Collection) cellLocked(def ColumnDef, v any, lenient bool) (any, error) {
	if def.ValueType == types.ValueTypeReference {
		return c.referenceLocked(def.TargetType, v, lenient)
	}
	return types.NormalizeValue(def.ValueType, def.Shape, v)
}

// AddRow appends one row. values must hold exactly one entry per column.
// Either every cell is appended or none is.
func (t *Table) AddRow(values map[string]any) (int, error) {
	return t.AddRowWithColumns(nil, values)
}

// AddRowWithColumns adds the columns in defs and appends one row that
// fills every column, old and new. Columns can only be added this way to
// an empty table. On error the table is unchanged.
func (t *Table) AddRowWithColumns(defs []ColumnDef, values map[string]any) (int, error) {
	c := t.coll
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMemberLocked(t.Container); err != nil {
		return 0, err
	}
	td := t.table
	if len(defs) > 0 && td.rows != 0 {
		return 0, fmt.Errorf("%w: adding columns to %s with %d rows", types.ErrColumnLengthMismatch, t.describe(), td.rows)
	}

	cols := append([]*column(nil), td.columns...)
	known := make(map[string]bool, len(cols)+len(defs))
	for _, col := range cols {
		known[col.Name] = true
	}
	for _, def := range defs {
		def, err := t.columnDefLocked(def)
		if err != nil {
			return 0, err
		}
		if known[def.Name] {
			return 0, fmt.Errorf("%w: %s on %s", types.ErrDuplicateColumn, def.Name, t.describe())
		}
		known[def.Name] = true
		cols = append(cols, &column{ColumnDef: def})
	}

	for name := range values {
		if !known[name] {
			return 0, fmt.Errorf("%w: %s has no column %q", types.ErrRowShapeMismatch, t.describe(), name)
		}
	}
	staged := make([]any, len(cols))
	for i, col := range cols {
		v, ok := values[col.Name]
		if !ok {
			return 0, fmt.Errorf("%w: missing column %q", types.ErrRowShapeMismatch, col.Name)
		}
		nv, err := c.cellLocked(col.ColumnDef, v, false)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", col.Name, err)
		}
		staged[i] = nv
	}

	for _, col := range cols[len(td.columns):] {
		td.add(col)
	}
	for i, col := range cols {
		col.values = append(col.values, staged[i])
	}
	td.rows++
	return td.rows - 1, nil
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	t.coll.mu.RLock()
	defer t.coll.mu.RUnlock()
	return t.table.rows
}

// Columns returns the column definitions in order.
func (t *Table) Columns() []ColumnDef {
	t.coll.mu.RLock()
	defer t.coll.mu.RUnlock()
	out := make([]ColumnDef, 0, len(t.table.columns))
	for _, col := range t.table.columns {
		out = append(out, col.ColumnDef)
	}
	return out
}

// Column returns a column's definition and a copy of its values.
func (t *Table) Column(name string) (ColumnDef, []any, error) {
	t.coll.mu.RLock()
	defer t.coll.mu.RUnlock()
	i, ok := t.table.index[name]
	if !ok {
		return ColumnDef{}, nil, fmt.Errorf("%w: %s on %s", types.ErrColumnNotFound, name, t.describe())
	}
	col := t.table.columns[i]
	vals := make([]any, len(col.values))
	for j, v := range col.values {
		vals[j] = cloneValue(v)
	}
	return col.ColumnDef, vals, nil
}

// Row returns the cells of row i keyed by column name.
func (t *Table) Row(i int) (map[string]any, error) {
	t.coll.mu.RLock()
	defer t.coll.mu.RUnlock()
	if err := checkRowLocked(t.Container, i); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(t.table.columns))
	for _, col := range t.table.columns {
		out[col.Name] = cloneValue(col.values[i])
	}
	return out, nil
}

// Cell returns one value.
func (t *Table) Cell(name string, row int) (any, error) {
	t.coll.mu.RLock()
	defer t.coll.mu.RUnlock()
	i, ok := t.table.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", types.ErrColumnNotFound, name, t.describe())
	}
	if err := checkRowLocked(t.Container, row); err != nil {
		return nil, err
	}
	return cloneValue(t.table.columns[i].values[row]), nil
}
