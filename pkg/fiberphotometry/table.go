package fiberphotometry

import (
	"fmt"

	"github.com/mesh-intelligence/neurodata/pkg/model"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// RegionName is the name a FiberPhotometryResponseSeries gives the region
// of the table it was recorded from.
const RegionName = "fiber_photometry_table_region"

// FiberPhotometryTable has one row per recorded fiber and refers to the
// devices along that fiber's light path.
type FiberPhotometryTable struct{ *model.Table }

// FiberPhotometryRow is one row of a FiberPhotometryTable. Location and
// the first four devices are required. The optional fields form columns
// on the first row that sets them; later rows must then set them too.
type FiberPhotometryRow struct {
	Location         string
	Coordinates      []float64
	Indicator        *Indicator
	OpticalFiber     *OpticalFiber
	ExcitationSource *ExcitationSource
	Photodetector    *Photodetector

	DichroicMirror         *DichroicMirror
	ExcitationFilter       *OpticalFilter
	EmissionFilter         *OpticalFilter
	CommandedVoltageSeries *CommandedVoltageSeries
}

// cells maps the row to column values, leaving out what it does not set.
func (r FiberPhotometryRow) cells() map[string]any {
	out := present(map[string]any{
		"location":    r.Location,
		"coordinates": r.Coordinates,
	})
	if r.Indicator != nil {
		out["indicator"] = r.Indicator.Container
	}
	if r.OpticalFiber != nil {
		out["optical_fiber"] = r.OpticalFiber.Container
	}
	if r.ExcitationSource != nil {
		out["excitation_source"] = r.ExcitationSource.Container
	}
	if r.Photodetector != nil {
		out["photodetector"] = r.Photodetector.Container
	}
	if r.DichroicMirror != nil {
		out["dichroic_mirror"] = r.DichroicMirror.Container
	}
	if r.ExcitationFilter != nil {
		out["excitation_filter"] = r.ExcitationFilter.Container
	}
	if r.EmissionFilter != nil {
		out["emission_filter"] = r.EmissionFilter.Container
	}
	if r.CommandedVoltageSeries != nil {
		out["commanded_voltage_series"] = r.CommandedVoltageSeries.Container
	}
	return out
}

// NewFiberPhotometryTable creates an empty table.
func NewFiberPhotometryTable(c *model.Collection, name, description string) (*FiberPhotometryTable, error) {
	t, err := c.Registry().Lookup(TypeFiberPhotometryTable)
	if err != nil {
		return nil, err
	}
	tbl, err := c.NewTable(t, name, map[string]any{"description": description})
	if err != nil {
		return nil, err
	}
	return &FiberPhotometryTable{tbl}, nil
}

// AsFiberPhotometryTable wraps a table read back from a store.
func AsFiberPhotometryTable(ct *model.Container) (*FiberPhotometryTable, error) {
	if err := as(ct, TypeFiberPhotometryTable); err != nil {
		return nil, err
	}
	tbl, err := model.AsTable(ct)
	if err != nil {
		return nil, err
	}
	return &FiberPhotometryTable{tbl}, nil
}

// AddRow appends a row and returns its index. The first row also creates
// the optional columns it sets. A rejected row leaves the table as it was.
func (t *FiberPhotometryTable) AddRow(row FiberPhotometryRow) (int, error) {
	cells := row.cells()
	if t.RowCount() > 0 {
		return t.Table.AddRow(cells)
	}
	return t.AddRowWithColumns(t.optionalColumns(cells), cells)
}

// optionalColumns returns the declared optional columns that cells sets
// and the table lacks.
func (t *FiberPhotometryTable) optionalColumns(cells map[string]any) []model.ColumnDef {
	existing := make(map[string]bool)
	for _, def := range t.Columns() {
		existing[def.Name] = true
	}
	var defs []model.ColumnDef
	for _, f := range t.Schema().Columns() {
		if f.Required || existing[f.Name] {
			continue
		}
		if _, ok := cells[f.Name]; !ok {
			continue
		}
		defs = append(defs, model.ColumnDef{
			Name:        f.Name,
			ValueType:   f.ValueType,
			TargetType:  f.TargetType,
			Description: f.Doc,
			Shape:       f.Shape,
		})
	}
	return defs
}

// Row returns row i with its devices resolved.
func (t *FiberPhotometryTable) Row(i int) (FiberPhotometryRow, error) {
	cells, err := t.Table.Row(i)
	if err != nil {
		return FiberPhotometryRow{}, err
	}
	var row FiberPhotometryRow
	row.Location, _ = cells["location"].(string)
	row.Coordinates = toFloats(cells["coordinates"])

	coll := t.Collection()
	resolve := func(name string) (*model.Container, error) {
		ref, ok := cells[name].(model.Reference)
		if !ok {
			return nil, nil
		}
		ct, err := coll.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", i, name, err)
		}
		return ct, nil
	}
	for name, set := range map[string]func(*model.Container){
		"indicator":                func(ct *model.Container) { row.Indicator = &Indicator{ct} },
		"optical_fiber":            func(ct *model.Container) { row.OpticalFiber = &OpticalFiber{ct} },
		"excitation_source":        func(ct *model.Container) { row.ExcitationSource = &ExcitationSource{ct} },
		"photodetector":            func(ct *model.Container) { row.Photodetector = &Photodetector{ct} },
		"dichroic_mirror":          func(ct *model.Container) { row.DichroicMirror = &DichroicMirror{ct} },
		"excitation_filter":        func(ct *model.Container) { row.ExcitationFilter = &OpticalFilter{ct} },
		"emission_filter":          func(ct *model.Container) { row.EmissionFilter = &OpticalFilter{ct} },
		"commanded_voltage_series": func(ct *model.Container) { row.CommandedVoltageSeries = &CommandedVoltageSeries{ct} },
	} {
		ct, err := resolve(name)
		if err != nil {
			return FiberPhotometryRow{}, err
		}
		if ct != nil {
			set(ct)
		}
	}
	return row, nil
}

// CreateFiberPhotometryTableRegion returns a region over the given rows,
// for use as a series' fiber_photometry_table_region.
func (t *FiberPhotometryTable) CreateFiberPhotometryTableRegion(indices []int, description string) (model.Region, error) {
	if len(indices) == 0 {
		return model.Region{}, fmt.Errorf("%w: empty %s", types.ErrRegionIndexOutOfRange, RegionName)
	}
	return t.CreateRegion(indices, description)
}
