package fiberphotometry

import (
	"github.com/mesh-intelligence/neurodata/pkg/model"
)

// TimeSeriesConfig holds the fields every series shares.
type TimeSeriesConfig struct {
	Description  string
	Comments     string
	Unit         string
	Rate         float64
	StartingTime float64
	Timestamps   []float64
}

func (cfg TimeSeriesConfig) attrs() map[string]any {
	return present(map[string]any{
		"description":   cfg.Description,
		"comments":      cfg.Comments,
		"unit":          cfg.Unit,
		"rate":          cfg.Rate,
		"starting_time": cfg.StartingTime,
		"timestamps":    cfg.Timestamps,
	})
}

// CommandedVoltageSeries is the voltage commanded to an excitation
// source. Its unit is always volts.
type CommandedVoltageSeries struct{ *model.Container }

// CommandedVoltageSeriesConfig holds the fields of a CommandedVoltageSeries.
// Unit may be left empty; any unit other than volts is rejected.
type CommandedVoltageSeriesConfig struct {
	TimeSeriesConfig
	Data      []float64
	Frequency float64
}

// NewCommandedVoltageSeries creates a series in c.
func NewCommandedVoltageSeries(c *model.Collection, name string, cfg CommandedVoltageSeriesConfig) (*CommandedVoltageSeries, error) {
	attrs := cfg.attrs()
	attrs["data"] = cfg.Data
	if cfg.Frequency != 0 {
		attrs["frequency"] = cfg.Frequency
	}
	ct, err := c.InstantiateNamed(TypeCommandedVoltageSeries, name, attrs)
	if err != nil {
		return nil, err
	}
	return &CommandedVoltageSeries{ct}, nil
}

// AsCommandedVoltageSeries wraps a container read back from a store.
func AsCommandedVoltageSeries(ct *model.Container) (*CommandedVoltageSeries, error) {
	if err := as(ct, TypeCommandedVoltageSeries); err != nil {
		return nil, err
	}
	return &CommandedVoltageSeries{ct}, nil
}

// Data returns the commanded voltages.
func (s *CommandedVoltageSeries) Data() []float64    { return floats(s.Container, "data") }
func (s *CommandedVoltageSeries) Frequency() float64 { return float(s.Container, "frequency") }
func (s *CommandedVoltageSeries) Rate() float64      { return float(s.Container, "rate") }
func (s *CommandedVoltageSeries) Unit() string       { return text(s.Container, "unit") }

// MultiCommandedVoltage groups the commanded voltage series of a session.
type MultiCommandedVoltage struct{ *model.Container }

// NewMultiCommandedVoltage creates an empty group in c. An empty name
// defaults to "MultiCommandedVoltage".
func NewMultiCommandedVoltage(c *model.Collection, name string) (*MultiCommandedVoltage, error) {
	if name == "" {
		name = "MultiCommandedVoltage"
	}
	ct, err := c.InstantiateNamed(TypeMultiCommandedVoltage, name, nil)
	if err != nil {
		return nil, err
	}
	return &MultiCommandedVoltage{ct}, nil
}

// CreateCommandedVoltageSeries creates a series and adds it as a child.
func (m *MultiCommandedVoltage) CreateCommandedVoltageSeries(name string, cfg CommandedVoltageSeriesConfig) (*CommandedVoltageSeries, error) {
	s, err := NewCommandedVoltageSeries(m.Collection(), name, cfg)
	if err != nil {
		return nil, err
	}
	if err := m.AddChild(s.Container); err != nil {
		// Leave no orphan behind.
		_ = m.Collection().Remove(s.Container)
		return nil, err
	}
	return s, nil
}

// CommandedVoltageSeries returns the child series in attach order.
func (m *MultiCommandedVoltage) CommandedVoltageSeries() []*CommandedVoltageSeries {
	var out []*CommandedVoltageSeries
	for _, ct := range m.Children() {
		if ct.IsA(TypeCommandedVoltageSeries) {
			out = append(out, &CommandedVoltageSeries{ct})
		}
	}
	return out
}

// FiberPhotometryResponseSeries holds fluorescence recorded through the
// fibers of a table region, one data column per region row.
type FiberPhotometryResponseSeries struct{ *model.Container }

// FiberPhotometryResponseSeriesConfig holds the fields of a
// FiberPhotometryResponseSeries.
type FiberPhotometryResponseSeriesConfig struct {
	TimeSeriesConfig
	// Data is indexed [time][fiber].
	Data   [][]float64
	Region model.Region
}

// NewFiberPhotometryResponseSeries creates a series in c. The region must
// point into a FiberPhotometryTable.
func NewFiberPhotometryResponseSeries(c *model.Collection, name string, cfg FiberPhotometryResponseSeriesConfig) (*FiberPhotometryResponseSeries, error) {
	attrs := cfg.attrs()
	attrs["data"] = cfg.Data
	attrs[RegionName] = cfg.Region
	ct, err := c.InstantiateNamed(TypeFiberPhotometryResponseSeries, name, attrs)
	if err != nil {
		return nil, err
	}
	return &FiberPhotometryResponseSeries{ct}, nil
}

// AsFiberPhotometryResponseSeries wraps a container read back from a store.
func AsFiberPhotometryResponseSeries(ct *model.Container) (*FiberPhotometryResponseSeries, error) {
	if err := as(ct, TypeFiberPhotometryResponseSeries); err != nil {
		return nil, err
	}
	return &FiberPhotometryResponseSeries{ct}, nil
}

// Data returns the samples indexed [time][fiber].
func (s *FiberPhotometryResponseSeries) Data() [][]float64 {
	v, _ := s.GetAttribute("data")
	rows, _ := v.([]any)
	out := make([][]float64, 0, len(rows))
	for _, r := range rows {
		out = append(out, toFloats(r))
	}
	return out
}

// Region returns the table region the data columns come from.
func (s *FiberPhotometryResponseSeries) Region() model.Region {
	return s.Regions()[RegionName]
}

// Fibers returns the table rows of the series' region.
func (s *FiberPhotometryResponseSeries) Fibers() ([]FiberPhotometryRow, error) {
	coll := s.Collection()
	tbl, indices, err := coll.ResolveRegion(s.Region())
	if err != nil {
		return nil, err
	}
	fpt, err := AsFiberPhotometryTable(tbl.Container)
	if err != nil {
		return nil, err
	}
	out := make([]FiberPhotometryRow, 0, len(indices))
	for _, i := range indices {
		row, err := fpt.Row(i)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
