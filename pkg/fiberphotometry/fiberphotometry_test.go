package fiberphotometry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fp "github.com/mesh-intelligence/neurodata/pkg/fiberphotometry"
	"github.com/mesh-intelligence/neurodata/pkg/model"
	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/sqlite"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

var sessionStart = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := fp.NewRegistry()
	require.NoError(t, err)
	return reg
}

// devices holds one of each device a fiber's light path needs.
type devices struct {
	indicator     *fp.Indicator
	fiber         *fp.OpticalFiber
	source        *fp.ExcitationSource
	detector      *fp.Photodetector
	mirror        *fp.DichroicMirror
	excitation    *fp.OpticalFilter
	emission      *fp.OpticalFilter
	vector        *fp.ViralVector
	injection     *fp.ViralVectorInjection
	voltages      *fp.MultiCommandedVoltage
	voltageSeries *fp.CommandedVoltageSeries
}

func newDevices(t *testing.T, c *model.Collection) devices {
	t.Helper()
	var (
		d   devices
		err error
	)
	d.indicator, err = fp.NewIndicator(c, "GCaMP", fp.IndicatorConfig{
		Description:              "Green indicator",
		Manufacturer:             "Vendor Inc",
		Label:                    "GCaMP7f",
		InjectionLocation:        "VTA",
		InjectionCoordinatesInMM: []float64{3.0, 2.0, 1.0},
	})
	require.NoError(t, err)
	d.fiber, err = fp.NewOpticalFiber(c, "optical_fiber", fp.OpticalFiberConfig{
		Description:       "fiber implant",
		Manufacturer:      "Fiber Co",
		Model:             "FC-200",
		NumericalAperture: 0.2,
		CoreDiameterInUM:  400,
	})
	require.NoError(t, err)
	d.source, err = fp.NewExcitationSource(c, "excitation_source", fp.ExcitationSourceConfig{
		Description:              "excitation sources for green indicator",
		Manufacturer:             "laser manufacturer",
		Model:                    "laser model",
		IlluminationType:         "laser",
		ExcitationWavelengthInNM: 470,
		PowerInW:                 0.7,
		IntensityInWPerM2:        0.005,
		ExposureTimeInS:          2.51e-13,
	})
	require.NoError(t, err)
	d.detector, err = fp.NewPhotodetector(c, "photodetector", fp.PhotodetectorConfig{
		Description:            "photodetector for green emission",
		Manufacturer:           "Detector Co",
		DetectorType:           "PMT",
		DetectedWavelengthInNM: 520,
		Gain:                   100,
	})
	require.NoError(t, err)
	d.mirror, err = fp.NewDichroicMirror(c, "dichroic_mirror", fp.DichroicMirrorConfig{
		Description:               "Dichroic mirror for green indicator",
		Manufacturer:              "Mirror Co",
		CutOnWavelengthInNM:       470,
		TransmissionBandwidthInNM: []float64{490, 550},
		AngleOfIncidenceInDegrees: 45,
	})
	require.NoError(t, err)
	d.excitation, err = fp.NewOpticalFilter(c, "excitation_filter", fp.OpticalFilterConfig{
		Description:        "excitation filter for green indicator",
		FilterType:         "Bandpass",
		PeakWavelengthInNM: 475,
		BandwidthInNM:      []float64{460, 490},
	})
	require.NoError(t, err)
	d.emission, err = fp.NewOpticalFilter(c, "emission_filter", fp.OpticalFilterConfig{
		Description:        "emission filter for green indicator",
		FilterType:         "Bandpass",
		PeakWavelengthInNM: 525,
		BandwidthInNM:      []float64{490, 560},
	})
	require.NoError(t, err)
	d.vector, err = fp.NewViralVector(c, "dLight", fp.ViralVectorConfig{
		ConstructName:  "AAV5-hSyn-dLight1.3b",
		Manufacturer:   "Vector Core",
		TiterInVGPerML: 1e12,
	})
	require.NoError(t, err)
	d.injection, err = fp.NewViralVectorInjection(c, "injection", fp.ViralVectorInjectionConfig{
		Location:      "VTA",
		Hemisphere:    "right",
		APInMM:        -3.0,
		MLInMM:        0.5,
		DVInMM:        -4.5,
		VolumeInUL:    0.45,
		InjectionDate: sessionStart.AddDate(0, -1, 0),
		ViralVector:   d.vector,
	})
	require.NoError(t, err)

	d.voltages, err = fp.NewMultiCommandedVoltage(c, "")
	require.NoError(t, err)
	d.voltageSeries, err = d.voltages.CreateCommandedVoltageSeries("commanded_voltage", fp.CommandedVoltageSeriesConfig{
		TimeSeriesConfig: fp.TimeSeriesConfig{Rate: 30},
		Data:             []float64{1, 2, 3, 4, 5},
		Frequency:        30,
	})
	require.NoError(t, err)
	_, err = d.voltages.CreateCommandedVoltageSeries("commanded_voltage_2", fp.CommandedVoltageSeriesConfig{
		TimeSeriesConfig: fp.TimeSeriesConfig{Rate: 30},
		Data:             []float64{5, 4, 3, 2, 1},
		Frequency:        60,
	})
	require.NoError(t, err)
	return d
}

func (d devices) row(location string) fp.FiberPhotometryRow {
	return fp.FiberPhotometryRow{
		Location:               location,
		Coordinates:            []float64{3.0, 2.0, 1.0},
		Indicator:              d.indicator,
		OpticalFiber:           d.fiber,
		ExcitationSource:       d.source,
		Photodetector:          d.detector,
		DichroicMirror:         d.mirror,
		ExcitationFilter:       d.excitation,
		EmissionFilter:         d.emission,
		CommandedVoltageSeries: d.voltageSeries,
	}
}

type fixture struct {
	coll     *model.Collection
	file     *fp.NWBFile
	devices  devices
	table    *fp.FiberPhotometryTable
	metadata *fp.FiberPhotometry
	response *fp.FiberPhotometryResponseSeries
}

// newSession builds a session with two fibers and a response series
// recorded through the first.
func newSession(t *testing.T) fixture {
	t.Helper()
	reg := newRegistry(t)
	c := model.NewCollection(reg, model.WithName("session"))

	file, err := fp.NewNWBFile(c, "4b5fe2a1", "fiber photometry session", sessionStart)
	require.NoError(t, err)
	d := newDevices(t, c)
	for _, dev := range []*model.Container{
		d.fiber.Container, d.source.Container, d.detector.Container,
		d.mirror.Container, d.excitation.Container, d.emission.Container,
	} {
		require.NoError(t, file.AddDevice(dev))
	}
	require.NoError(t, file.AddAcquisition(d.voltages.Container))

	table, err := fp.NewFiberPhotometryTable(c, "fiber_photometry_table", "fiber photometry table")
	require.NoError(t, err)
	_, err = table.AddRow(d.row("VTA"))
	require.NoError(t, err)
	_, err = table.AddRow(d.row("NAcc"))
	require.NoError(t, err)

	metadata, err := fp.NewFiberPhotometry(c, "fiber_photometry", fp.FiberPhotometryConfig{
		Table:           table,
		Indicators:      []*fp.Indicator{d.indicator},
		Viruses:         []*fp.ViralVector{d.vector},
		VirusInjections: []*fp.ViralVectorInjection{d.injection},
	})
	require.NoError(t, err)
	require.NoError(t, file.AddLabMetaData(metadata.Container))

	region, err := table.CreateFiberPhotometryTableRegion([]int{0}, "source fiber")
	require.NoError(t, err)
	data := make([][]float64, 100)
	for i := range data {
		data[i] = []float64{float64(i) / 10}
	}
	response, err := fp.NewFiberPhotometryResponseSeries(c, "FiberPhotometryResponseSeries", fp.FiberPhotometryResponseSeriesConfig{
		TimeSeriesConfig: fp.TimeSeriesConfig{Description: "green fluorescence", Unit: "n.a.", Rate: 30},
		Data:             data,
		Region:           region,
	})
	require.NoError(t, err)
	require.NoError(t, file.AddAcquisition(response.Container))

	return fixture{
		coll:     c,
		file:     file,
		devices:  d,
		table:    table,
		metadata: metadata,
		response: response,
	}
}

func TestNewRegistry(t *testing.T) {
	reg := newRegistry(t)
	for _, ident := range []string{
		fp.TypeNWBFile,
		fp.TypeIndicator,
		fp.TypeOpticalFiber,
		fp.TypeExcitationSource,
		fp.TypePhotodetector,
		fp.TypeDichroicMirror,
		fp.TypeOpticalFilter,
		fp.TypeViralVector,
		fp.TypeViralVectorInjection,
		fp.TypeFiberPhotometryTable,
		fp.TypeFiberPhotometryResponseSeries,
		fp.TypeCommandedVoltageSeries,
		fp.TypeMultiCommandedVoltage,
		fp.TypeFiberPhotometry,
		fp.TypeFiberPhotometryIndicators,
		fp.TypeFiberPhotometryViruses,
		fp.TypeFiberPhotometryVirusInjections,
	} {
		_, err := reg.Lookup(ident)
		assert.NoError(t, err, ident)
	}
}

func TestCommandedVoltageSeries_Unit(t *testing.T) {
	c := model.NewCollection(newRegistry(t))

	s, err := fp.NewCommandedVoltageSeries(c, "cvs", fp.CommandedVoltageSeriesConfig{
		Data: []float64{0.5, 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, "volts", s.Unit())
	assert.Equal(t, []float64{0.5, 1.5}, s.Data())
	assert.Zero(t, s.Frequency())

	_, err = fp.NewCommandedVoltageSeries(c, "amps", fp.CommandedVoltageSeriesConfig{
		TimeSeriesConfig: fp.TimeSeriesConfig{Unit: "amps"},
		Data:             []float64{1},
	})
	assert.ErrorIs(t, err, types.ErrFixedValueViolation)
}

func TestMultiCommandedVoltage(t *testing.T) {
	c := model.NewCollection(newRegistry(t))
	d := newDevices(t, c)

	assert.Equal(t, "MultiCommandedVoltage", d.voltages.Name())
	series := d.voltages.CommandedVoltageSeries()
	require.Len(t, series, 2)
	assert.Equal(t, "commanded_voltage", series[0].Name())
	assert.Equal(t, 60.0, series[1].Frequency())
	assert.Equal(t, 30.0, series[1].Rate())

	n := c.Len()
	_, err := d.voltages.CreateCommandedVoltageSeries("commanded_voltage", fp.CommandedVoltageSeriesConfig{
		Data: []float64{1},
	})
	require.ErrorIs(t, err, types.ErrDuplicateName)
	assert.Equal(t, n, c.Len(), "rejected series must not stay in the collection")
}

func TestDevices(t *testing.T) {
	c := model.NewCollection(newRegistry(t))
	d := newDevices(t, c)

	assert.Equal(t, "GCaMP7f", d.indicator.Label())
	assert.Equal(t, []float64{3, 2, 1}, d.indicator.InjectionCoordinatesInMM())
	assert.InDelta(t, 0.2, d.fiber.NumericalAperture(), 1e-6)
	assert.Equal(t, "laser", d.source.IlluminationType())
	assert.Equal(t, 470.0, d.source.ExcitationWavelengthInNM())
	assert.Equal(t, "PMT", d.detector.DetectorType())
	assert.Equal(t, []float64{490, 550}, d.mirror.TransmissionBandwidthInNM())
	assert.Equal(t, "Bandpass", d.excitation.FilterType())

	v, err := d.indicator.GetAttribute("manufacturer")
	require.NoError(t, err)
	assert.Equal(t, "Vendor Inc", v)
	v, err = d.detector.GetAttribute("model")
	require.NoError(t, err)
	assert.Nil(t, v, "zero config values leave the field unset")

	v, err = d.injection.GetAttribute("viral_vector")
	require.NoError(t, err)
	ref, ok := v.(model.Reference)
	require.True(t, ok)
	assert.Equal(t, d.vector.ID(), ref.Target)
}

func TestAs_TypeMismatch(t *testing.T) {
	c := model.NewCollection(newRegistry(t))
	d := newDevices(t, c)

	_, err := fp.AsIndicator(d.fiber.Container)
	assert.ErrorIs(t, err, types.ErrReferenceTypeMismatch)
	_, err = fp.AsOpticalFilter(d.mirror.Container)
	assert.ErrorIs(t, err, types.ErrReferenceTypeMismatch)
	_, err = fp.AsFiberPhotometryTable(d.voltages.Container)
	assert.ErrorIs(t, err, types.ErrReferenceTypeMismatch)
	_, err = fp.AsCommandedVoltageSeries(nil)
	assert.ErrorIs(t, err, types.ErrDanglingReference)

	ind, err := fp.AsIndicator(d.indicator.Container)
	require.NoError(t, err)
	assert.Same(t, d.indicator.Container, ind.Container)
}

func TestFiberPhotometryTable_AddRow(t *testing.T) {
	required := func(d devices, location string) fp.FiberPhotometryRow {
		return fp.FiberPhotometryRow{
			Location:         location,
			Indicator:        d.indicator,
			OpticalFiber:     d.fiber,
			ExcitationSource: d.source,
			Photodetector:    d.detector,
		}
	}
	columnNames := func(tbl *fp.FiberPhotometryTable) []string {
		var out []string
		for _, def := range tbl.Columns() {
			out = append(out, def.Name)
		}
		return out
	}

	t.Run("required columns only", func(t *testing.T) {
		c := model.NewCollection(newRegistry(t))
		d := newDevices(t, c)
		tbl, err := fp.NewFiberPhotometryTable(c, "fpt", "fibers")
		require.NoError(t, err)
		assert.ElementsMatch(t,
			[]string{"location", "indicator", "optical_fiber", "excitation_source", "photodetector"},
			columnNames(tbl))

		i, err := tbl.AddRow(required(d, "VTA"))
		require.NoError(t, err)
		assert.Equal(t, 0, i)
		assert.NotContains(t, columnNames(tbl), "dichroic_mirror")

		withMirror := required(d, "NAcc")
		withMirror.DichroicMirror = d.mirror
		_, err = tbl.AddRow(withMirror)
		assert.ErrorIs(t, err, types.ErrRowShapeMismatch)
		assert.Equal(t, 1, tbl.RowCount())
	})

	t.Run("first row adds optional columns", func(t *testing.T) {
		c := model.NewCollection(newRegistry(t))
		d := newDevices(t, c)
		tbl, err := fp.NewFiberPhotometryTable(c, "fpt", "fibers")
		require.NoError(t, err)

		_, err = tbl.AddRow(d.row("VTA"))
		require.NoError(t, err)
		assert.Subset(t, columnNames(tbl), []string{
			"coordinates", "dichroic_mirror", "excitation_filter", "emission_filter", "commanded_voltage_series",
		})

		_, err = tbl.AddRow(required(d, "NAcc"))
		assert.ErrorIs(t, err, types.ErrRowShapeMismatch, "later rows must set the optional columns too")
		_, err = tbl.AddRow(d.row("NAcc"))
		require.NoError(t, err)
		assert.Equal(t, 2, tbl.RowCount())
	})

	t.Run("wrong device type", func(t *testing.T) {
		c := model.NewCollection(newRegistry(t))
		d := newDevices(t, c)
		tbl, err := fp.NewFiberPhotometryTable(c, "fpt", "fibers")
		require.NoError(t, err)

		row := required(d, "VTA")
		row.OpticalFiber = &fp.OpticalFiber{Container: d.detector.Container}
		_, err = tbl.AddRow(row)
		assert.ErrorIs(t, err, types.ErrReferenceTypeMismatch)
		assert.Zero(t, tbl.RowCount())
	})

	t.Run("bad coordinates", func(t *testing.T) {
		c := model.NewCollection(newRegistry(t))
		d := newDevices(t, c)
		tbl, err := fp.NewFiberPhotometryTable(c, "fpt", "fibers")
		require.NoError(t, err)

		before := columnNames(tbl)
		row := d.row("VTA")
		row.Coordinates = []float64{1, 2}
		_, err = tbl.AddRow(row)
		assert.ErrorIs(t, err, types.ErrShapeMismatch)
		assert.Zero(t, tbl.RowCount())
		assert.Equal(t, before, columnNames(tbl), "a rejected first row must not add columns")

		_, err = tbl.AddRow(required(d, "VTA"))
		require.NoError(t, err)
		assert.Equal(t, before, columnNames(tbl))
	})

	t.Run("rejected optional device", func(t *testing.T) {
		c := model.NewCollection(newRegistry(t))
		d := newDevices(t, c)
		tbl, err := fp.NewFiberPhotometryTable(c, "fpt", "fibers")
		require.NoError(t, err)
		before := columnNames(tbl)

		row := d.row("VTA")
		row.EmissionFilter = &fp.OpticalFilter{Container: d.mirror.Container}
		_, err = tbl.AddRow(row)
		assert.ErrorIs(t, err, types.ErrReferenceTypeMismatch)
		assert.Equal(t, before, columnNames(tbl))
	})
}

func TestFiberPhotometryTable_Row(t *testing.T) {
	f := newSession(t)

	row, err := f.table.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "NAcc", row.Location)
	assert.Equal(t, []float64{3, 2, 1}, row.Coordinates)
	require.NotNil(t, row.Indicator)
	assert.Same(t, f.devices.indicator.Container, row.Indicator.Container)
	assert.Same(t, f.devices.fiber.Container, row.OpticalFiber.Container)
	assert.Same(t, f.devices.source.Container, row.ExcitationSource.Container)
	assert.Same(t, f.devices.detector.Container, row.Photodetector.Container)
	assert.Same(t, f.devices.mirror.Container, row.DichroicMirror.Container)
	assert.Same(t, f.devices.excitation.Container, row.ExcitationFilter.Container)
	assert.Same(t, f.devices.emission.Container, row.EmissionFilter.Container)
	assert.Same(t, f.devices.voltageSeries.Container, row.CommandedVoltageSeries.Container)

	_, err = f.table.Row(2)
	assert.ErrorIs(t, err, types.ErrRegionIndexOutOfRange)

	require.NoError(t, f.coll.Remove(f.devices.fiber.Container))
	_, err = f.table.Row(0)
	assert.ErrorIs(t, err, types.ErrDanglingReference)
}

func TestCreateFiberPhotometryTableRegion(t *testing.T) {
	f := newSession(t)

	tests := []struct {
		name    string
		indices []int
		wantErr error
	}{
		{name: "first fiber", indices: []int{0}},
		{name: "both fibers", indices: []int{1, 0}},
		{name: "empty", indices: nil, wantErr: types.ErrRegionIndexOutOfRange},
		{name: "past the end", indices: []int{2}, wantErr: types.ErrRegionIndexOutOfRange},
		{name: "negative", indices: []int{-1}, wantErr: types.ErrRegionIndexOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := f.table.CreateFiberPhotometryTableRegion(tt.indices, "fibers")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.indices, r.Indices)
			assert.Equal(t, f.table.ID(), r.Table)
		})
	}
}

func TestFiberPhotometryResponseSeries(t *testing.T) {
	f := newSession(t)

	data := f.response.Data()
	require.Len(t, data, 100)
	assert.Equal(t, []float64{9.9}, data[99])
	assert.Equal(t, []int{0}, f.response.Region().Indices)

	fibers, err := f.response.Fibers()
	require.NoError(t, err)
	require.Len(t, fibers, 1)
	assert.Equal(t, "VTA", fibers[0].Location)
	assert.Same(t, f.devices.indicator.Container, fibers[0].Indicator.Container)

	got, err := fp.AsFiberPhotometryResponseSeries(f.response.Container)
	require.NoError(t, err)
	assert.Equal(t, f.response.ID(), got.ID())
}

func TestFiberPhotometryResponseSeries_Invalid(t *testing.T) {
	f := newSession(t)
	region, err := f.table.CreateFiberPhotometryTableRegion([]int{0, 1}, "both")
	require.NoError(t, err)

	tests := []struct {
		name    string
		cfg     fp.FiberPhotometryResponseSeriesConfig
		wantErr error
	}{
		{
			name: "missing unit",
			cfg: fp.FiberPhotometryResponseSeriesConfig{
				Data:   [][]float64{{1, 2}},
				Region: region,
			},
			wantErr: types.ErrMissingRequiredField,
		},
		{
			name: "region past the end",
			cfg: fp.FiberPhotometryResponseSeriesConfig{
				TimeSeriesConfig: fp.TimeSeriesConfig{Unit: "n.a."},
				Data:             [][]float64{{1}},
				Region:           model.Region{Collection: f.coll.ID(), Table: f.table.ID(), Indices: []int{5}},
			},
			wantErr: types.ErrRegionIndexOutOfRange,
		},
		{
			name: "region over another table type",
			cfg: fp.FiberPhotometryResponseSeriesConfig{
				TimeSeriesConfig: fp.TimeSeriesConfig{Unit: "n.a."},
				Data:             [][]float64{{1, 2}},
				Region:           model.Region{Collection: f.coll.ID(), Table: f.devices.indicator.ID(), Indices: []int{0}},
			},
			wantErr: types.ErrReferenceTypeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fp.NewFiberPhotometryResponseSeries(f.coll, "series", tt.cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewFiberPhotometry(t *testing.T) {
	f := newSession(t)

	tbl, err := f.metadata.Table()
	require.NoError(t, err)
	assert.Same(t, f.table.Container, tbl.Container)
	parent, ok := f.table.Parent()
	require.True(t, ok)
	assert.Same(t, f.metadata.Container, parent)

	indicators := f.metadata.Indicators()
	require.Len(t, indicators, 1)
	assert.Same(t, f.devices.indicator.Container, indicators[0].Container)
	_, ok = f.metadata.Child("fiber_photometry_viruses")
	assert.True(t, ok)
	_, ok = f.metadata.Child("fiber_photometry_virus_injections")
	assert.True(t, ok)

	_, err = fp.NewFiberPhotometry(f.coll, "again", fp.FiberPhotometryConfig{Table: f.table})
	assert.ErrorIs(t, err, types.ErrOwnershipConflict)
	_, err = fp.NewFiberPhotometry(f.coll, "none", fp.FiberPhotometryConfig{})
	assert.Error(t, err)
}

func TestNewFiberPhotometry_NamesUnnamedTable(t *testing.T) {
	c := model.NewCollection(newRegistry(t))
	tbl, err := fp.NewFiberPhotometryTable(c, "", "fibers")
	require.NoError(t, err)

	meta, err := fp.NewFiberPhotometry(c, "fiber_photometry", fp.FiberPhotometryConfig{Table: tbl})
	require.NoError(t, err)
	assert.Equal(t, "fiber_photometry_table", tbl.Name())
	assert.Empty(t, meta.Indicators())
}

// A session written to the store reads back equal, and the typed views
// work on the copy.
func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newSession(t)

	store := sqlite.NewStore(f.coll.Registry())
	require.NoError(t, store.Attach(ctx, types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	t.Cleanup(func() { _ = store.Detach() })

	h, err := store.Write(ctx, f.coll)
	require.NoError(t, err)
	got, err := store.Read(ctx, h)
	require.NoError(t, err)
	require.True(t, model.Equal(f.coll, got), model.Diff(f.coll, got))

	root, ok := got.Root("root")
	require.True(t, ok)
	metaCt, ok := root.Child("fiber_photometry")
	require.True(t, ok)
	tblCt, ok := metaCt.Child("fiber_photometry_table")
	require.True(t, ok)
	tbl, err := fp.AsFiberPhotometryTable(tblCt)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.RowCount())

	seriesCt, ok := root.Child("FiberPhotometryResponseSeries")
	require.True(t, ok)
	series, err := fp.AsFiberPhotometryResponseSeries(seriesCt)
	require.NoError(t, err)
	fibers, err := series.Fibers()
	require.NoError(t, err)
	require.Len(t, fibers, 1)
	assert.Equal(t, "GCaMP7f", fibers[0].Indicator.Label())
	assert.Equal(t, "volts", fibers[0].CommandedVoltageSeries.Unit())
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, fibers[0].CommandedVoltageSeries.Data())
	assert.NotSame(t, f.devices.indicator.Container, fibers[0].Indicator.Container)
}
