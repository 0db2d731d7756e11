package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/neurodata/pkg/model"
	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

const testCoreYAML = `
name: core
version: 2.7.0
types:
- neurodata_type_def: NWBContainer
- neurodata_type_def: Device
  neurodata_type_inc: NWBContainer
  attributes:
  - name: description
    dtype: text
    required: false
- neurodata_type_def: DynamicTable
  neurodata_type_inc: NWBContainer
  table: true
  attributes:
  - name: description
    dtype: text
- neurodata_type_def: Series
  neurodata_type_inc: NWBContainer
  attributes:
  - name: rate
    dtype: float32
    required: false
  - name: source
    dtype:
      target_type: Device
      reftype: object
    required: false
  - name: rows
    dtype:
      target_type: DynamicTable
      reftype: region
    required: false
  datasets:
  - name: data
    dtype: float64
    shape: [null, null]
  - name: unit
    dtype: text
    value: volts
  - name: started
    dtype: isodatetime
    required: false
- neurodata_type_def: File
  neurodata_type_inc: NWBContainer
  groups:
  - neurodata_type_inc: NWBContainer
    quantity: '*'
`

const testDevicesYAML = `
name: ndx-devices
version: 0.1.0
imports: [core]
types:
- neurodata_type_def: Indicator
  neurodata_type_inc: Device
  attributes:
  - name: label
    dtype: text
- neurodata_type_def: IndicatorTable
  neurodata_type_inc: DynamicTable
  columns:
  - name: indicator
    dtype:
      target_type: Indicator
`

func newTestRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry(schema.WithLogger(zerolog.Nop()))
	for _, doc := range []string{testCoreYAML, testDevicesYAML} {
		ns, err := schema.ParseNamespaceYAML([]byte(doc))
		require.NoError(t, err)
		require.NoError(t, reg.Load(ns))
	}
	return reg
}

// setupTestDB creates a fresh database with the store schema in a temp dir.
func setupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dataDir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFile))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, ddl := range append(append([]string{}, schemaDDL...), indexDDL...) {
		_, err := db.Exec(ddl)
		require.NoError(t, err)
	}
	require.NoError(t, initJSONLFiles(dataDir))
	return db, dataDir
}

// attachBackend returns an attached backend over dataDir that detaches
// when the test ends.
func attachBackend(t *testing.T, reg *schema.Registry, dataDir string, sync string) *Backend {
	t.Helper()
	b := NewBackend(reg, WithLogger(zerolog.New(zerolog.NewTestWriter(t))))
	require.NoError(t, b.Attach(context.Background(), types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      dataDir,
		SyncStrategy: sync,
	}))
	t.Cleanup(func() { b.Detach() })
	return b
}

// session builds a collection with a device, an indicator table holding
// one row, and a series that points at both.
func session(t *testing.T, reg *schema.Registry) *model.Collection {
	t.Helper()
	coll := model.NewCollection(reg, model.WithName("session-1"))

	file, err := coll.InstantiateNamed("core:File", "session", nil)
	require.NoError(t, err)
	require.NoError(t, coll.AddRoot(file))

	ind, err := coll.InstantiateNamed("ndx-devices:Indicator", "GCaMP", map[string]any{"label": "GCaMP6f"})
	require.NoError(t, err)
	require.NoError(t, file.AddChild(ind))

	tt, err := reg.Lookup("ndx-devices:IndicatorTable")
	require.NoError(t, err)
	tbl, err := coll.NewTable(tt, "indicators", map[string]any{"description": "indicators used"})
	require.NoError(t, err)
	require.NoError(t, file.AddChild(tbl.Container))
	_, err = tbl.AddRow(map[string]any{"indicator": ind})
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(model.ColumnDef{
		Name:      "coords",
		ValueType: types.ValueTypeFloat64,
		Shape:     types.Shape{3},
	}, []any{[]float64{1.5, -2, 4}}))
	region, err := tbl.CreateRegion([]int{0}, "first")
	require.NoError(t, err)

	series, err := coll.InstantiateNamed("core:Series", "signal", map[string]any{
		"data":    [][]float64{{0.1, 0.2}, {0.3, 0.4}},
		"rate":    30,
		"rows":    region,
		"started": time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, file.AddChild(series))
	_, err = coll.Link(series, "source", ind)
	require.NoError(t, err)
	return coll
}
