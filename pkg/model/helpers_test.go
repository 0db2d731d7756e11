package model

import (
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

func text(name string, required bool) types.FieldSpec {
	return types.FieldSpec{Name: name, ValueType: types.ValueTypeText, Required: required}
}

func fixtureNamespaces() []types.Namespace {
	core := types.Namespace{
		Name:    "core",
		Version: "2.7.0",
		Types: []types.TypeSpec{
			{Name: "NWBContainer"},
			{Name: "Device", Parent: "NWBContainer", Attributes: []types.FieldSpec{text("description", false)}},
			{Name: "Subject", Parent: "NWBContainer", Attributes: []types.FieldSpec{text("species", false)}},
			{Name: "DynamicTable", Parent: "NWBContainer", Table: true, Attributes: []types.FieldSpec{text("description", true)}},
			{
				Name:   "Series",
				Parent: "NWBContainer",
				Attributes: []types.FieldSpec{
					{Name: "rate", ValueType: types.ValueTypeFloat32},
					{Name: "source", ValueType: types.ValueTypeReference, TargetType: "Device"},
					{Name: "rows", ValueType: types.ValueTypeRegion, TargetType: "DynamicTable"},
				},
				Datasets: []types.FieldSpec{
					{Name: "data", ValueType: types.ValueTypeFloat64, Shape: types.Shape{types.Unbounded}, Required: true},
					{Name: "unit", ValueType: types.ValueTypeText, FixedValue: "volts"},
					{Name: "started", ValueType: types.ValueTypeISODatetime},
				},
			},
			{
				Name:   "File",
				Parent: "NWBContainer",
				Groups: []types.GroupSpec{
					{Type: "Device", Multiple: true},
					{Name: "subject", Type: "Subject"},
					{Type: "DynamicTable"},
				},
			},
		},
	}
	devices := types.Namespace{
		Name:    "ndx-devices",
		Imports: []string{"core"},
		Types: []types.TypeSpec{
			{Name: "Indicator", Parent: "Device", Attributes: []types.FieldSpec{text("label", true)}},
			{
				Name:    "IndicatorTable",
				Parent:  "DynamicTable",
				Columns: []types.FieldSpec{{Name: "indicator", ValueType: types.ValueTypeReference, TargetType: "Device", Required: true}},
			},
		},
	}
	return []types.Namespace{core, devices}
}

func newTestRegistry(t testingT) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry(schema.WithLogger(zerolog.Nop()))
	for _, ns := range fixtureNamespaces() {
		require.NoError(t, r.Load(ns))
	}
	return r
}

func mustType(t testingT, r *schema.Registry, ident string) *types.TypeSpec {
	t.Helper()
	ts, err := r.Lookup(ident)
	require.NoError(t, err)
	return ts
}

// fixture is a collection with one indicator and an indicator table.
type fixture struct {
	reg   *schema.Registry
	coll  *Collection
	ind   *Container
	table *Table
}

func newFixture(t testingT, opts ...CollectionOption) fixture {
	t.Helper()
	reg := newTestRegistry(t)
	coll := NewCollection(reg, opts...)

	ind, err := coll.Instantiate(mustType(t, reg, "ndx-devices:Indicator"), "GCaMP", map[string]any{"label": "GCaMP6f"})
	require.NoError(t, err)
	tbl, err := coll.NewTable(mustType(t, reg, "ndx-devices:IndicatorTable"), "fibers", map[string]any{"description": "fibers"})
	require.NoError(t, err)
	return fixture{reg: reg, coll: coll, ind: ind, table: tbl}
}
