package model

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// Region selects rows of a table by index.
type Region struct {
	Collection  ID     `json:"collection"`
	Table       ID     `json:"table"`
	Indices     []int  `json:"indices"`
	Description string `json:"description,omitempty"`
}

func (r Region) clone() Region {
	r.Indices = slices.Clone(r.Indices)
	return r
}

// CreateRegion selects rows of t. Every index must be below the current
// row count.
func (t *Table) CreateRegion(indices []int, description string) (Region, error) {
	c := t.coll
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkMemberLocked(t.Container); err != nil {
		return Region{}, err
	}
	if err := checkIndicesLocked(t.Container, indices); err != nil {
		return Region{}, err
	}
	return Region{
		Collection:  c.id,
		Table:       t.id,
		Indices:     slices.Clone(indices),
		Description: description,
	}, nil
}

func checkIndicesLocked(target *Container, indices []int) error {
	for _, i := range indices {
		if err := checkRowLocked(target, i); err != nil {
			return err
		}
	}
	return nil
}

// regionLocked validates a region value for a field whose rows must come
// from a table of targetType.
func (c *Collection) regionLocked(targetType string, v any, lenient bool) (Region, error) {
	var r Region
	switch x := v.(type) {
	case Region:
		r = x.clone()
	case *Region:
		if x == nil {
			return Region{}, fmt.Errorf("%w: nil region", types.ErrValueTypeMismatch)
		}
		r = x.clone()
	default:
		return Region{}, fmt.Errorf("%w: %T is not a region", types.ErrValueTypeMismatch, v)
	}
	if r.Collection == "" {
		r.Collection = c.id
	}
	if r.Collection != c.id {
		if !c.allowExternal {
			return Region{}, fmt.Errorf("%w: region of collection %s", types.ErrExternalReferenceUnsupported, r.Collection)
		}
		return r, nil
	}

	target, ok := c.containers[r.Table]
	if !ok {
		if lenient {
			return r, nil
		}
		return Region{}, fmt.Errorf("%w: table %s", types.ErrDanglingReference, r.Table)
	}
	if !target.schema.IsA(targetType) {
		return Region{}, fmt.Errorf("%w: %s is not a %s", types.ErrReferenceTypeMismatch, target.schema.Ident(), targetType)
	}
	if target.table == nil {
		return Region{}, fmt.Errorf("%w: %s", types.ErrNotATable, target.describe())
	}
	if err := checkIndicesLocked(target, r.Indices); err != nil {
		return Region{}, err
	}
	return r, nil
}

// ResolveRegion returns the table a region selects from, re-checking that
// the table still exists and every index is still in range.
func (c *Collection) ResolveRegion(r Region) (*Table, []int, error) {
	tc, err := c.collectionFor(r.Collection)
	if err != nil {
		return nil, nil, err
	}

	tc.mu.RLock()
	defer tc.mu.RUnlock()

	target, ok := tc.containers[r.Table]
	if !ok {
		return nil, nil, fmt.Errorf("%w: table %s", types.ErrDanglingReference, r.Table)
	}
	if target.table == nil {
		return nil, nil, fmt.Errorf("%w: %s", types.ErrNotATable, target.describe())
	}
	if err := checkIndicesLocked(target, r.Indices); err != nil {
		return nil, nil, err
	}
	return &Table{Container: target}, slices.Clone(r.Indices), nil
}

// RegionRows returns the selected rows in region order.
func (c *Collection) RegionRows(r Region) ([]map[string]any, error) {
	t, indices, err := c.ResolveRegion(r)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(indices))
	for _, i := range indices {
		row, err := t.Row(i)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Regions returns the region fields set on ct.
func (ct *Container) Regions() map[string]Region {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()
	out := make(map[string]Region, len(ct.regions))
	for k, v := range ct.regions {
		out[k] = v.clone()
	}
	return out
}
