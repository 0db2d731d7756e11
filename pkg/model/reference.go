package model

import (
	"fmt"

	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// NoRow marks a reference to a whole container rather than a table row.
const NoRow = -1

// Reference is a non-owning pointer to a container, optionally narrowed to
// one row of a table. It stays valid by identity: if the target is removed
// the reference dangles instead of following it.
type Reference struct {
	Collection ID     `json:"collection"`
	Target     ID     `json:"target"`
	TargetType string `json:"target_type"`
	Row        int    `json:"row"`
}

// RowRef asks for a reference to one row of a table.
type RowRef struct {
	Table *Table
	Row   int
}

// IsRow reports whether the reference addresses a single table row.
func (r Reference) IsRow() bool { return r.Row != NoRow }

// Link points the reference field of source at target, which may be a
// *Container, a *Table, or a RowRef. The target's type must be the field's
// declared target type or a descendant of it.
func (c *Collection) Link(source *Container, field string, target any) (Reference, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMemberLocked(source); err != nil {
		return Reference{}, err
	}
	f, ok := source.schema.Field(field)
	if !ok || f.Kind == types.FieldColumn {
		return Reference{}, fmt.Errorf("%w: %s has no attribute %q", types.ErrUnknownAttribute, source.schema.Ident(), field)
	}
	if f.ValueType != types.ValueTypeReference {
		return Reference{}, fmt.Errorf("%w: %s is %s, not a reference", types.ErrValueTypeMismatch, field, f.ValueType)
	}
	if err := c.assignLocked(source, field, target, false); err != nil {
		return Reference{}, err
	}
	return source.refs[field], nil
}

// referenceLocked turns a link value into a Reference checked against the
// declared target type. Targets in other collections are only checked for
// type; whether they still exist is decided when they are resolved.
func (c *Collection) referenceLocked(targetType string, v any, lenient bool) (Reference, error) {
	var (
		target *Container
		row    = NoRow
	)
	switch x := v.(type) {
	case *Container:
		target = x
	case *Table:
		if x != nil {
			target = x.Container
		}
	case RowRef:
		if x.Table != nil {
			target = x.Table.Container
		}
		row = x.Row
	case Reference:
		return c.checkReferenceLocked(targetType, x, lenient)
	default:
		return Reference{}, fmt.Errorf("%w: %T is not a reference target", types.ErrValueTypeMismatch, v)
	}
	if target == nil {
		return Reference{}, fmt.Errorf("%w: nil target", types.ErrDanglingReference)
	}
	if !target.schema.IsA(targetType) {
		return Reference{}, fmt.Errorf("%w: %s is not a %s", types.ErrReferenceTypeMismatch, target.schema.Ident(), targetType)
	}

	ref := Reference{Collection: target.coll.id, Target: target.id, TargetType: targetType, Row: row}
	if target.coll != c {
		if !c.allowExternal {
			return Reference{}, fmt.Errorf("%w: %s lives in collection %s", types.ErrExternalReferenceUnsupported, target.describe(), target.coll.id)
		}
		c.external[target.coll.id] = target.coll
		return ref, nil
	}
	if target.removed {
		return Reference{}, fmt.Errorf("%w: %s was removed", types.ErrDanglingReference, target.describe())
	}
	if row != NoRow {
		if err := checkRowLocked(target, row); err != nil {
			return Reference{}, err
		}
	}
	return ref, nil
}

// checkReferenceLocked validates an already built reference, as found in
// a snapshot or copied from another container.
func (c *Collection) checkReferenceLocked(targetType string, ref Reference, lenient bool) (Reference, error) {
	if ref.Collection == "" {
		ref.Collection = c.id
	}
	if ref.Collection != c.id {
		if !c.allowExternal {
			return Reference{}, fmt.Errorf("%w: reference into collection %s", types.ErrExternalReferenceUnsupported, ref.Collection)
		}
		ref.TargetType = targetType
		return ref, nil
	}

	target, ok := c.containers[ref.Target]
	if !ok {
		if lenient {
			ref.TargetType = targetType
			return ref, nil
		}
		return Reference{}, fmt.Errorf("%w: container %s", types.ErrDanglingReference, ref.Target)
	}
	if !target.schema.IsA(targetType) {
		return Reference{}, fmt.Errorf("%w: %s is not a %s", types.ErrReferenceTypeMismatch, target.schema.Ident(), targetType)
	}
	if ref.Row != NoRow {
		if err := checkRowLocked(target, ref.Row); err != nil {
			return Reference{}, err
		}
	}
	ref.TargetType = targetType
	return ref, nil
}

func checkRowLocked(target *Container, row int) error {
	if target.table == nil {
		return fmt.Errorf("%w: %s", types.ErrNotATable, target.describe())
	}
	if row < 0 || row >= target.table.rows {
		return fmt.Errorf("%w: row %d of %s with %d rows", types.ErrRegionIndexOutOfRange, row, target.describe(), target.table.rows)
	}
	return nil
}

// Resolve follows ref to its target. A target that was removed, or that
// lives in a collection not bound with BindExternal, is dangling.
func (c *Collection) Resolve(ref Reference) (*Container, error) {
	tc, err := c.collectionFor(ref.Collection)
	if err != nil {
		return nil, err
	}

	tc.mu.RLock()
	defer tc.mu.RUnlock()

	target, ok := tc.containers[ref.Target]
	if !ok {
		return nil, fmt.Errorf("%w: container %s", types.ErrDanglingReference, ref.Target)
	}
	if ref.TargetType != "" && !target.schema.IsA(ref.TargetType) {
		return nil, fmt.Errorf("%w: %s is not a %s", types.ErrReferenceTypeMismatch, target.schema.Ident(), ref.TargetType)
	}
	if ref.Row != NoRow {
		if err := checkRowLocked(target, ref.Row); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// ResolveRow follows a row reference and returns the row's cells.
func (c *Collection) ResolveRow(ref Reference) (map[string]any, error) {
	if ref.Row == NoRow {
		return nil, fmt.Errorf("%w: reference to %s has no row", types.ErrRegionIndexOutOfRange, ref.Target)
	}
	target, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	t, err := AsTable(target)
	if err != nil {
		return nil, err
	}
	return t.Row(ref.Row)
}

// collectionFor returns c or the bound collection with the given ID.
func (c *Collection) collectionFor(id ID) (*Collection, error) {
	if id == "" || id == c.id {
		return c, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.allowExternal {
		return nil, fmt.Errorf("%w: collection %s", types.ErrExternalReferenceUnsupported, id)
	}
	ext, ok := c.external[id]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s is not bound", types.ErrDanglingReference, id)
	}
	return ext, nil
}

// References returns the reference fields set on ct.
func (ct *Container) References() map[string]Reference {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()
	out := make(map[string]Reference, len(ct.refs))
	for k, v := range ct.refs {
		out[k] = v
	}
	return out
}
