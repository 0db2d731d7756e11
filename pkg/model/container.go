package model

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// Container is an instance of a type: a named node holding attribute and
// dataset values, owned by exactly one parent or by the collection.
type Container struct {
	id     ID
	coll   *Collection
	schema *schema.EffectiveSchema
	name   string

	parent   ID
	owned    bool
	group    string // key of the parent's group the container was bound to
	children []ID

	values  map[string]any
	refs    map[string]Reference
	regions map[string]Region
	table   *tableData

	removed bool
}

// Instantiate creates an unowned container of type t named name. Every
// supplied attribute must be declared by t or an ancestor and must fit its
// declaration; fields with a fixed value are filled in, and a missing
// required field fails the call. Nothing is added to the collection on
// error.
func (c *Collection) Instantiate(t *types.TypeSpec, name string, attrs map[string]any) (*Container, error) {
	eff, err := c.registry.Effective(t)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ct := newContainer(c, newID(), eff, name)
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		if attrs[k] == nil {
			continue
		}
		if err := c.assignLocked(ct, k, attrs[k], false); err != nil {
			return nil, fmt.Errorf("instantiating %s %q: %w", eff.Ident(), name, err)
		}
	}
	if err := ct.completeLocked(); err != nil {
		return nil, fmt.Errorf("instantiating %s %q: %w", eff.Ident(), name, err)
	}
	if eff.Table {
		ct.table = newTableData()
		for _, f := range eff.Columns() {
			if f.Required {
				ct.table.add(&column{ColumnDef: columnFromField(f)})
			}
		}
	}

	c.containers[ct.id] = ct
	c.order = append(c.order, ct.id)
	return ct, nil
}

// InstantiateNamed is Instantiate with the type looked up by its
// namespace-qualified name.
func (c *Collection) InstantiateNamed(ident, name string, attrs map[string]any) (*Container, error) {
	t, err := c.registry.Lookup(ident)
	if err != nil {
		return nil, err
	}
	return c.Instantiate(t, name, attrs)
}

func newContainer(c *Collection, id ID, eff *schema.EffectiveSchema, name string) *Container {
	return &Container{
		id:      id,
		coll:    c,
		schema:  eff,
		name:    name,
		values:  make(map[string]any),
		refs:    make(map[string]Reference),
		regions: make(map[string]Region),
	}
}

// completeLocked fills fixed values and checks required fields.
func (ct *Container) completeLocked() error {
	for _, f := range ct.schema.Values() {
		if ct.hasLocked(f.Name) {
			continue
		}
		if f.FixedValue != nil {
			ct.values[f.Name] = f.FixedValue
			continue
		}
		if f.Required {
			return fmt.Errorf("%w: %s", types.ErrMissingRequiredField, f.Name)
		}
	}
	return nil
}

func (ct *Container) hasLocked(name string) bool {
	if _, ok := ct.values[name]; ok {
		return true
	}
	if _, ok := ct.refs[name]; ok {
		return true
	}
	_, ok := ct.regions[name]
	return ok
}

// assignLocked validates v against the field and stores it. The container
// is untouched when validation fails. With lenient set, references whose
// targets no longer exist are kept as they are.
func (c *Collection) assignLocked(ct *Container, name string, v any, lenient bool) error {
	f, ok := ct.schema.Field(name)
	if !ok || f.Kind == types.FieldColumn {
		return fmt.Errorf("%w: %s has no attribute %q", types.ErrUnknownAttribute, ct.schema.Ident(), name)
	}

	switch f.ValueType {
	case types.ValueTypeReference:
		ref, err := c.referenceLocked(f.TargetType, v, lenient)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		ct.refs[name] = ref
	case types.ValueTypeRegion:
		r, err := c.regionLocked(f.TargetType, v, lenient)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		ct.regions[name] = r
	default:
		nv, err := types.NormalizeValue(f.ValueType, f.Shape, v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if f.FixedValue != nil && !reflect.DeepEqual(nv, f.FixedValue) {
			return fmt.Errorf("%w: %s is fixed to %v", types.ErrFixedValueViolation, name, f.FixedValue)
		}
		ct.values[name] = nv
	}
	return nil
}

// ID returns the container identity.
func (ct *Container) ID() ID { return ct.id }

// Collection returns the collection that holds the container.
func (ct *Container) Collection() *Collection { return ct.coll }

// Schema returns the container's effective schema.
func (ct *Container) Schema() *schema.EffectiveSchema { return ct.schema }

// Type returns the container's type.
func (ct *Container) Type() *types.TypeSpec { return ct.schema.Type }

// IsA reports whether the container's type is base or descends from it.
func (ct *Container) IsA(base string) bool { return ct.schema.IsA(base) }

// Name returns the container name.
func (ct *Container) Name() string {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()
	return ct.name
}

// Removed reports whether the container has been destroyed.
func (ct *Container) Removed() bool {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()
	return ct.removed
}

func (ct *Container) describe() string {
	return fmt.Sprintf("%s %q", ct.schema.Ident(), ct.name)
}

// SetAttribute replaces one attribute or dataset value. Setting nil clears
// an optional field.
func (ct *Container) SetAttribute(name string, v any) error {
	c := ct.coll
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkMemberLocked(ct); err != nil {
		return err
	}
	if v != nil {
		return c.assignLocked(ct, name, v, false)
	}

	f, ok := ct.schema.Field(name)
	switch {
	case !ok || f.Kind == types.FieldColumn:
		return fmt.Errorf("%w: %s has no attribute %q", types.ErrUnknownAttribute, ct.schema.Ident(), name)
	case f.FixedValue != nil:
		return fmt.Errorf("%w: %s is fixed to %v", types.ErrFixedValueViolation, name, f.FixedValue)
	case f.Required:
		return fmt.Errorf("%w: %s", types.ErrMissingRequiredField, name)
	}
	delete(ct.values, name)
	delete(ct.refs, name)
	delete(ct.regions, name)
	return nil
}

// GetAttribute returns a field value: the normalized value for data
// fields, a Reference or a Region for link fields, and nil when an
// optional field is unset.
func (ct *Container) GetAttribute(name string) (any, error) {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()

	f, ok := ct.schema.Field(name)
	if !ok || f.Kind == types.FieldColumn {
		return nil, fmt.Errorf("%w: %s has no attribute %q", types.ErrUnknownAttribute, ct.schema.Ident(), name)
	}
	if ref, ok := ct.refs[name]; ok {
		return ref, nil
	}
	if r, ok := ct.regions[name]; ok {
		return r.clone(), nil
	}
	return cloneValue(ct.values[name]), nil
}

// Attributes returns every set field keyed by name.
func (ct *Container) Attributes() map[string]any {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()

	out := make(map[string]any, len(ct.values)+len(ct.refs)+len(ct.regions))
	for k, v := range ct.values {
		out[k] = cloneValue(v)
	}
	for k, v := range ct.refs {
		out[k] = v
	}
	for k, v := range ct.regions {
		out[k] = v.clone()
	}
	return out
}

// Parent returns the owning container, if any.
func (ct *Container) Parent() (*Container, bool) {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()
	p, ok := ct.coll.containers[ct.parent]
	return p, ok
}

// Children returns the owned children in attach order.
func (ct *Container) Children() []*Container {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()
	out := make([]*Container, 0, len(ct.children))
	for _, id := range ct.children {
		out = append(out, ct.coll.containers[id])
	}
	return out
}

// Child returns the child with the given name.
func (ct *Container) Child(name string) (*Container, bool) {
	ct.coll.mu.RLock()
	defer ct.coll.mu.RUnlock()
	for _, id := range ct.children {
		if child := ct.coll.containers[id]; child.name == name {
			return child, true
		}
	}
	return nil, false
}

// AddChild attaches child to ct. See Collection.AttachChild.
func (ct *Container) AddChild(child *Container) error {
	return ct.coll.AttachChild(ct, child)
}

// AttachChild transfers ownership of child to parent. The child must be
// unowned, must match one of the parent's group constraints, and must not
// share a name with a sibling. A group with a fixed name binds an unnamed
// child to that name.
func (c *Collection) AttachChild(parent, child *Container) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachLocked(parent, child)
}

func (c *Collection) attachLocked(parent, child *Container) error {
	if err := c.checkMemberLocked(parent); err != nil {
		return err
	}
	if err := c.checkMemberLocked(child); err != nil {
		return err
	}
	if child.owned {
		return fmt.Errorf("%w: %s already has an owner", types.ErrOwnershipConflict, child.describe())
	}
	for cur := parent; cur != nil; cur = c.containers[cur.parent] {
		if cur == child {
			return fmt.Errorf("%w: %s would own itself", types.ErrOwnershipConflict, child.describe())
		}
		if cur.parent == "" {
			break
		}
	}

	g, name, err := bindGroup(parent, child)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: child of %s needs a name", types.ErrMissingRequiredField, parent.describe())
	}
	for _, id := range parent.children {
		sib := c.containers[id]
		if sib.name == name {
			return fmt.Errorf("%w: %s already has a child %q", types.ErrDuplicateName, parent.describe(), name)
		}
		if !g.Multiple && sib.group == g.Key() {
			return fmt.Errorf("%w: %s holds at most one %s", types.ErrChildTypeMismatch, parent.describe(), g.Type)
		}
	}

	child.name = name
	child.group = g.Key()
	child.parent = parent.id
	child.owned = true
	parent.children = append(parent.children, child.id)
	return nil
}

// bindGroup picks the parent group that accepts child and the name the
// child takes under it. A group whose name matches wins, then a group
// without a name, then a named group that can name an unnamed child.
func bindGroup(parent, child *Container) (types.GroupSpec, string, error) {
	groups := parent.schema.Groups()
	for _, g := range groups {
		if g.Name != "" && g.Name == child.name && child.schema.IsA(g.Type) {
			return g, g.Name, nil
		}
	}
	for _, g := range groups {
		if g.Name == "" && child.schema.IsA(g.Type) {
			return g, child.name, nil
		}
	}
	if child.name == "" {
		for _, g := range groups {
			if g.Name != "" && child.schema.IsA(g.Type) {
				return g, g.Name, nil
			}
		}
	}
	return types.GroupSpec{}, "", fmt.Errorf("%w: %s does not accept %s", types.ErrChildTypeMismatch, parent.describe(), child.describe())
}

// cloneValue copies the nested slices of a normalized array value.
func cloneValue(v any) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(arr))
	for i, x := range arr {
		out[i] = cloneValue(x)
	}
	return out
}
