package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// EffectiveSchema is the flattened view of a type after merging its own
// fields with those of every ancestor. It is computed once per type and
// never changes.
type EffectiveSchema struct {
	// Type is the leaf type this schema describes.
	Type *types.TypeSpec

	// Lineage lists the type's ancestors root first, ending with Type.
	Lineage []*types.TypeSpec

	// Table is set when the type or any ancestor is a table type.
	Table bool

	fields []types.FieldSpec
	index  map[string]int
	groups []types.GroupSpec
	idents map[string]bool
}

// Field returns the merged declaration of a field.
func (s *EffectiveSchema) Field(name string) (types.FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return types.FieldSpec{}, false
	}
	return s.fields[i], true
}

// Fields returns every merged field in inheritance order: ancestor fields
// first, in their declaration order, then fields new to each descendant.
func (s *EffectiveSchema) Fields() []types.FieldSpec {
	return append([]types.FieldSpec(nil), s.fields...)
}

// Values returns the attribute and dataset fields.
func (s *EffectiveSchema) Values() []types.FieldSpec {
	return lo.Filter(s.fields, func(f types.FieldSpec, _ int) bool {
		return f.Kind != types.FieldColumn
	})
}

// Columns returns the declared table columns.
func (s *EffectiveSchema) Columns() []types.FieldSpec {
	return lo.Filter(s.fields, func(f types.FieldSpec, _ int) bool {
		return f.Kind == types.FieldColumn
	})
}

// Groups returns the merged child constraints.
func (s *EffectiveSchema) Groups() []types.GroupSpec {
	return append([]types.GroupSpec(nil), s.groups...)
}

// IsA reports whether the schema's type is the qualified type base or
// descends from it.
func (s *EffectiveSchema) IsA(base string) bool {
	return s.idents[base]
}

// Ident returns the qualified name of the schema's type.
func (s *EffectiveSchema) Ident() string {
	return s.Type.Ident()
}

// resolver computes effective schemas while a namespace is being loaded.
// It sees the registry's committed state plus the pending namespace. The
// caller must hold the registry lock.
type resolver struct {
	reg     *Registry
	pending *loadedNamespace
	out     map[string]*EffectiveSchema
}

// lookup finds typeName from the point of view of namespace.
func (rv *resolver) lookup(typeName, namespace string) (*types.TypeSpec, bool) {
	if namespace == rv.pending.ns.Name {
		if t, ok := rv.pending.byName[typeName]; ok {
			return t, true
		}
		for _, imp := range rv.pending.ns.Imports {
			if t, ok := rv.reg.lookupLocked(typeName, imp, map[string]bool{namespace: true}); ok {
				return t, true
			}
		}
		return nil, false
	}
	return rv.reg.lookupLocked(typeName, namespace, nil)
}

func (rv *resolver) cached(ident string) (*EffectiveSchema, bool) {
	if eff, ok := rv.out[ident]; ok {
		return eff, true
	}
	eff, ok := rv.reg.effective[ident]
	return eff, ok
}

// resolve walks the ancestor chain of t root to leaf and merges fields.
func (rv *resolver) resolve(t *types.TypeSpec) (*EffectiveSchema, error) {
	if eff, ok := rv.cached(t.Ident()); ok {
		return eff, nil
	}

	lineage, err := rv.lineage(t)
	if err != nil {
		return nil, err
	}

	eff := &EffectiveSchema{
		Type:    t,
		Lineage: lineage,
		index:   make(map[string]int),
		idents:  make(map[string]bool, len(lineage)),
	}
	groupIndex := make(map[string]int)

	for _, anc := range lineage {
		eff.idents[anc.Ident()] = true
		if anc.Table {
			eff.Table = true
		}
		for _, f := range anc.Fields() {
			f, err := rv.qualifyField(anc, f)
			if err != nil {
				return nil, err
			}
			i, inherited := eff.index[f.Name]
			if !inherited {
				eff.index[f.Name] = len(eff.fields)
				eff.fields = append(eff.fields, f)
				continue
			}
			merged, err := mergeField(eff.fields[i], f)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", anc.Ident(), f.Name, err)
			}
			eff.fields[i] = merged
		}
		for _, g := range anc.Groups {
			g, err := rv.qualifyGroup(anc, g)
			if err != nil {
				return nil, err
			}
			i, inherited := groupIndex[g.Key()]
			if !inherited {
				groupIndex[g.Key()] = len(eff.groups)
				eff.groups = append(eff.groups, g)
				continue
			}
			merged, err := mergeGroup(eff.groups[i], g)
			if err != nil {
				return nil, fmt.Errorf("%s group %s: %w", anc.Ident(), g.Key(), err)
			}
			eff.groups[i] = merged
		}
	}

	rv.out[t.Ident()] = eff
	return eff, nil
}

// lineage returns t's ancestors root first. A type that appears twice in
// its own chain fails with ErrCyclicInheritance.
func (rv *resolver) lineage(t *types.TypeSpec) ([]*types.TypeSpec, error) {
	var chain []*types.TypeSpec
	seen := make(map[string]bool)
	for cur := t; cur != nil; {
		if seen[cur.Ident()] {
			names := lo.Map(chain, func(s *types.TypeSpec, _ int) string { return s.Ident() })
			return nil, fmt.Errorf("%w: %s", types.ErrCyclicInheritance, strings.Join(append(names, cur.Ident()), " -> "))
		}
		seen[cur.Ident()] = true
		chain = append(chain, cur)

		if cur.Parent == "" {
			break
		}
		parent, ok := rv.lookup(cur.Parent, cur.Namespace)
		if !ok {
			return nil, fmt.Errorf("%w: parent %s of %s", types.ErrTypeNotFound, cur.Parent, cur.Ident())
		}
		cur = parent
	}
	slices.Reverse(chain)
	return chain, nil
}

// qualifyField rewrites a field's target type to its qualified name so
// comparisons across namespaces are exact.
func (rv *resolver) qualifyField(owner *types.TypeSpec, f types.FieldSpec) (types.FieldSpec, error) {
	if f.TargetType == "" {
		return f, nil
	}
	target, ok := rv.lookup(f.TargetType, owner.Namespace)
	if !ok {
		return f, fmt.Errorf("%w: target %s of %s.%s", types.ErrTypeNotFound, f.TargetType, owner.Ident(), f.Name)
	}
	f.TargetType = target.Ident()
	return f, nil
}

func (rv *resolver) qualifyGroup(owner *types.TypeSpec, g types.GroupSpec) (types.GroupSpec, error) {
	target, ok := rv.lookup(g.Type, owner.Namespace)
	if !ok {
		return g, fmt.Errorf("%w: group type %s of %s", types.ErrTypeNotFound, g.Type, owner.Ident())
	}
	g.Type = target.Ident()
	return g, nil
}

// mergeField applies a descendant's redefinition of an inherited field.
// Allowed: making an optional field required, bounding an unbounded
// dimension, adding a fixed value. Anything else is ErrSchemaConflict.
func mergeField(base, over types.FieldSpec) (types.FieldSpec, error) {
	if base.Kind != over.Kind {
		return base, fmt.Errorf("%w: redefined %s as %s", types.ErrSchemaConflict, base.Kind, over.Kind)
	}
	if base.ValueType != over.ValueType {
		return base, fmt.Errorf("%w: dtype %s changed to %s", types.ErrSchemaConflict, base.ValueType, over.ValueType)
	}
	if base.TargetType != over.TargetType {
		return base, fmt.Errorf("%w: target type %s changed to %s", types.ErrSchemaConflict, base.TargetType, over.TargetType)
	}
	if !over.Shape.Narrows(base.Shape) {
		return base, fmt.Errorf("%w: shape %s does not narrow %s", types.ErrSchemaConflict, over.Shape, base.Shape)
	}
	if base.Required && !over.Required {
		return base, fmt.Errorf("%w: required field made optional", types.ErrSchemaConflict)
	}

	merged := over
	if over.Doc == "" {
		merged.Doc = base.Doc
	}
	switch {
	case base.FixedValue == nil:
	case over.FixedValue == nil:
		merged.FixedValue = base.FixedValue
	case !reflect.DeepEqual(base.FixedValue, over.FixedValue):
		return base, fmt.Errorf("%w: fixed value %v changed to %v", types.ErrSchemaConflict, base.FixedValue, over.FixedValue)
	}
	if merged.FixedValue != nil {
		// The inherited fixed value must still fit a narrowed shape.
		if _, err := types.NormalizeValue(merged.ValueType, merged.Shape, merged.FixedValue); err != nil {
			return base, fmt.Errorf("%w: fixed value does not fit: %v", types.ErrSchemaConflict, err)
		}
	}
	return merged, nil
}

// mergeGroup applies a descendant's redefinition of a child constraint.
// Only going from many children to one is a narrowing.
func mergeGroup(base, over types.GroupSpec) (types.GroupSpec, error) {
	if base.Type != over.Type {
		return base, fmt.Errorf("%w: child type %s changed to %s", types.ErrSchemaConflict, base.Type, over.Type)
	}
	if !base.Multiple && over.Multiple {
		return base, fmt.Errorf("%w: single child widened to many", types.ErrSchemaConflict)
	}
	merged := over
	if over.Doc == "" {
		merged.Doc = base.Doc
	}
	return merged, nil
}
