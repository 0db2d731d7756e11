package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Dim is the size of one array dimension. Unbounded accepts any length.
type Dim int

// Unbounded marks a dimension without a fixed length.
const Unbounded Dim = -1

// Accepts reports whether an array of length n fits this dimension.
func (d Dim) Accepts(n int) bool {
	return d == Unbounded || int(d) == n
}

func (d Dim) String() string {
	if d == Unbounded {
		return "unbounded"
	}
	return strconv.Itoa(int(d))
}

// Shape is the ordered list of dimensions of a value. A nil or empty
// shape is a scalar.
type Shape []Dim

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Validate rejects negative dimensions other than Unbounded.
func (s Shape) Validate() error {
	for i, d := range s {
		if d < 0 && d != Unbounded {
			return fmt.Errorf("%w: dimension %d of shape %s is %d", ErrInvalidSpec, i, s, int(d))
		}
	}
	return nil
}

// Narrows reports whether s is equal to or tighter than base: same rank,
// and every bounded dimension of base is kept with the same length.
func (s Shape) Narrows(base Shape) bool {
	if len(s) != len(base) {
		return false
	}
	for i := range s {
		if base[i] != Unbounded && s[i] != base[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Field kinds.
const (
	FieldAttribute = "attribute"
	FieldDataset   = "dataset"
	FieldColumn    = "column"
)

// FieldSpec declares one attribute, dataset, or table column of a type.
type FieldSpec struct {
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"`
	Doc        string `json:"doc,omitempty" yaml:"doc,omitempty"`
	ValueType  string `json:"dtype" yaml:"dtype"`
	TargetType string `json:"target_type,omitempty" yaml:"target_type,omitempty"`
	Shape      Shape  `json:"shape,omitempty" yaml:"shape,omitempty"`
	Required   bool   `json:"required" yaml:"required"`
	// FixedValue is nil when the field has no fixed value. It is kept
	// normalized (see NormalizeValue).
	FixedValue any `json:"value,omitempty" yaml:"value,omitempty"`
}

// IsLink reports whether the field holds a reference or a region.
func (f FieldSpec) IsLink() bool {
	return IsLinkValueType(f.ValueType)
}

// Validate checks the field declaration in isolation and normalizes its
// fixed value in place.
func (f *FieldSpec) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: field without name", ErrInvalidSpec)
	}
	if !IsValidValueType(f.ValueType) {
		return fmt.Errorf("%w: field %q has unknown dtype %q", ErrInvalidSpec, f.Name, f.ValueType)
	}
	if err := f.Shape.Validate(); err != nil {
		return fmt.Errorf("field %q: %w", f.Name, err)
	}
	if f.IsLink() {
		if f.TargetType == "" {
			return fmt.Errorf("%w: %s field %q needs a target type", ErrInvalidSpec, f.ValueType, f.Name)
		}
		if f.FixedValue != nil {
			return fmt.Errorf("%w: %s field %q cannot be fixed", ErrInvalidSpec, f.ValueType, f.Name)
		}
		return nil
	}
	if f.TargetType != "" {
		return fmt.Errorf("%w: %s field %q cannot declare a target type", ErrInvalidSpec, f.ValueType, f.Name)
	}
	if f.FixedValue != nil {
		v, err := NormalizeValue(f.ValueType, f.Shape, f.FixedValue)
		if err != nil {
			return fmt.Errorf("fixed value of %q: %w", f.Name, err)
		}
		f.FixedValue = v
	}
	return nil
}

// GroupSpec constrains the children a container of this type may own.
// When Name is set the child is bound to that name.
type GroupSpec struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Type     string `json:"neurodata_type_inc" yaml:"neurodata_type_inc"`
	Doc      string `json:"doc,omitempty" yaml:"doc,omitempty"`
	Multiple bool   `json:"multiple,omitempty" yaml:"multiple,omitempty"`
}

// Key identifies the constraint for inheritance merging.
func (g GroupSpec) Key() string {
	if g.Name != "" {
		return g.Name
	}
	return "<" + g.Type + ">"
}

// TypeSpec describes one type's own, non-inherited fields and its parent.
// TypeSpecs are immutable once their namespace is loaded.
type TypeSpec struct {
	Name      string `json:"neurodata_type_def"`
	Namespace string `json:"namespace"`
	// Parent names the parent type, looked up from this type's namespace.
	Parent     string      `json:"neurodata_type_inc,omitempty"`
	Doc        string      `json:"doc,omitempty"`
	Table      bool        `json:"table,omitempty"`
	Attributes []FieldSpec `json:"attributes,omitempty"`
	Datasets   []FieldSpec `json:"datasets,omitempty"`
	Columns    []FieldSpec `json:"columns,omitempty"`
	Groups     []GroupSpec `json:"groups,omitempty"`
}

// Ident returns the namespace-qualified type name.
func (t *TypeSpec) Ident() string {
	return QualifiedName(t.Namespace, t.Name)
}

// QualifiedName joins a namespace and a type name.
func QualifiedName(namespace, name string) string {
	return namespace + ":" + name
}

// Fields returns the type's own attributes, datasets, and columns in
// declaration order.
func (t *TypeSpec) Fields() []FieldSpec {
	out := make([]FieldSpec, 0, len(t.Attributes)+len(t.Datasets)+len(t.Columns))
	out = append(out, t.Attributes...)
	out = append(out, t.Datasets...)
	out = append(out, t.Columns...)
	return out
}

// Validate checks names are unique and every field is well formed. Kinds
// are filled in from the list a field was declared in.
func (t *TypeSpec) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: type without name", ErrInvalidSpec)
	}
	if t.Parent == t.Name {
		return fmt.Errorf("%w: %s extends itself", ErrCyclicInheritance, t.Name)
	}
	seen := make(map[string]string)
	check := func(fields []FieldSpec, kind string) error {
		for i := range fields {
			f := &fields[i]
			f.Kind = kind
			if err := f.Validate(); err != nil {
				return fmt.Errorf("type %s: %w", t.Name, err)
			}
			if prev, dup := seen[f.Name]; dup {
				return fmt.Errorf("%w: type %s declares %q as both %s and %s", ErrInvalidSpec, t.Name, f.Name, prev, kind)
			}
			seen[f.Name] = kind
		}
		return nil
	}
	if err := check(t.Attributes, FieldAttribute); err != nil {
		return err
	}
	if err := check(t.Datasets, FieldDataset); err != nil {
		return err
	}
	if err := check(t.Columns, FieldColumn); err != nil {
		return err
	}
	if len(t.Columns) > 0 && !t.Table {
		// Columns imply a table type.
		t.Table = true
	}
	groups := make(map[string]bool)
	for _, g := range t.Groups {
		if g.Type == "" {
			return fmt.Errorf("%w: type %s has a group without type", ErrInvalidSpec, t.Name)
		}
		if groups[g.Key()] {
			return fmt.Errorf("%w: type %s repeats group %s", ErrInvalidSpec, t.Name, g.Key())
		}
		groups[g.Key()] = true
	}
	return nil
}

// Namespace is a versioned collection of type definitions.
type Namespace struct {
	Name    string     `json:"name"`
	Version string     `json:"version,omitempty"`
	Doc     string     `json:"doc,omitempty"`
	Imports []string   `json:"imports,omitempty"`
	Types   []TypeSpec `json:"types"`
}

// Validate checks every type and stamps it with the namespace name.
func (n *Namespace) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("%w: namespace without name", ErrInvalidSpec)
	}
	names := make(map[string]bool, len(n.Types))
	for i := range n.Types {
		t := &n.Types[i]
		t.Namespace = n.Name
		if err := t.Validate(); err != nil {
			return fmt.Errorf("namespace %s: %w", n.Name, err)
		}
		if names[t.Name] {
			return fmt.Errorf("%w: namespace %s defines %s twice", ErrInvalidSpec, n.Name, t.Name)
		}
		names[t.Name] = true
	}
	return nil
}
