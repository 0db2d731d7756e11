package schema

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/neurodata/pkg/types"
)

// NamespaceFileSuffix is appended to a namespace name to find its file.
const NamespaceFileSuffix = ".namespace.yaml"

// YAMLSource reads namespace files named "<name>.namespace.yaml" from a
// directory of an fs.FS, such as an embed.FS or os.DirFS.
type YAMLSource struct {
	FS  fs.FS
	Dir string
}

// Namespace reads and parses the file for name.
func (s YAMLSource) Namespace(name string) (types.Namespace, error) {
	p := path.Join(s.Dir, name+NamespaceFileSuffix)
	data, err := fs.ReadFile(s.FS, p)
	if err != nil {
		return types.Namespace{}, fmt.Errorf("%w: reading %s: %w", types.ErrNamespaceNotFound, p, err)
	}
	ns, err := ParseNamespaceYAML(data)
	if err != nil {
		return types.Namespace{}, fmt.Errorf("parsing %s: %w", p, err)
	}
	if ns.Name != name {
		return types.Namespace{}, fmt.Errorf("%w: %s defines namespace %q", types.ErrInvalidSpec, p, ns.Name)
	}
	return ns, nil
}

// yamlNamespace mirrors the namespace file layout.
type yamlNamespace struct {
	Name    string     `yaml:"name"`
	Version string     `yaml:"version"`
	Doc     string     `yaml:"doc"`
	Imports []string   `yaml:"imports"`
	Types   []yamlType `yaml:"types"`
}

type yamlType struct {
	Def        string      `yaml:"neurodata_type_def"`
	Inc        string      `yaml:"neurodata_type_inc"`
	Doc        string      `yaml:"doc"`
	Table      bool        `yaml:"table"`
	Attributes []yamlField `yaml:"attributes"`
	Datasets   []yamlField `yaml:"datasets"`
	Columns    []yamlField `yaml:"columns"`
	Groups     []yamlGroup `yaml:"groups"`
}

type yamlField struct {
	Name string `yaml:"name"`
	Doc  string `yaml:"doc"`
	// Dtype is either a scalar type name or a mapping
	// {target_type: T, reftype: object|region}.
	Dtype    yaml.Node `yaml:"dtype"`
	Shape    []*int    `yaml:"shape"`
	Required *bool     `yaml:"required"`
	Value    any       `yaml:"value"`
}

type yamlRefDtype struct {
	TargetType string `yaml:"target_type"`
	Reftype    string `yaml:"reftype"`
}

type yamlGroup struct {
	Name     string `yaml:"name"`
	Inc      string `yaml:"neurodata_type_inc"`
	Doc      string `yaml:"doc"`
	Quantity string `yaml:"quantity"`
}

// ParseNamespaceYAML decodes one namespace document. Unknown keys are
// rejected. Fields are required unless they say required: false, and a
// null shape dimension is unbounded.
func ParseNamespaceYAML(data []byte) (types.Namespace, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc yamlNamespace
	if err := dec.Decode(&doc); err != nil {
		return types.Namespace{}, fmt.Errorf("%w: %w", types.ErrInvalidSpec, err)
	}

	ns := types.Namespace{
		Name:    doc.Name,
		Version: doc.Version,
		Doc:     doc.Doc,
		Imports: doc.Imports,
		Types:   make([]types.TypeSpec, 0, len(doc.Types)),
	}
	for _, yt := range doc.Types {
		t := types.TypeSpec{
			Name:   yt.Def,
			Parent: yt.Inc,
			Doc:    yt.Doc,
			Table:  yt.Table,
		}
		var err error
		if t.Attributes, err = convertFields(yt.Attributes, types.FieldAttribute); err != nil {
			return types.Namespace{}, fmt.Errorf("type %s: %w", yt.Def, err)
		}
		if t.Datasets, err = convertFields(yt.Datasets, types.FieldDataset); err != nil {
			return types.Namespace{}, fmt.Errorf("type %s: %w", yt.Def, err)
		}
		if t.Columns, err = convertFields(yt.Columns, types.FieldColumn); err != nil {
			return types.Namespace{}, fmt.Errorf("type %s: %w", yt.Def, err)
		}
		for _, yg := range yt.Groups {
			g, err := convertGroup(yg)
			if err != nil {
				return types.Namespace{}, fmt.Errorf("type %s: %w", yt.Def, err)
			}
			t.Groups = append(t.Groups, g)
		}
		ns.Types = append(ns.Types, t)
	}
	return ns, nil
}

func convertFields(in []yamlField, kind string) ([]types.FieldSpec, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]types.FieldSpec, 0, len(in))
	for _, yf := range in {
		f := types.FieldSpec{
			Name:       yf.Name,
			Kind:       kind,
			Doc:        yf.Doc,
			Required:   yf.Required == nil || *yf.Required,
			FixedValue: yf.Value,
		}
		switch yf.Dtype.Kind {
		case yaml.ScalarNode:
			f.ValueType = yf.Dtype.Value
		case yaml.MappingNode:
			var ref yamlRefDtype
			if err := yf.Dtype.Decode(&ref); err != nil {
				return nil, fmt.Errorf("%w: dtype of %s: %w", types.ErrInvalidSpec, yf.Name, err)
			}
			switch ref.Reftype {
			case "", "object":
				f.ValueType = types.ValueTypeReference
			case "region":
				f.ValueType = types.ValueTypeRegion
			default:
				return nil, fmt.Errorf("%w: %s has unknown reftype %q", types.ErrInvalidSpec, yf.Name, ref.Reftype)
			}
			f.TargetType = ref.TargetType
		case 0:
			return nil, fmt.Errorf("%w: %s has no dtype", types.ErrInvalidSpec, yf.Name)
		default:
			return nil, fmt.Errorf("%w: %s has a malformed dtype", types.ErrInvalidSpec, yf.Name)
		}
		if yf.Shape != nil {
			f.Shape = make(types.Shape, len(yf.Shape))
			for i, d := range yf.Shape {
				if d == nil {
					f.Shape[i] = types.Unbounded
				} else {
					f.Shape[i] = types.Dim(*d)
				}
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func convertGroup(yg yamlGroup) (types.GroupSpec, error) {
	g := types.GroupSpec{Name: yg.Name, Type: yg.Inc, Doc: yg.Doc}
	switch yg.Quantity {
	case "", "1", "?":
	case "*", "+":
		g.Multiple = true
	default:
		return g, fmt.Errorf("%w: group %s has unknown quantity %q", types.ErrInvalidSpec, g.Key(), yg.Quantity)
	}
	return g, nil
}
