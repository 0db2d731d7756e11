// Package fiberphotometry provides typed access to the fiber photometry
// extension: the devices along a fiber's light path, the table that ties
// them to recorded fibers, and the series recorded through them.
//
// The types are plain wrappers over model containers, so a collection
// built here can be stored and read back with any model.Store and wrapped
// again with the As functions.
package fiberphotometry

import (
	"embed"
	"fmt"
	"reflect"

	"github.com/samber/lo"

	"github.com/mesh-intelligence/neurodata/pkg/model"
	"github.com/mesh-intelligence/neurodata/pkg/schema"
	"github.com/mesh-intelligence/neurodata/pkg/types"
)

//go:embed spec/*.namespace.yaml
var specFS embed.FS

// Namespace names.
const (
	CoreNamespace         = "core"
	OphysDevicesNamespace = "ndx-ophys-devices"
	Namespace             = "ndx-fiber-photometry"
)

// Qualified type names.
var (
	TypeNWBFile = types.QualifiedName(CoreNamespace, "NWBFile")

	TypeIndicator            = types.QualifiedName(OphysDevicesNamespace, "Indicator")
	TypeOpticalFiber         = types.QualifiedName(OphysDevicesNamespace, "OpticalFiber")
	TypeExcitationSource     = types.QualifiedName(OphysDevicesNamespace, "ExcitationSource")
	TypePhotodetector        = types.QualifiedName(OphysDevicesNamespace, "Photodetector")
	TypeDichroicMirror       = types.QualifiedName(OphysDevicesNamespace, "DichroicMirror")
	TypeOpticalFilter        = types.QualifiedName(OphysDevicesNamespace, "OpticalFilter")
	TypeViralVector          = types.QualifiedName(OphysDevicesNamespace, "ViralVector")
	TypeViralVectorInjection = types.QualifiedName(OphysDevicesNamespace, "ViralVectorInjection")

	TypeFiberPhotometryTable           = types.QualifiedName(Namespace, "FiberPhotometryTable")
	TypeFiberPhotometryResponseSeries  = types.QualifiedName(Namespace, "FiberPhotometryResponseSeries")
	TypeCommandedVoltageSeries         = types.QualifiedName(Namespace, "CommandedVoltageSeries")
	TypeMultiCommandedVoltage          = types.QualifiedName(Namespace, "MultiCommandedVoltage")
	TypeFiberPhotometry                = types.QualifiedName(Namespace, "FiberPhotometry")
	TypeFiberPhotometryIndicators      = types.QualifiedName(Namespace, "FiberPhotometryIndicators")
	TypeFiberPhotometryViruses         = types.QualifiedName(Namespace, "FiberPhotometryViruses")
	TypeFiberPhotometryVirusInjections = types.QualifiedName(Namespace, "FiberPhotometryVirusInjections")
)

// Source serves the embedded namespace files.
func Source() schema.Source {
	return schema.YAMLSource{FS: specFS, Dir: "spec"}
}

// Load loads the extension namespace and its imports into reg.
func Load(reg *schema.Registry) error {
	return reg.LoadAll(Source(), Namespace)
}

// NewRegistry returns a registry with the extension loaded.
func NewRegistry(opts ...schema.Option) (*schema.Registry, error) {
	reg := schema.NewRegistry(opts...)
	if err := Load(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// present drops zero values so optional fields stay unset.
func present(attrs map[string]any) map[string]any {
	return lo.PickBy(attrs, func(_ string, v any) bool {
		return v != nil && !reflect.ValueOf(v).IsZero()
	})
}

// as checks that ct is an ident.
func as(ct *model.Container, ident string) error {
	if ct == nil {
		return fmt.Errorf("%w: nil container", types.ErrDanglingReference)
	}
	if !ct.IsA(ident) {
		return fmt.Errorf("%w: %s is not a %s", types.ErrReferenceTypeMismatch, ct.Type().Ident(), ident)
	}
	return nil
}

func text(ct *model.Container, name string) string {
	v, _ := ct.GetAttribute(name)
	s, _ := v.(string)
	return s
}

func float(ct *model.Container, name string) float64 {
	v, _ := ct.GetAttribute(name)
	f, _ := v.(float64)
	return f
}

func floats(ct *model.Container, name string) []float64 {
	v, _ := ct.GetAttribute(name)
	return toFloats(v)
}

func toFloats(v any) []float64 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, x := range arr {
		f, _ := x.(float64)
		out = append(out, f)
	}
	return out
}
