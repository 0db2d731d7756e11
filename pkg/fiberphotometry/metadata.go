package fiberphotometry

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/neurodata/pkg/model"
)

// NWBFile is the root of a recording session.
type NWBFile struct{ *model.Container }

// NewNWBFile creates a session root and registers it as a root of c.
func NewNWBFile(c *model.Collection, identifier, sessionDescription string, start time.Time) (*NWBFile, error) {
	ct, err := c.InstantiateNamed(TypeNWBFile, "root", map[string]any{
		"identifier":          identifier,
		"session_description": sessionDescription,
		"session_start_time":  start,
	})
	if err != nil {
		return nil, err
	}
	if err := c.AddRoot(ct); err != nil {
		return nil, err
	}
	return &NWBFile{ct}, nil
}

// AddDevice adds a device to the file.
func (f *NWBFile) AddDevice(device *model.Container) error {
	return f.AddChild(device)
}

// AddAcquisition adds acquired data such as a table or a series.
func (f *NWBFile) AddAcquisition(ct *model.Container) error {
	return f.AddChild(ct)
}

// AddLabMetaData adds lab metadata such as a FiberPhotometry container.
func (f *NWBFile) AddLabMetaData(ct *model.Container) error {
	return f.AddChild(ct)
}

// FiberPhotometry is the lab metadata container that owns the fiber
// photometry table and, optionally, the indicators, viruses and virus
// injections of the session.
type FiberPhotometry struct{ *model.Container }

// FiberPhotometryConfig lists what a FiberPhotometry container owns. Only
// Table is required.
type FiberPhotometryConfig struct {
	Table           *FiberPhotometryTable
	Indicators      []*Indicator
	Viruses         []*ViralVector
	VirusInjections []*ViralVectorInjection
}

// NewFiberPhotometry creates the lab metadata container and attaches the
// given children. The table must be named fiber_photometry_table or left
// unnamed, in which case it takes that name.
func NewFiberPhotometry(c *model.Collection, name string, cfg FiberPhotometryConfig) (*FiberPhotometry, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("fiber photometry %s: table is required", name)
	}
	ct, err := c.InstantiateNamed(TypeFiberPhotometry, name, nil)
	if err != nil {
		return nil, err
	}
	fp := &FiberPhotometry{ct}
	if err := fp.AddChild(cfg.Table.Container); err != nil {
		_ = c.Remove(ct)
		return nil, err
	}
	// Children attached before a failure stay attached.
	if err := fp.attachGroups(cfg); err != nil {
		return nil, err
	}
	return fp, nil
}

func (fp *FiberPhotometry) attachGroups(cfg FiberPhotometryConfig) error {
	c := fp.Collection()
	group := func(ident, name string, members []*model.Container) error {
		if len(members) == 0 {
			return nil
		}
		holder, err := c.InstantiateNamed(ident, name, nil)
		if err != nil {
			return err
		}
		for _, m := range members {
			if err := holder.AddChild(m); err != nil {
				return err
			}
		}
		return fp.AddChild(holder)
	}
	if err := group(TypeFiberPhotometryIndicators, "fiber_photometry_indicators", containers(cfg.Indicators)); err != nil {
		return err
	}
	if err := group(TypeFiberPhotometryViruses, "fiber_photometry_viruses", containers(cfg.Viruses)); err != nil {
		return err
	}
	return group(TypeFiberPhotometryVirusInjections, "fiber_photometry_virus_injections", containers(cfg.VirusInjections))
}

// Table returns the fiber photometry table.
func (fp *FiberPhotometry) Table() (*FiberPhotometryTable, error) {
	ct, ok := fp.Child("fiber_photometry_table")
	if !ok {
		return nil, fmt.Errorf("%s has no fiber_photometry_table", fp.Name())
	}
	return AsFiberPhotometryTable(ct)
}

// Indicators returns the indicators listed in the metadata.
func (fp *FiberPhotometry) Indicators() []*Indicator {
	holder, ok := fp.Child("fiber_photometry_indicators")
	if !ok {
		return nil
	}
	var out []*Indicator
	for _, ct := range holder.Children() {
		out = append(out, &Indicator{ct})
	}
	return out
}

func containers[W interface{ base() *model.Container }](ws []W) []*model.Container {
	out := make([]*model.Container, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.base())
	}
	return out
}

func (i *Indicator) base() *model.Container            { return i.Container }
func (v *ViralVector) base() *model.Container          { return v.Container }
func (v *ViralVectorInjection) base() *model.Container { return v.Container }
