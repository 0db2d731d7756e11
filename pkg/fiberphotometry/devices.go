package fiberphotometry

import (
	"time"

	"github.com/mesh-intelligence/neurodata/pkg/model"
)

// Zero values in the config structs below leave the optional field unset.

// Indicator is a fluorescent indicator.
type Indicator struct{ *model.Container }

// IndicatorConfig holds the fields of an Indicator.
type IndicatorConfig struct {
	Description              string
	Manufacturer             string
	Label                    string
	InjectionLocation        string
	InjectionCoordinatesInMM []float64
}

// NewIndicator creates an indicator in c.
func NewIndicator(c *model.Collection, name string, cfg IndicatorConfig) (*Indicator, error) {
	ct, err := c.InstantiateNamed(TypeIndicator, name, present(map[string]any{
		"description":                 cfg.Description,
		"manufacturer":                cfg.Manufacturer,
		"label":                       cfg.Label,
		"injection_location":          cfg.InjectionLocation,
		"injection_coordinates_in_mm": cfg.InjectionCoordinatesInMM,
	}))
	if err != nil {
		return nil, err
	}
	return &Indicator{ct}, nil
}

// AsIndicator wraps a container read back from a store.
func AsIndicator(ct *model.Container) (*Indicator, error) {
	if err := as(ct, TypeIndicator); err != nil {
		return nil, err
	}
	return &Indicator{ct}, nil
}

// Label returns the indicator name, e.g. GCaMP6f.
func (i *Indicator) Label() string             { return text(i.Container, "label") }
func (i *Indicator) InjectionLocation() string { return text(i.Container, "injection_location") }

// InjectionCoordinatesInMM returns the AP, ML, DV coordinates, or nil.
func (i *Indicator) InjectionCoordinatesInMM() []float64 {
	return floats(i.Container, "injection_coordinates_in_mm")
}

// OpticalFiber is an implanted fiber.
type OpticalFiber struct{ *model.Container }

// OpticalFiberConfig holds the fields of an OpticalFiber.
type OpticalFiberConfig struct {
	Description       string
	Manufacturer      string
	Model             string
	NumericalAperture float64
	CoreDiameterInUM  float64
}

// NewOpticalFiber creates a fiber in c.
func NewOpticalFiber(c *model.Collection, name string, cfg OpticalFiberConfig) (*OpticalFiber, error) {
	ct, err := c.InstantiateNamed(TypeOpticalFiber, name, present(map[string]any{
		"description":         cfg.Description,
		"manufacturer":        cfg.Manufacturer,
		"model":               cfg.Model,
		"numerical_aperture":  cfg.NumericalAperture,
		"core_diameter_in_um": cfg.CoreDiameterInUM,
	}))
	if err != nil {
		return nil, err
	}
	return &OpticalFiber{ct}, nil
}

// AsOpticalFiber wraps a container read back from a store.
func AsOpticalFiber(ct *model.Container) (*OpticalFiber, error) {
	if err := as(ct, TypeOpticalFiber); err != nil {
		return nil, err
	}
	return &OpticalFiber{ct}, nil
}

func (f *OpticalFiber) NumericalAperture() float64 { return float(f.Container, "numerical_aperture") }

// ExcitationSource is a light source that excites an indicator.
type ExcitationSource struct{ *model.Container }

// ExcitationSourceConfig holds the fields of an ExcitationSource.
type ExcitationSourceConfig struct {
	Description              string
	Manufacturer             string
	Model                    string
	IlluminationType         string
	ExcitationWavelengthInNM float64
	PowerInW                 float64
	IntensityInWPerM2        float64
	ExposureTimeInS          float64
}

// NewExcitationSource creates a light source in c.
func NewExcitationSource(c *model.Collection, name string, cfg ExcitationSourceConfig) (*ExcitationSource, error) {
	ct, err := c.InstantiateNamed(TypeExcitationSource, name, present(map[string]any{
		"description":                 cfg.Description,
		"manufacturer":                cfg.Manufacturer,
		"model":                       cfg.Model,
		"illumination_type":           cfg.IlluminationType,
		"excitation_wavelength_in_nm": cfg.ExcitationWavelengthInNM,
		"power_in_W":                  cfg.PowerInW,
		"intensity_in_W_per_m2":       cfg.IntensityInWPerM2,
		"exposure_time_in_s":          cfg.ExposureTimeInS,
	}))
	if err != nil {
		return nil, err
	}
	return &ExcitationSource{ct}, nil
}

// AsExcitationSource wraps a container read back from a store.
func AsExcitationSource(ct *model.Container) (*ExcitationSource, error) {
	if err := as(ct, TypeExcitationSource); err != nil {
		return nil, err
	}
	return &ExcitationSource{ct}, nil
}

// IlluminationType returns the kind of source, e.g. laser or LED.
func (s *ExcitationSource) IlluminationType() string { return text(s.Container, "illumination_type") }
func (s *ExcitationSource) ExcitationWavelengthInNM() float64 {
	return float(s.Container, "excitation_wavelength_in_nm")
}

// Photodetector converts emitted light to a signal.
type Photodetector struct{ *model.Container }

// PhotodetectorConfig holds the fields of a Photodetector.
type PhotodetectorConfig struct {
	Description            string
	Manufacturer           string
	Model                  string
	DetectorType           string
	DetectedWavelengthInNM float64
	Gain                   float64
}

// NewPhotodetector creates a photodetector in c.
func NewPhotodetector(c *model.Collection, name string, cfg PhotodetectorConfig) (*Photodetector, error) {
	ct, err := c.InstantiateNamed(TypePhotodetector, name, present(map[string]any{
		"description":               cfg.Description,
		"manufacturer":              cfg.Manufacturer,
		"model":                     cfg.Model,
		"detector_type":             cfg.DetectorType,
		"detected_wavelength_in_nm": cfg.DetectedWavelengthInNM,
		"gain":                      cfg.Gain,
	}))
	if err != nil {
		return nil, err
	}
	return &Photodetector{ct}, nil
}

// AsPhotodetector wraps a container read back from a store.
func AsPhotodetector(ct *model.Container) (*Photodetector, error) {
	if err := as(ct, TypePhotodetector); err != nil {
		return nil, err
	}
	return &Photodetector{ct}, nil
}

// DetectorType returns the kind of detector, e.g. PMT.
func (p *Photodetector) DetectorType() string { return text(p.Container, "detector_type") }
func (p *Photodetector) Gain() float64        { return float(p.Container, "gain") }

// DichroicMirror splits excitation from emission light.
type DichroicMirror struct{ *model.Container }

// DichroicMirrorConfig holds the fields of a DichroicMirror.
type DichroicMirrorConfig struct {
	Description               string
	Manufacturer              string
	Model                     string
	CutOnWavelengthInNM       float64
	CutOffWavelengthInNM      float64
	ReflectionBandwidthInNM   []float64
	TransmissionBandwidthInNM []float64
	AngleOfIncidenceInDegrees float64
}

// NewDichroicMirror creates a mirror in c.
func NewDichroicMirror(c *model.Collection, name string, cfg DichroicMirrorConfig) (*DichroicMirror, error) {
	ct, err := c.InstantiateNamed(TypeDichroicMirror, name, present(map[string]any{
		"description":                   cfg.Description,
		"manufacturer":                  cfg.Manufacturer,
		"model":                         cfg.Model,
		"cut_on_wavelength_in_nm":       cfg.CutOnWavelengthInNM,
		"cut_off_wavelength_in_nm":      cfg.CutOffWavelengthInNM,
		"reflection_bandwidth_in_nm":    cfg.ReflectionBandwidthInNM,
		"transmission_bandwidth_in_nm":  cfg.TransmissionBandwidthInNM,
		"angle_of_incidence_in_degrees": cfg.AngleOfIncidenceInDegrees,
	}))
	if err != nil {
		return nil, err
	}
	return &DichroicMirror{ct}, nil
}

// AsDichroicMirror wraps a container read back from a store.
func AsDichroicMirror(ct *model.Container) (*DichroicMirror, error) {
	if err := as(ct, TypeDichroicMirror); err != nil {
		return nil, err
	}
	return &DichroicMirror{ct}, nil
}

func (m *DichroicMirror) TransmissionBandwidthInNM() []float64 {
	return floats(m.Container, "transmission_bandwidth_in_nm")
}

// OpticalFilter is an excitation or emission filter.
type OpticalFilter struct{ *model.Container }

// OpticalFilterConfig holds the fields of an OpticalFilter.
type OpticalFilterConfig struct {
	Description        string
	Manufacturer       string
	Model              string
	FilterType         string
	PeakWavelengthInNM float64
	BandwidthInNM      []float64
}

// NewOpticalFilter creates a filter in c.
func NewOpticalFilter(c *model.Collection, name string, cfg OpticalFilterConfig) (*OpticalFilter, error) {
	ct, err := c.InstantiateNamed(TypeOpticalFilter, name, present(map[string]any{
		"description":           cfg.Description,
		"manufacturer":          cfg.Manufacturer,
		"model":                 cfg.Model,
		"filter_type":           cfg.FilterType,
		"peak_wavelength_in_nm": cfg.PeakWavelengthInNM,
		"bandwidth_in_nm":       cfg.BandwidthInNM,
	}))
	if err != nil {
		return nil, err
	}
	return &OpticalFilter{ct}, nil
}

// AsOpticalFilter wraps a container read back from a store.
func AsOpticalFilter(ct *model.Container) (*OpticalFilter, error) {
	if err := as(ct, TypeOpticalFilter); err != nil {
		return nil, err
	}
	return &OpticalFilter{ct}, nil
}

func (f *OpticalFilter) FilterType() string { return text(f.Container, "filter_type") }

// ViralVector is a vector used to express an indicator.
type ViralVector struct{ *model.Container }

// ViralVectorConfig holds the fields of a ViralVector.
type ViralVectorConfig struct {
	ConstructName  string
	Description    string
	Manufacturer   string
	TiterInVGPerML float64
}

// NewViralVector creates a vector in c.
func NewViralVector(c *model.Collection, name string, cfg ViralVectorConfig) (*ViralVector, error) {
	ct, err := c.InstantiateNamed(TypeViralVector, name, present(map[string]any{
		"construct_name":     cfg.ConstructName,
		"description":        cfg.Description,
		"manufacturer":       cfg.Manufacturer,
		"titer_in_vg_per_ml": cfg.TiterInVGPerML,
	}))
	if err != nil {
		return nil, err
	}
	return &ViralVector{ct}, nil
}

// ViralVectorInjection records one injection of a viral vector.
type ViralVectorInjection struct{ *model.Container }

// ViralVectorInjectionConfig holds the fields of a ViralVectorInjection.
type ViralVectorInjectionConfig struct {
	Location      string
	Hemisphere    string
	APInMM        float64
	MLInMM        float64
	DVInMM        float64
	VolumeInUL    float64
	InjectionDate time.Time
	ViralVector   *ViralVector
}

// NewViralVectorInjection creates an injection that refers to its vector.
func NewViralVectorInjection(c *model.Collection, name string, cfg ViralVectorInjectionConfig) (*ViralVectorInjection, error) {
	attrs := present(map[string]any{
		"location":       cfg.Location,
		"hemisphere":     cfg.Hemisphere,
		"ap_in_mm":       cfg.APInMM,
		"ml_in_mm":       cfg.MLInMM,
		"dv_in_mm":       cfg.DVInMM,
		"volume_in_uL":   cfg.VolumeInUL,
		"injection_date": cfg.InjectionDate,
	})
	if cfg.ViralVector != nil {
		attrs["viral_vector"] = cfg.ViralVector.Container
	}
	ct, err := c.InstantiateNamed(TypeViralVectorInjection, name, attrs)
	if err != nil {
		return nil, err
	}
	return &ViralVectorInjection{ct}, nil
}
