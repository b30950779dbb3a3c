package types

import "fmt"

// Family is the component family tag. Every pairing joins exactly one A and
// one B component.
type Family string

const (
	FamilyA Family = "A"
	FamilyB Family = "B"
)

// Valid reports whether f is one of the two known families.
func (f Family) Valid() bool {
	return f == FamilyA || f == FamilyB
}

// Component is one manufactured part with its measured flow curve.
// Pressures and FlowRates are parallel slices in probe order.
type Component struct {
	ID        string    `json:"id" yaml:"id"`
	Family    Family    `json:"family" yaml:"family"`
	Batch     string    `json:"batch" yaml:"batch"`
	Geometry  float64   `json:"geometry" yaml:"geometry"` // e.g. orifice diameter
	Pressures []float64 `json:"pressures" yaml:"pressures"`
	FlowRates []float64 `json:"flow_rates" yaml:"flow_rates"`
	Allocated bool      `json:"allocated" yaml:"allocated"`
}

// Check verifies the structural invariant len(Pressures) == len(FlowRates).
func (c Component) Check() error {
	if len(c.Pressures) == 0 {
		return &DataError{ID: c.ID, Reason: "no probe pressures"}
	}
	if len(c.Pressures) != len(c.FlowRates) {
		return &DataError{ID: c.ID, Reason: fmt.Sprintf("%d pressures but %d flow rates", len(c.Pressures), len(c.FlowRates))}
	}
	return nil
}

// CalibrationModel selects the forward model of a sensor calibration.
type CalibrationModel string

const (
	// ModelPolynomial: quantity = sum c_k * s^k.
	ModelPolynomial CalibrationModel = "polynomial"
	// ModelRatiometric: quantity = sum c_k * (s * R / R0)^k, where R is the
	// bridge resistance at the reference temperature.
	ModelRatiometric CalibrationModel = "ratiometric"
)

// Valid reports whether m is a known model.
func (m CalibrationModel) Valid() bool {
	return m == ModelPolynomial || m == ModelRatiometric
}

// RTSample is one (resistance, temperature) calibration point.
type RTSample struct {
	Resistance  float64 `json:"resistance" yaml:"resistance"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// SignalSample is one (signal, derived quantity) calibration point.
type SignalSample struct {
	Signal   float64 `json:"signal" yaml:"signal"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
}

// SensorCalibration is a calibrated sensor and its forward model.
// Coefficients are in ascending power order. SignalTable holds the certificate
// points the coefficients were fitted to; a sensor whose model misses them
// is not used.
type SensorCalibration struct {
	ID                  string           `json:"id" yaml:"id"`
	Model               CalibrationModel `json:"model" yaml:"model"`
	Coefficients        []float64        `json:"coefficients" yaml:"coefficients"`
	ReferenceResistance float64          `json:"reference_resistance" yaml:"reference_resistance"`
	ResistanceTable     []RTSample       `json:"resistance_table" yaml:"resistance_table"`
	SignalTable         []SignalSample   `json:"signal_table" yaml:"signal_table"`
	Allocated           bool             `json:"allocated" yaml:"allocated"`
}

// EnvelopePoint is one probe of the specification envelope.
type EnvelopePoint struct {
	Signal float64 `json:"signal" yaml:"signal"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// SpecEnvelope is the ordered table of permitted output bounds.
type SpecEnvelope struct {
	Points []EnvelopePoint `json:"points" yaml:"points"`
}

// Signals returns the envelope probe points in order.
func (e SpecEnvelope) Signals() []float64 {
	out := make([]float64, len(e.Points))
	for i, p := range e.Points {
		out[i] = p.Signal
	}
	return out
}

// Pairing joins one A and one B component.
type Pairing struct {
	A      string    `json:"a"`
	B      string    `json:"b"`
	Ratios []float64 `json:"ratios"` // flow_A[i] / flow_B[i] at A's probe pressures
	Weight float64   `json:"weight"` // mean squared deviation from the target ratio
}

// Key identifies the pairing by its member components.
func (p Pairing) Key() string {
	return p.A + "/" + p.B
}

// Assignment binds a pairing to a sensor.
type Assignment struct {
	Pairing     Pairing   `json:"pairing"`
	SensorID    string    `json:"sensor_id"`
	Signals     []float64 `json:"signals"`   // envelope probe points
	Predicted   []float64 `json:"predicted"` // combined output at each probe point
	WorstMargin float64   `json:"worst_margin"`
}
