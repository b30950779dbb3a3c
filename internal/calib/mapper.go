package calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// GridParams configures the inverse lookup.
type GridParams struct {
	ReferenceTemperature float64
	Points               int
	Min, Max             float64

	// MaxResidual bounds |predicted - target| at the best grid point.
	MaxResidual float64
}

// Mapper performs inverse lookups on a precomputed signal grid.
// A Mapper is read-only after construction and may be shared.
type Mapper struct {
	p    GridParams
	grid []float64
}

// NewMapper builds the signal grid: p.Points evenly spaced values spanning
// [p.Min, p.Max] inclusive.
func NewMapper(p GridParams) *Mapper {
	n := p.Points
	if n < 2 {
		n = 2
	}
	return &Mapper{p: p, grid: floats.Span(make([]float64, n), p.Min, p.Max)}
}

// Map returns, for each target quantity, the grid signal whose forward
// prediction is closest to it. It returns a *types.DataError when the
// calibration itself is unusable and a *types.CalibrationError when a target
// cannot be reproduced within MaxResidual.
func (m *Mapper) Map(s types.SensorCalibration, targets []float64) ([]float64, error) {
	if err := Check(s); err != nil {
		return nil, err
	}
	r := m.resistance(s)

	// The forward curve does not depend on the target; evaluate it once.
	pred := make([]float64, len(m.grid))
	for i, sig := range m.grid {
		pred[i] = Forward(s, r, sig)
	}

	out := make([]float64, len(targets))
	for k, target := range targets {
		best, bestRes := 0, math.Inf(1)
		for i, q := range pred {
			if d := math.Abs(q - target); d < bestRes {
				best, bestRes = i, d
			}
		}
		if bestRes > m.p.MaxResidual {
			return nil, &types.CalibrationError{SensorID: s.ID, Target: target, Residual: bestRes}
		}
		out[k] = m.grid[best]
	}
	return out, nil
}

// CheckTable compares the forward model with the calibration's recorded
// (signal, quantity) samples at the reference temperature. It returns a
// *types.DataError for the first sample that misses by more than MaxResidual.
func (m *Mapper) CheckTable(s types.SensorCalibration) error {
	r := m.resistance(s)
	for _, smp := range s.SignalTable {
		if d := math.Abs(Forward(s, r, smp.Signal) - smp.Quantity); d > m.p.MaxResidual {
			return &types.DataError{
				ID:     s.ID,
				Reason: fmt.Sprintf("coefficients miss signal sample %g by %.3g", smp.Signal, d),
			}
		}
	}
	return nil
}

func (m *Mapper) resistance(s types.SensorCalibration) float64 {
	if r, ok := NearestResistance(s.ResistanceTable, m.p.ReferenceTemperature); ok {
		return r
	}
	return s.ReferenceResistance
}
