package calib

import (
	"math"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// Forward evaluates the sensor's model at signal s with bridge resistance r.
func Forward(s types.SensorCalibration, r, signal float64) float64 {
	x := signal
	if s.Model == types.ModelRatiometric {
		x = signal * r / s.ReferenceResistance
	}
	return horner(s.Coefficients, x)
}

// horner evaluates sum c[k] x^k.
func horner(c []float64, x float64) float64 {
	var y float64
	for k := len(c) - 1; k >= 0; k-- {
		y = y*x + c[k]
	}
	return y
}

// NearestResistance returns the resistance sample whose temperature is
// closest to temp. Ties go to the earlier sample.
func NearestResistance(table []types.RTSample, temp float64) (float64, bool) {
	if len(table) == 0 {
		return 0, false
	}
	best, bestDist := 0, math.Inf(1)
	for i, rt := range table {
		if d := math.Abs(rt.Temperature - temp); d < bestDist {
			best, bestDist = i, d
		}
	}
	return table[best].Resistance, true
}

// Check reports the data problems that make a calibration unusable.
func Check(s types.SensorCalibration) error {
	if len(s.Coefficients) == 0 {
		return &types.DataError{ID: s.ID, Reason: "missing calibration coefficients"}
	}
	for _, c := range s.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return &types.DataError{ID: s.ID, Reason: "non-finite calibration coefficient"}
		}
	}
	switch s.Model {
	case types.ModelPolynomial:
	case types.ModelRatiometric:
		if s.ReferenceResistance <= 0 {
			return &types.DataError{ID: s.ID, Reason: "ratiometric model without reference resistance"}
		}
		if len(s.ResistanceTable) == 0 {
			return &types.DataError{ID: s.ID, Reason: "ratiometric model without resistance samples"}
		}
	default:
		return &types.DataError{ID: s.ID, Reason: "unknown calibration model " + string(s.Model)}
	}
	return nil
}
