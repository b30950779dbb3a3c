package engine

import (
	"fmt"

	"github.com/pairmatch/pairmatch/internal/calib"
	"github.com/pairmatch/pairmatch/internal/config"
	"github.com/pairmatch/pairmatch/internal/outlier"
	"github.com/pairmatch/pairmatch/pkg/types"
)

// Params holds every numeric input of one run.
type Params struct {
	TargetRatio float64
	Tolerance   float64
	ZThreshold  float64
	RegressorA  outlier.Regressor
	RegressorB  outlier.Regressor
	Grid        calib.GridParams
	Envelope    types.SpecEnvelope
	PolyOrder   int

	ExcludeBatches []string
	MaxPoolSize    int
}

// ParamsFromConfig builds Params from the matching section of the config.
func ParamsFromConfig(m config.MatchingConfig) (Params, error) {
	ra, err := outlier.ParseRegressor(m.Outlier.RegressorA)
	if err != nil {
		return Params{}, &types.ConfigError{Field: "matching.outlier.regressor_a", Reason: err.Error()}
	}
	rb, err := outlier.ParseRegressor(m.Outlier.RegressorB)
	if err != nil {
		return Params{}, &types.ConfigError{Field: "matching.outlier.regressor_b", Reason: err.Error()}
	}
	p := Params{
		TargetRatio: m.TargetRatio,
		Tolerance:   m.Tolerance,
		ZThreshold:  m.Outlier.ZThreshold,
		RegressorA:  ra,
		RegressorB:  rb,
		Grid: calib.GridParams{
			ReferenceTemperature: m.Calibration.ReferenceTemperature,
			Points:               m.Calibration.GridPoints,
			Min:                  m.Calibration.GridMin,
			Max:                  m.Calibration.GridMax,
			MaxResidual:          m.Calibration.MaxInverseResidual,
		},
		Envelope:       types.SpecEnvelope{Points: append([]types.EnvelopePoint(nil), m.Envelope.Points...)},
		PolyOrder:      m.Envelope.PolyOrder,
		ExcludeBatches: append([]string(nil), m.ExcludeBatches...),
		MaxPoolSize:    m.MaxPoolSize,
	}
	return p, p.Validate()
}

// Validate rejects parameters that make a run meaningless.
func (p Params) Validate() error {
	switch {
	case p.TargetRatio <= 0:
		return &types.ConfigError{Field: "target_ratio", Reason: "must be positive"}
	case p.Tolerance <= 0:
		return &types.ConfigError{Field: "tolerance", Reason: "must be positive"}
	case p.ZThreshold <= 0:
		return &types.ConfigError{Field: "z_threshold", Reason: "must be positive"}
	case p.PolyOrder < 1:
		return &types.ConfigError{Field: "poly_order", Reason: "must be at least 1"}
	case len(p.Envelope.Points) == 0:
		return &types.ConfigError{Field: "envelope", Reason: "must not be empty"}
	case p.Grid.Points < 2:
		return &types.ConfigError{Field: "grid_points", Reason: "must be at least 2"}
	case p.Grid.Max <= p.Grid.Min:
		return &types.ConfigError{Field: "grid", Reason: fmt.Sprintf("empty domain [%g, %g]", p.Grid.Min, p.Grid.Max)}
	case p.Grid.MaxResidual <= 0:
		return &types.ConfigError{Field: "max_inverse_residual", Reason: "must be positive"}
	}
	return nil
}
