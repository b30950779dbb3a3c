package envelope

import (
	"math"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// Check is the outcome of validating one curve.
type Check struct {
	Signals     []float64
	Predicted   []float64
	MaxMargin   []float64 // spec_max - predicted
	MinMargin   []float64 // predicted - spec_min
	Pass        bool
	WorstMargin float64
}

// Validate fits the samples and compares the fit with env at every probe.
// An error means the samples could not be fitted; a failing curve is not an
// error.
func Validate(signals, outputs []float64, env types.SpecEnvelope, order int) (Check, error) {
	poly, err := Fit(signals, outputs, order)
	if err != nil {
		return Check{}, err
	}
	return Evaluate(poly, env), nil
}

// Evaluate compares an already fitted polynomial with env.
func Evaluate(poly Poly, env types.SpecEnvelope) Check {
	n := len(env.Points)
	c := Check{
		Signals:     env.Signals(),
		Predicted:   make([]float64, n),
		MaxMargin:   make([]float64, n),
		MinMargin:   make([]float64, n),
		Pass:        n > 0,
		WorstMargin: math.Inf(1),
	}
	for i, pt := range env.Points {
		y := poly.Eval(pt.Signal)
		c.Predicted[i] = y
		c.MaxMargin[i] = pt.Max - y
		c.MinMargin[i] = y - pt.Min
		if y < pt.Min || y > pt.Max || math.IsNaN(y) {
			c.Pass = false
		}
		c.WorstMargin = math.Min(c.WorstMargin, math.Min(c.MaxMargin[i], c.MinMargin[i]))
	}
	if n == 0 {
		c.WorstMargin = math.Inf(-1)
	}
	return c
}
