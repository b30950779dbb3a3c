package outlier

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// Regressor selects the abscissa of the per-probe regression.
type Regressor int

const (
	// Linear regresses flow on the geometric parameter.
	Linear Regressor = iota
	// Area regresses flow on the square of the geometric parameter.
	Area
)

// ParseRegressor maps a config name to a Regressor.
func ParseRegressor(name string) (Regressor, error) {
	switch name {
	case "linear", "":
		return Linear, nil
	case "area":
		return Area, nil
	default:
		return 0, fmt.Errorf("outlier: unknown regressor %q", name)
	}
}

func (r Regressor) String() string {
	switch r {
	case Area:
		return "area"
	default:
		return "linear"
	}
}

func (r Regressor) x(c types.Component) float64 {
	switch r {
	case Area:
		return c.Geometry * c.Geometry
	default:
		return c.Geometry
	}
}

// Flag records one component flagged at one probe index.
type Flag struct {
	ID       string  `json:"id"`
	Probe    int     `json:"probe"`
	Residual float64 `json:"residual"`
	Z        float64 `json:"z"`
}

// Report is the result of Detect over one batch.
type Report struct {
	Batch    string   `json:"batch"`
	Outliers []string `json:"outliers"` // sorted, unique
	Flags    []Flag   `json:"flags"`
}

// Excluded reports whether id is an outlier.
func (r Report) Excluded(id string) bool {
	i := sort.SearchStrings(r.Outliers, id)
	return i < len(r.Outliers) && r.Outliers[i] == id
}

// Detect runs the outlier test on one batch of same-family components.
// Components whose pressure/flow slices are inconsistent, or shorter than the
// batch's probe count, are ignored for the probes they lack.
func Detect(batch string, comps []types.Component, reg Regressor, threshold float64) Report {
	sorted := make([]types.Component, 0, len(comps))
	for _, c := range comps {
		if c.Check() == nil {
			sorted = append(sorted, c)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	rep := Report{Batch: batch}
	probes := 0
	for _, c := range sorted {
		if n := len(c.FlowRates); n > probes {
			probes = n
		}
	}

	flagged := make(map[string]bool)
	for p := 0; p < probes; p++ {
		var ids []string
		var xs, ys []float64
		for _, c := range sorted {
			if p >= len(c.FlowRates) {
				continue
			}
			ids = append(ids, c.ID)
			xs = append(xs, reg.x(c))
			ys = append(ys, c.FlowRates[p])
		}
		for i, z := range zScores(xs, ys) {
			if z.abs > threshold {
				rep.Flags = append(rep.Flags, Flag{ID: ids[i], Probe: p, Residual: z.residual, Z: z.abs})
				flagged[ids[i]] = true
			}
		}
	}

	for id := range flagged {
		rep.Outliers = append(rep.Outliers, id)
	}
	sort.Strings(rep.Outliers)
	return rep
}

type score struct {
	residual float64
	abs      float64
}

// zScores fits y = alpha + beta*x and returns the standardised residuals.
// It returns nil when fewer than three points exist or the residuals have no
// spread.
func zScores(xs, ys []float64) []score {
	if len(xs) < 3 {
		return nil
	}

	var alpha, beta float64
	if constant(xs) {
		alpha = stat.Mean(ys, nil)
	} else {
		alpha, beta = stat.LinearRegression(xs, ys, nil, false)
	}

	res := make([]float64, len(xs))
	for i := range xs {
		res[i] = ys[i] - (alpha + beta*xs[i])
	}
	mean, std := stat.PopMeanStdDev(res, nil)
	// Residual spread at rounding level counts as zero.
	if math.IsNaN(std) || std <= spreadEpsilon*magnitude(ys) {
		return nil
	}

	out := make([]score, len(res))
	for i, r := range res {
		out[i] = score{residual: r, abs: math.Abs(r-mean) / std}
	}
	return out
}

const spreadEpsilon = 1e-12

func magnitude(ys []float64) float64 {
	m := 1.0
	for _, y := range ys {
		if a := math.Abs(y); a > m {
			m = a
		}
	}
	return m
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
