package assign

import (
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// Interpolate returns c's flow at pressure p by linear interpolation between
// its probes, clamped to the end values outside the measured range.
// Repeated probe pressures keep the first reading.
func Interpolate(c types.Component, p float64) float64 {
	xs, ys := sortedProbes(c)
	switch len(xs) {
	case 0:
		return 0
	case 1:
		return ys[0]
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		// Only NaN pressures break the ordering.
		return ys[0]
	}
	return pl.Predict(p)
}

// sortedProbes returns c's probes ordered by pressure with duplicates removed.
func sortedProbes(c types.Component) (xs, ys []float64) {
	n := min(len(c.Pressures), len(c.FlowRates))
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return c.Pressures[idx[a]] < c.Pressures[idx[b]] })

	for _, i := range idx {
		if len(xs) > 0 && c.Pressures[i] == xs[len(xs)-1] {
			continue
		}
		xs = append(xs, c.Pressures[i])
		ys = append(ys, c.FlowRates[i])
	}
	return xs, ys
}
