package ratio

import (
	"fmt"
	"math"
	"sort"

	"github.com/pairmatch/pairmatch/internal/matching"
	"github.com/pairmatch/pairmatch/pkg/types"
)

// Params is the ratio band.
type Params struct {
	Target    float64
	Tolerance float64
}

// Result holds the pairings and the candidates skipped on the way.
type Result struct {
	Pairings []types.Pairing
	Events   []types.Event
	Edges    int
}

// Match pairs A candidates with B candidates. Components with a zero flow at
// any probe are skipped with one event each. When no admissible edge exists
// the returned error wraps types.ErrNoMatch and the result carries only the
// events.
func Match(as, bs []types.Component, p Params) (Result, error) {
	var res Result
	as = screen(as, &res.Events)
	bs = screen(bs, &res.Events)

	var edges []matching.Edge
	ratios := make(map[[2]int][]float64)
	for i, a := range as {
		for j, b := range bs {
			r := Ratios(a, b)
			if !Admissible(r, p.Target, p.Tolerance) {
				continue
			}
			edges = append(edges, matching.Edge{L: i, R: j, Weight: Weight(r, p.Target)})
			ratios[[2]int{i, j}] = r
		}
	}
	res.Edges = len(edges)
	if len(edges) == 0 {
		return res, fmt.Errorf("ratio: %w: no A/B pair within %g ± %g among %d A and %d B candidates",
			types.ErrNoMatch, p.Target, p.Tolerance, len(as), len(bs))
	}

	for _, m := range matching.MinWeight(len(as), len(bs), edges) {
		res.Pairings = append(res.Pairings, types.Pairing{
			A:      as[m.L].ID,
			B:      bs[m.R].ID,
			Ratios: ratios[[2]int{m.L, m.R}],
			Weight: m.Weight,
		})
	}
	return res, nil
}

// Ratios returns flow_A / flow_B at each of A's probe pressures, reading B at
// its closest probe.
func Ratios(a, b types.Component) []float64 {
	out := make([]float64, len(a.Pressures))
	for i, pa := range a.Pressures {
		out[i] = a.FlowRates[i] / b.FlowRates[Closest(b.Pressures, pa)]
	}
	return out
}

// Admissible reports whether every ratio lies in [target-tol, target+tol].
func Admissible(ratios []float64, target, tol float64) bool {
	if len(ratios) == 0 {
		return false
	}
	lo, hi := target-tol, target+tol
	for _, r := range ratios {
		if math.IsNaN(r) || r < lo || r > hi {
			return false
		}
	}
	return true
}

// Weight is the mean squared deviation of ratios from target.
func Weight(ratios []float64, target float64) float64 {
	if len(ratios) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratios {
		d := r - target
		sum += d * d
	}
	return sum / float64(len(ratios))
}

// Closest returns the index of the probe nearest to p. Ties go to the lower
// index.
func Closest(probes []float64, p float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, q := range probes {
		if d := math.Abs(q - p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// screen sorts candidates by ID and drops the structurally invalid and
// zero-flow ones.
func screen(comps []types.Component, events *[]types.Event) []types.Component {
	sorted := append([]types.Component(nil), comps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out := make([]types.Component, 0, len(sorted))
	for _, c := range sorted {
		if err := c.Check(); err != nil {
			*events = append(*events, types.Event{
				Stage: types.StageRatio, Kind: types.EventInvalidComponent, Subject: c.ID, Detail: err.Error(),
			})
			continue
		}
		if i, ok := zeroFlow(c); ok {
			*events = append(*events, types.Event{
				Stage: types.StageRatio, Kind: types.EventZeroFlow, Subject: c.ID,
				Detail: fmt.Sprintf("zero flow at %g", c.Pressures[i]),
			})
			continue
		}
		out = append(out, c)
	}
	return out
}

func zeroFlow(c types.Component) (int, bool) {
	for i, f := range c.FlowRates {
		if f == 0 || math.IsNaN(f) {
			return i, true
		}
	}
	return 0, false
}
