package matching

import (
	"math"
	"sort"
)

// Edge connects left vertex L to right vertex R with a weight.
type Edge struct {
	L, R   int
	Weight float64
}

// Pair is one matched edge.
type Pair struct {
	L, R   int
	Weight float64
}

// MinWeight returns a maximum-cardinality matching of minimum total weight.
// Pairs are ordered by L.
func MinWeight(nl, nr int, edges []Edge) []Pair {
	if len(edges) == 0 {
		return nil
	}
	w := adjacency(nl, nr, edges)

	// Forbidden cells cost more than any feasible set of real edges, so the
	// solver maximises cardinality before minimising weight.
	var total float64
	for _, e := range edges {
		total += math.Abs(e.Weight)
	}
	forbidden := 2*total + 1

	n := max(nl, nr)
	cost := square(n, func(i, j int) float64 {
		if i < nl && j < nr && w[i][j] != nil {
			return *w[i][j]
		}
		return forbidden
	})
	return collect(nl, nr, w, solve(cost))
}

// MaxWeight returns a matching of maximum total weight. Edges with negative
// weight never improve the objective and are ignored. Pairs are ordered by L.
func MaxWeight(nl, nr int, edges []Edge) []Pair {
	kept := edges[:0:0]
	for _, e := range edges {
		if e.Weight >= 0 {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	w := adjacency(nl, nr, kept)

	n := max(nl, nr)
	cost := square(n, func(i, j int) float64 {
		if i < nl && j < nr && w[i][j] != nil {
			return -*w[i][j]
		}
		return 0
	})
	return collect(nl, nr, w, solve(cost))
}

// adjacency indexes edges by (L, R). A repeated edge keeps the lower weight.
func adjacency(nl, nr int, edges []Edge) [][]*float64 {
	w := make([][]*float64, nl)
	for i := range w {
		w[i] = make([]*float64, nr)
	}
	for _, e := range edges {
		if e.L < 0 || e.L >= nl || e.R < 0 || e.R >= nr {
			continue
		}
		v := e.Weight
		if cur := w[e.L][e.R]; cur == nil || v < *cur {
			w[e.L][e.R] = &v
		}
	}
	return w
}

func square(n int, f func(i, j int) float64) [][]float64 {
	c := make([][]float64, n)
	for i := range c {
		c[i] = make([]float64, n)
		for j := range c[i] {
			c[i][j] = f(i, j)
		}
	}
	return c
}

// collect keeps the assigned cells that correspond to real edges.
func collect(nl, nr int, w [][]*float64, rowToCol []int) []Pair {
	var out []Pair
	for i, j := range rowToCol {
		if i >= nl || j < 0 || j >= nr || w[i][j] == nil {
			continue
		}
		out = append(out, Pair{L: i, R: j, Weight: *w[i][j]})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].L < out[b].L })
	return out
}

// solve runs the O(n^3) shortest-augmenting-path Hungarian algorithm on an
// n x n cost matrix and returns the column assigned to each row.
func solve(cost [][]float64) []int {
	n := len(cost)
	inf := math.Inf(1)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1) // p[j]: row matched to column j (1-based), 0 if none
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = inf
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	rowToCol := make([]int, n)
	for i := range rowToCol {
		rowToCol[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			rowToCol[p[j]-1] = j - 1
		}
	}
	return rowToCol
}
