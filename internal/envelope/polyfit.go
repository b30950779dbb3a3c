package envelope

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Poly is a polynomial in the normalised variable t = (x - Center) / Scale.
// Coeffs are in ascending power order.
type Poly struct {
	Coeffs []float64
	Center float64
	Scale  float64
}

// Eval returns the polynomial's value at x.
func (p Poly) Eval(x float64) float64 {
	t := (x - p.Center) / p.Scale
	var y float64
	for k := len(p.Coeffs) - 1; k >= 0; k-- {
		y = y*t + p.Coeffs[k]
	}
	return y
}

// Fit solves the least-squares polynomial of the given order through
// (xs[i], ys[i]) via QR on the Vandermonde matrix. The abscissa is mapped to
// [-1, 1] first to keep the matrix well conditioned.
func Fit(xs, ys []float64, order int) (Poly, error) {
	if len(xs) != len(ys) {
		return Poly{}, fmt.Errorf("envelope: %d signals but %d outputs", len(xs), len(ys))
	}
	if n := distinct(xs); n < order+1 {
		return Poly{}, fmt.Errorf("envelope: %d distinct signals, order %d fit needs %d", n, order, order+1)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	p := Poly{Center: (lo + hi) / 2, Scale: (hi - lo) / 2}

	cols := order + 1
	a := mat.NewDense(len(xs), cols, nil)
	for i, x := range xs {
		t := (x - p.Center) / p.Scale
		v := 1.0
		for k := 0; k < cols; k++ {
			a.Set(i, k, v)
			v *= t
		}
	}
	b := mat.NewVecDense(len(ys), append([]float64(nil), ys...))

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil {
		return Poly{}, fmt.Errorf("envelope: solve least squares: %w", err)
	}
	p.Coeffs = make([]float64, cols)
	for k := range p.Coeffs {
		p.Coeffs[k] = c.AtVec(k)
	}
	return p, nil
}

func distinct(xs []float64) int {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := 0
	for i, x := range s {
		if i == 0 || x != s[i-1] {
			n++
		}
	}
	return n
}
