package ratio

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairmatch/pairmatch/pkg/types"
)

var pressures = []float64{1, 2, 3}

func comp(id string, fam types.Family, flows ...float64) types.Component {
	return types.Component{ID: id, Family: fam, Batch: "lot", Pressures: pressures, FlowRates: flows}
}

func TestMatch_PrefersClosestToTarget(t *testing.T) {
	as := []types.Component{
		comp("A1", types.FamilyA, 13.0, 26.0, 39.0),
		comp("A2", types.FamilyA, 13.2, 26.4, 39.6),
	}
	bs := []types.Component{
		comp("B1", types.FamilyB, 1, 2, 3),
		comp("B2", types.FamilyB, 1.01, 2.02, 3.03),
	}

	res, err := Match(as, bs, Params{Target: 13, Tolerance: 0.5})
	require.NoError(t, err)
	require.Len(t, res.Pairings, 2)
	assert.Equal(t, 4, res.Edges)

	// A1/B1 is exact (13) and A2/B2 is ~13.07; the crossing A1/B2 + A2/B1
	// costs more in squared deviation.
	assert.Equal(t, "A1", res.Pairings[0].A)
	assert.Equal(t, "B1", res.Pairings[0].B)
	assert.Equal(t, "A2", res.Pairings[1].A)
	assert.Equal(t, "B2", res.Pairings[1].B)
	assert.InDelta(t, 0.0, res.Pairings[0].Weight, 1e-12)
}

func TestMatch_RatioOutsideBandAtOneProbe(t *testing.T) {
	as := []types.Component{comp("A1", types.FamilyA, 13, 26, 42)} // 14 at p=3
	bs := []types.Component{comp("B1", types.FamilyB, 1, 2, 3)}

	res, err := Match(as, bs, Params{Target: 13, Tolerance: 0.5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNoMatch))
	assert.Empty(t, res.Pairings)
}

func TestMatch_ZeroFlowSkippedOncePerID(t *testing.T) {
	as := []types.Component{
		comp("A1", types.FamilyA, 13, 26, 39),
		comp("A2", types.FamilyA, 13, 26, 39),
	}
	bs := []types.Component{
		comp("B1", types.FamilyB, 1, 0, 3),
		comp("B2", types.FamilyB, 1, 2, 3),
	}

	res, err := Match(as, bs, Params{Target: 13, Tolerance: 0.5})
	require.NoError(t, err)
	require.Len(t, res.Pairings, 1)
	assert.Equal(t, "B2", res.Pairings[0].B)

	require.Len(t, res.Events, 1)
	assert.Equal(t, types.EventZeroFlow, res.Events[0].Kind)
	assert.Equal(t, "B1", res.Events[0].Subject)
}

func TestMatch_InvalidComponentReported(t *testing.T) {
	bad := comp("B9", types.FamilyB, 1, 2)
	res, err := Match([]types.Component{comp("A1", types.FamilyA, 13, 26, 39)}, []types.Component{bad}, Params{Target: 13, Tolerance: 0.5})
	require.ErrorIs(t, err, types.ErrNoMatch)
	require.Len(t, res.Events, 1)
	assert.Equal(t, types.EventInvalidComponent, res.Events[0].Kind)
}

func TestMatch_EmptyPools(t *testing.T) {
	_, err := Match(nil, []types.Component{comp("B1", types.FamilyB, 1, 2, 3)}, Params{Target: 13, Tolerance: 0.5})
	assert.ErrorIs(t, err, types.ErrNoMatch)
}

func TestMatch_ClosestProbeAlignment(t *testing.T) {
	a := comp("A1", types.FamilyA, 13, 26, 39)
	b := types.Component{ID: "B1", Family: types.FamilyB, Pressures: []float64{1.02, 1.98, 3.01}, FlowRates: []float64{1, 2, 3}}
	assert.Equal(t, []float64{13, 13, 13}, Ratios(a, b))
}

func TestMatch_Deterministic(t *testing.T) {
	as := []types.Component{
		comp("A3", types.FamilyA, 13, 26, 39),
		comp("A1", types.FamilyA, 13, 26, 39),
		comp("A2", types.FamilyA, 13, 26, 39),
	}
	bs := []types.Component{
		comp("B2", types.FamilyB, 1, 2, 3),
		comp("B1", types.FamilyB, 1, 2, 3),
		comp("B3", types.FamilyB, 1, 2, 3),
	}
	first, err := Match(as, bs, Params{Target: 13, Tolerance: 0.5})
	require.NoError(t, err)

	reversed := []types.Component{as[2], as[1], as[0]}
	second, err := Match(reversed, bs, Params{Target: 13, Tolerance: 0.5})
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("input order changed the pairings (-first +second):\n%s", diff)
	}
}

func TestAdmissible_StoredRatiosRoundTrip(t *testing.T) {
	as := []types.Component{comp("A1", types.FamilyA, 12.6, 26.8, 40.4)}
	bs := []types.Component{comp("B1", types.FamilyB, 1, 2, 3)}
	p := Params{Target: 13, Tolerance: 0.5}

	res, err := Match(as, bs, p)
	require.NoError(t, err)
	for _, pr := range res.Pairings {
		assert.True(t, Admissible(pr.Ratios, p.Target, p.Tolerance), "stored ratios %v", pr.Ratios)
		assert.InDelta(t, pr.Weight, Weight(pr.Ratios, p.Target), 1e-15)
	}
}

func TestAdmissible_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		ratios []float64
		want   bool
	}{
		{"inside", []float64{13, 12.9, 13.1}, true},
		{"lower edge", []float64{12.5}, true},
		{"upper edge", []float64{13.5}, true},
		{"below", []float64{12.49}, false},
		{"above", []float64{13.51}, false},
		{"empty", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Admissible(tc.ratios, 13, 0.5))
		})
	}
}
