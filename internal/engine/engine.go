package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pairmatch/pairmatch/internal/assign"
	"github.com/pairmatch/pairmatch/internal/calib"
	"github.com/pairmatch/pairmatch/internal/outlier"
	"github.com/pairmatch/pairmatch/internal/ratio"
	"github.com/pairmatch/pairmatch/pkg/types"
)

// BatchKey identifies one manufacturing batch of one family.
type BatchKey struct {
	Family types.Family
	Batch  string
}

// Input is an immutable inventory snapshot.
type Input struct {
	// A and B are the free candidates of each family.
	A, B []types.Component

	// Batches holds the full population of each batch (free and allocated)
	// used for outlier statistics. A batch missing here falls back to its
	// candidates.
	Batches map[BatchKey][]types.Component

	Sensors []types.SensorCalibration
}

// NoMatch explains why a matching stage produced nothing.
type NoMatch struct {
	Stage  types.Stage `json:"stage"`
	Reason string      `json:"reason"`
}

// Result is the output of one Plan.
type Result struct {
	Pairings          []types.Pairing    `json:"pairings"`
	Assignments       []types.Assignment `json:"assignments"`
	Yield             float64            `json:"match_yield"`
	EligibleA         int                `json:"eligible_a"`
	EligibleB         int                `json:"eligible_b"`
	Events            []types.Event      `json:"events"`
	NoMatch           []NoMatch          `json:"no_match,omitempty"`
	UnmatchedPairings []string           `json:"unmatched_pairings,omitempty"`
	UnmatchedSensors  []string           `json:"unmatched_sensors,omitempty"`
	Outliers          []outlier.Report   `json:"outliers,omitempty"`
}

// Plan runs outlier exclusion, ratio matching and sensor assignment over in.
// It returns an error only when p fails validation.
func Plan(in Input, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	res := &Result{Pairings: []types.Pairing{}, Assignments: []types.Assignment{}, Events: []types.Event{}}
	excluded := make(map[string]bool, len(p.ExcludeBatches))
	for _, b := range p.ExcludeBatches {
		excluded[b] = true
	}

	poolA := free(in.A)
	poolB := free(in.B)
	as := eligible(types.FamilyA, poolA, in.Batches, excluded, p.RegressorA, p.ZThreshold, res)
	bs := eligible(types.FamilyB, poolB, in.Batches, excluded, p.RegressorB, p.ZThreshold, res)
	res.EligibleA, res.EligibleB = len(as), len(bs)

	rr, err := ratio.Match(as, bs, ratio.Params{Target: p.TargetRatio, Tolerance: p.Tolerance})
	res.Events = append(res.Events, rr.Events...)
	if err != nil {
		if !errors.Is(err, types.ErrNoMatch) {
			return nil, err
		}
		res.NoMatch = append(res.NoMatch, NoMatch{Stage: types.StageRatio, Reason: err.Error()})
		return res, nil
	}
	res.Pairings = rr.Pairings
	res.Events = append(res.Events, unpaired(as, bs, rr.Pairings)...)

	comps := make(map[string]types.Component, len(as)+len(bs))
	for _, c := range as {
		comps[c.ID] = c
	}
	for _, c := range bs {
		comps[c.ID] = c
	}

	ar, err := assign.Match(rr.Pairings, comps, in.Sensors, calib.NewMapper(p.Grid),
		assign.Params{Envelope: p.Envelope, PolyOrder: p.PolyOrder})
	res.Events = append(res.Events, ar.Events...)
	res.UnmatchedPairings = ar.UnmatchedPairings
	res.UnmatchedSensors = ar.UnmatchedSensors
	if err != nil {
		if !errors.Is(err, types.ErrNoMatch) {
			return nil, err
		}
		res.NoMatch = append(res.NoMatch, NoMatch{Stage: types.StageAssign, Reason: err.Error()})
		return res, nil
	}
	res.Assignments = ar.Assignments
	res.Yield = Yield(len(ar.Assignments), len(poolA), len(poolB))
	return res, nil
}

// Yield is matched / min(poolA, poolB) * 100, clamped to [0, 100].
func Yield(matched, poolA, poolB int) float64 {
	n := min(poolA, poolB)
	if n <= 0 || matched <= 0 {
		return 0
	}
	y := float64(matched) / float64(n) * 100
	if y > 100 {
		return 100
	}
	return y
}

func free(cs []types.Component) []types.Component {
	out := make([]types.Component, 0, len(cs))
	for _, c := range cs {
		if !c.Allocated {
			out = append(out, c)
		}
	}
	return out
}

// eligible drops excluded batches and outliers from one family's candidates.
func eligible(fam types.Family, cands []types.Component, batches map[BatchKey][]types.Component,
	excluded map[string]bool, reg outlier.Regressor, z float64, res *Result) []types.Component {
	byBatch := make(map[string][]types.Component)
	for _, c := range cands {
		byBatch[c.Batch] = append(byBatch[c.Batch], c)
	}
	names := make([]string, 0, len(byBatch))
	for b := range byBatch {
		names = append(names, b)
	}
	sort.Strings(names)

	var out []types.Component
	for _, b := range names {
		members := byBatch[b]
		if excluded[b] {
			for _, c := range sortedByID(members) {
				res.Events = append(res.Events, types.Event{
					Stage: types.StageOutlier, Kind: types.EventBatchExcluded, Subject: c.ID, Detail: "batch " + b,
				})
			}
			continue
		}

		pop, ok := batches[BatchKey{Family: fam, Batch: b}]
		if !ok {
			pop = members
		}
		rep := outlier.Detect(b, pop, reg, z)
		if len(rep.Outliers) > 0 {
			res.Outliers = append(res.Outliers, rep)
		}
		reported := make(map[string]bool)
		for _, f := range rep.Flags {
			if reported[f.ID] || !containsID(members, f.ID) {
				continue
			}
			reported[f.ID] = true
			res.Events = append(res.Events, types.Event{
				Stage: types.StageOutlier, Kind: types.EventOutlier, Subject: f.ID,
				Detail: fmt.Sprintf("batch %s probe %d residual %.4g z %.2f", b, f.Probe, f.Residual, f.Z),
			})
		}
		for _, c := range members {
			if !rep.Excluded(c.ID) {
				out = append(out, c)
			}
		}
	}
	return out
}

// unpaired reports eligible candidates the ratio stage left without a partner.
func unpaired(as, bs []types.Component, pairings []types.Pairing) []types.Event {
	paired := make(map[string]bool, 2*len(pairings))
	for _, p := range pairings {
		paired[p.A], paired[p.B] = true, true
	}
	var events []types.Event
	for _, c := range append(sortedByID(as), sortedByID(bs)...) {
		if !paired[c.ID] {
			events = append(events, types.Event{Stage: types.StageRatio, Kind: types.EventUnmatchedComponent, Subject: c.ID})
		}
	}
	return events
}

func sortedByID(cs []types.Component) []types.Component {
	out := append([]types.Component(nil), cs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsID(cs []types.Component, id string) bool {
	for _, c := range cs {
		if c.ID == id {
			return true
		}
	}
	return false
}
