package assign

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pairmatch/pairmatch/internal/calib"
	"github.com/pairmatch/pairmatch/internal/envelope"
	"github.com/pairmatch/pairmatch/internal/matching"
	"github.com/pairmatch/pairmatch/pkg/types"
)

// Params configures the envelope check.
type Params struct {
	Envelope  types.SpecEnvelope
	PolyOrder int
}

// Result holds the chosen assignments and everything left over.
type Result struct {
	Assignments       []types.Assignment
	UnmatchedPairings []string
	UnmatchedSensors  []string
	Events            []types.Event
	Edges             int
}

// Curve returns the combined-output samples of a pairing: the A component's
// probe pressures, and flow_A + flow_B at each of them with B interpolated.
func Curve(a, b types.Component) (pressures, outputs []float64) {
	pressures = append([]float64(nil), a.Pressures...)
	outputs = make([]float64, len(pressures))
	for i, p := range pressures {
		outputs[i] = a.FlowRates[i] + Interpolate(b, p)
	}
	return pressures, outputs
}

// Match assigns pairings to sensors. comps must hold both members of every
// pairing. When no combination passes, the returned error wraps
// types.ErrNoMatch and every pairing and sensor is reported unmatched.
func Match(pairings []types.Pairing, comps map[string]types.Component, sensors []types.SensorCalibration, mapper *calib.Mapper, p Params) (Result, error) {
	var res Result

	pairings = append([]types.Pairing(nil), pairings...)
	sort.Slice(pairings, func(i, j int) bool { return pairings[i].Key() < pairings[j].Key() })
	sensors = usable(sensors, mapper, &res.Events)

	var edges []matching.Edge
	checks := make(map[[2]int]envelope.Check)
	for i, pr := range pairings {
		a, okA := comps[pr.A]
		b, okB := comps[pr.B]
		if !okA || !okB {
			res.Events = append(res.Events, types.Event{
				Stage: types.StageAssign, Kind: types.EventInvalidComponent, Subject: pr.Key(),
				Detail: "pairing member missing from inventory snapshot",
			})
			continue
		}
		pressures, outputs := Curve(a, b)

		for j, s := range sensors {
			signals, err := mapper.Map(s, pressures)
			if err != nil {
				var ce *types.CalibrationError
				if errors.As(err, &ce) {
					res.Events = append(res.Events, types.Event{
						Stage: types.StageCalib, Kind: types.EventCalibrationRange, Subject: s.ID,
						Detail: fmt.Sprintf("pairing %s: %v", pr.Key(), err),
					})
				}
				continue
			}
			c, err := envelope.Validate(signals, outputs, p.Envelope, p.PolyOrder)
			if err != nil {
				res.Events = append(res.Events, types.Event{
					Stage: types.StageEnvelope, Kind: types.EventInsufficientSamples, Subject: pr.Key(),
					Detail: fmt.Sprintf("sensor %s: %v", s.ID, err),
				})
				continue
			}
			if !c.Pass {
				continue
			}
			edges = append(edges, matching.Edge{L: i, R: j, Weight: c.WorstMargin})
			checks[[2]int{i, j}] = c
		}
	}
	res.Edges = len(edges)

	matchedL := make(map[int]bool)
	matchedR := make(map[int]bool)
	for _, m := range matching.MaxWeight(len(pairings), len(sensors), edges) {
		c := checks[[2]int{m.L, m.R}]
		res.Assignments = append(res.Assignments, types.Assignment{
			Pairing:     pairings[m.L],
			SensorID:    sensors[m.R].ID,
			Signals:     c.Signals,
			Predicted:   c.Predicted,
			WorstMargin: c.WorstMargin,
		})
		matchedL[m.L], matchedR[m.R] = true, true
	}

	for i, pr := range pairings {
		if !matchedL[i] {
			res.UnmatchedPairings = append(res.UnmatchedPairings, pr.Key())
			res.Events = append(res.Events, types.Event{Stage: types.StageAssign, Kind: types.EventUnmatchedPairing, Subject: pr.Key()})
		}
	}
	for j, s := range sensors {
		if !matchedR[j] {
			res.UnmatchedSensors = append(res.UnmatchedSensors, s.ID)
			res.Events = append(res.Events, types.Event{Stage: types.StageAssign, Kind: types.EventUnmatchedSensor, Subject: s.ID})
		}
	}

	if len(edges) == 0 {
		return res, fmt.Errorf("assign: %w: no sensor keeps any of %d pairings inside the envelope",
			types.ErrNoMatch, len(pairings))
	}
	return res, nil
}

// usable sorts free sensors by ID and drops those whose calibration data is
// unusable or contradicts its own signal table, with one event per sensor.
func usable(sensors []types.SensorCalibration, mapper *calib.Mapper, events *[]types.Event) []types.SensorCalibration {
	sorted := append([]types.SensorCalibration(nil), sensors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out := make([]types.SensorCalibration, 0, len(sorted))
	for _, s := range sorted {
		if s.Allocated {
			continue
		}
		if err := calib.Check(s); err != nil {
			kind := types.EventInvalidCalibration
			if len(s.Coefficients) == 0 {
				kind = types.EventMissingCoefficients
			}
			*events = append(*events, types.Event{Stage: types.StageCalib, Kind: kind, Subject: s.ID, Detail: err.Error()})
			continue
		}
		if err := mapper.CheckTable(s); err != nil {
			*events = append(*events, types.Event{
				Stage: types.StageCalib, Kind: types.EventInvalidCalibration, Subject: s.ID, Detail: err.Error(),
			})
			continue
		}
		out = append(out, s)
	}
	return out
}
