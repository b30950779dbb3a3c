package metrics

import (
	"bytes"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairmatch/pairmatch/internal/engine"
	"github.com/pairmatch/pairmatch/pkg/types"
)

func sampleRun() *engine.Run {
	return &engine.Run{
		ID: "run-1",
		Result: &engine.Result{
			Yield:    75,
			Pairings: []types.Pairing{{A: "A1", B: "B1"}, {A: "A2", B: "B2"}},
			Assignments: []types.Assignment{
				{Pairing: types.Pairing{A: "A1", B: "B1"}, SensorID: "S1", WorstMargin: 0.72},
			},
			Events: []types.Event{
				{Kind: types.EventOutlier, Subject: "B9"},
				{Kind: types.EventUnmatchedPairing, Subject: "A2/B2"},
				{Kind: types.EventOutlier, Subject: "B8"},
			},
		},
	}
}

func parse(t *testing.T, run *engine.Run) map[string]*dto.MetricFamily {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, run))
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(&buf)
	require.NoError(t, err, buf.String())
	return mfs
}

func TestWrite_RoundTrip(t *testing.T) {
	mfs := parse(t, sampleRun())

	require.Contains(t, mfs, Yield)
	assert.Equal(t, 75.0, mfs[Yield].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 2.0, mfs[Pairings].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 1.0, mfs[Assignments].GetMetric()[0].GetGauge().GetValue())

	byKind := make(map[string]float64)
	for _, m := range mfs[Events].GetMetric() {
		byKind[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"outlier": 2, "unmatched_pairing": 1}, byKind)

	wm := mfs[WorstMargin].GetMetric()
	require.Len(t, wm, 1)
	assert.InDelta(t, 0.72, wm[0].GetGauge().GetValue(), 1e-12)
	got := make(map[string]string)
	for _, l := range wm[0].GetLabel() {
		got[l.GetName()] = l.GetValue()
	}
	assert.Equal(t, map[string]string{"pairing": "A1/B1", "sensor": "S1"}, got)
}

func TestFamilies_EmptyRun(t *testing.T) {
	fams := Families(&engine.Run{ID: "empty"})
	names := make([]string, len(fams))
	for i, f := range fams {
		names[i] = f.GetName()
	}
	assert.Equal(t, []string{Assignments, Yield, Pairings}, names)
}
