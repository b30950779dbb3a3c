package metrics

import (
	"fmt"
	"io"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/pairmatch/pairmatch/internal/engine"
	"github.com/pairmatch/pairmatch/pkg/types"
)

// Metric names.
const (
	Yield       = "pairmatch_match_yield_percent"
	Pairings    = "pairmatch_pairings"
	Assignments = "pairmatch_assignments"
	Events      = "pairmatch_events"
	WorstMargin = "pairmatch_assignment_worst_margin"
)

// Families converts run into metric families, sorted by name.
func Families(run *engine.Run) []*dto.MetricFamily {
	res := run.Result
	if res == nil {
		res = &engine.Result{}
	}

	fams := []*dto.MetricFamily{
		gauge(Yield, "Matched pairings as a percentage of the smaller free pool.", res.Yield),
		gauge(Pairings, "A/B pairings chosen by the ratio stage.", float64(len(res.Pairings))),
		gauge(Assignments, "Pairings assigned to a sensor.", float64(len(res.Assignments))),
	}

	counts := make(map[types.EventKind]int)
	for _, e := range res.Events {
		counts[e.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	ev := &dto.MetricFamily{
		Name: proto.String(Events),
		Help: proto.String("Events emitted by the last run, by kind."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, k := range kinds {
		ev.Metric = append(ev.Metric, &dto.Metric{
			Label: labels("kind", k),
			Gauge: &dto.Gauge{Value: proto.Float64(float64(counts[types.EventKind(k)]))},
		})
	}
	if len(ev.Metric) > 0 {
		fams = append(fams, ev)
	}

	if len(res.Assignments) > 0 {
		wm := &dto.MetricFamily{
			Name: proto.String(WorstMargin),
			Help: proto.String("Smallest envelope margin of each assignment."),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, a := range res.Assignments {
			wm.Metric = append(wm.Metric, &dto.Metric{
				Label: labels("pairing", a.Pairing.Key(), "sensor", a.SensorID),
				Gauge: &dto.Gauge{Value: proto.Float64(a.WorstMargin)},
			})
		}
		fams = append(fams, wm)
	}

	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// Write renders run in the text exposition format.
func Write(w io.Writer, run *engine.Run) error {
	for _, mf := range Families(run) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ContentType is the media type of Write's output.
func ContentType() string {
	return string(expfmt.NewFormat(expfmt.TypeTextPlain))
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

// labels builds label pairs from alternating names and values. Pairs must be
// given in name order.
func labels(kv ...string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &dto.LabelPair{Name: proto.String(kv[i]), Value: proto.String(kv[i+1])})
	}
	return out
}
