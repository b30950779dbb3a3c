package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pairmatch/pairmatch/internal/engine"
	"github.com/pairmatch/pairmatch/pkg/types"
)

// condition is a parsed "field op value" rule expression.
//
// Numeric fields:
//
//	match_yield  pairings  assignments  eligible_a  eligible_b
//	unmatched_pairings  unmatched_sensors  events  events.<kind>
//
// The no_match field compares a matching stage name with == only:
//
//	no_match == ratio
//	no_match == assign
type condition struct {
	field     string
	op        string
	threshold float64
	stage     types.Stage
}

var numericFields = map[string]bool{
	"match_yield": true, "pairings": true, "assignments": true,
	"eligible_a": true, "eligible_b": true,
	"unmatched_pairings": true, "unmatched_sensors": true, "events": true,
}

// parseCondition validates cond.
func parseCondition(cond string) (condition, error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("want \"field op value\", got %q", cond)
	}
	c := condition{field: parts[0], op: parts[1]}

	if c.field == "no_match" {
		if c.op != "==" {
			return condition{}, fmt.Errorf("no_match supports == only")
		}
		c.stage = types.Stage(parts[2])
		if c.stage != types.StageRatio && c.stage != types.StageAssign {
			return condition{}, fmt.Errorf("no_match stage %q: want %s or %s", parts[2], types.StageRatio, types.StageAssign)
		}
		return c, nil
	}

	if !numericFields[c.field] && !strings.HasPrefix(c.field, "events.") {
		return condition{}, fmt.Errorf("unknown field %q", c.field)
	}
	switch c.op {
	case ">", ">=", "<", "<=", "==":
	default:
		return condition{}, fmt.Errorf("unknown operator %q", c.op)
	}
	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return condition{}, fmt.Errorf("threshold %q: %w", parts[2], err)
	}
	c.threshold = v
	return c, nil
}

// eval reports whether c holds for res and the value that triggered it.
func (c condition) eval(res *engine.Result) (bool, float64) {
	if c.field == "no_match" {
		for _, nm := range res.NoMatch {
			if nm.Stage == c.stage {
				return true, 1
			}
		}
		return false, 0
	}
	v := numericField(c.field, res)
	return compareFloat(v, c.op, c.threshold), v
}

func numericField(field string, res *engine.Result) float64 {
	switch field {
	case "match_yield":
		return res.Yield
	case "pairings":
		return float64(len(res.Pairings))
	case "assignments":
		return float64(len(res.Assignments))
	case "eligible_a":
		return float64(res.EligibleA)
	case "eligible_b":
		return float64(res.EligibleB)
	case "unmatched_pairings":
		return float64(len(res.UnmatchedPairings))
	case "unmatched_sensors":
		return float64(len(res.UnmatchedSensors))
	case "events":
		return float64(len(res.Events))
	}
	kind := types.EventKind(strings.TrimPrefix(field, "events."))
	n := 0
	for _, e := range res.Events {
		if e.Kind == kind {
			n++
		}
	}
	return float64(n)
}

func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
