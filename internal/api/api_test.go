package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pairmatch/pairmatch/internal/alerts"
	"github.com/pairmatch/pairmatch/internal/api"
	"github.com/pairmatch/pairmatch/internal/config"
	"github.com/pairmatch/pairmatch/internal/engine"
	"github.com/pairmatch/pairmatch/internal/store"
	"github.com/pairmatch/pairmatch/pkg/types"
)

// --- test helpers -----------------------------------------------------------

func newStore(runs ...*engine.Run) *store.Store {
	st := store.New(time.Hour)
	for _, r := range runs {
		st.Put(r)
	}
	return st
}

func matchedRun(id string) *engine.Run {
	start := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return &engine.Run{
		ID:         id,
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Result: &engine.Result{
			Pairings: []types.Pairing{{A: "A1", B: "B1", Ratios: []float64{13, 13.1}}},
			Assignments: []types.Assignment{{
				Pairing:     types.Pairing{A: "A1", B: "B1", Ratios: []float64{13, 13.1}},
				SensorID:    "S1",
				Predicted:   []float64{20, 35},
				WorstMargin: 0.72,
			}},
			Yield: 50,
			Events: []types.Event{
				{Stage: types.StageOutlier, Kind: types.EventOutlier, Subject: "B9"},
				{Stage: types.StageRatio, Kind: types.EventUnmatchedComponent, Subject: "A2"},
			},
		},
	}
}

func emptyRun(id string) *engine.Run {
	return &engine.Run{
		ID: id,
		Result: &engine.Result{
			NoMatch: []engine.NoMatch{{Stage: types.StageRatio, Reason: "ratio: no match"}},
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	rr := get(t, api.New(newStore(), nil), "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.State != "no_runs" || resp.RunCount != 0 {
		t.Errorf("got %+v, want no_runs with 0 runs", resp)
	}
}

func TestHealth_States(t *testing.T) {
	tests := []struct {
		name  string
		runs  []*engine.Run
		state string
		yield float64
	}{
		{"matched", []*engine.Run{matchedRun("r1")}, "ok", 50},
		{"latest empty", []*engine.Run{matchedRun("r1"), emptyRun("r2")}, "no_match", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp api.HealthResponse
			decode(t, get(t, api.New(newStore(tt.runs...), nil), "/api/v1/health"), &resp)
			if resp.State != tt.state {
				t.Errorf("state: got %q, want %q", resp.State, tt.state)
			}
			if resp.LatestYield != tt.yield {
				t.Errorf("latest_match_yield: got %v, want %v", resp.LatestYield, tt.yield)
			}
			if resp.RunCount != len(tt.runs) {
				t.Errorf("run_count: got %d, want %d", resp.RunCount, len(tt.runs))
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := api.New(newStore(matchedRun("r1")), nil)
	for _, path := range []string{"/api/v1/health", "/api/v1/runs", "/api/v1/runs/r1", "/api/v1/assignments", "/api/v1/events", "/api/v1/alerts", "/metrics"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
	}
}

// --- /api/v1/runs -----------------------------------------------------------

func TestListRuns(t *testing.T) {
	rr := get(t, api.New(newStore(matchedRun("r1"), emptyRun("r2")), nil), "/api/v1/runs")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp []api.RunSummary
	decode(t, rr, &resp)
	if len(resp) != 2 {
		t.Fatalf("runs: got %d, want 2", len(resp))
	}
	byID := map[string]api.RunSummary{resp[0].ID: resp[0], resp[1].ID: resp[1]}
	if s := byID["r1"]; s.Assignments != 1 || s.Yield != 50 || s.StartedAt != "2026-02-03T04:05:06Z" {
		t.Errorf("r1 summary: got %+v", s)
	}
	if s := byID["r2"]; len(s.NoMatch) != 1 || s.NoMatch[0] != "ratio" {
		t.Errorf("r2 no_match_stages: got %v", s.NoMatch)
	}
}

func TestListRuns_Empty(t *testing.T) {
	rr := get(t, api.New(newStore(), nil), "/api/v1/runs")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("body: got %s, want []", got)
	}
}

func TestGetRun(t *testing.T) {
	h := api.New(newStore(matchedRun("r1")), nil)

	rr := get(t, h, "/api/v1/runs/r1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var run engine.Run
	decode(t, rr, &run)
	if run.ID != "r1" || len(run.Result.Assignments) != 1 {
		t.Errorf("run: got %+v", run)
	}

	if rr := get(t, h, "/api/v1/runs/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown run: got %d, want 404", rr.Code)
	}
}

// --- /api/v1/assignments and /api/v1/events ----------------------------------

func TestAssignments_Latest(t *testing.T) {
	rr := get(t, api.New(newStore(matchedRun("r1")), nil), "/api/v1/assignments")
	var resp []api.AssignmentResponse
	decode(t, rr, &resp)
	if len(resp) != 1 {
		t.Fatalf("assignments: got %d, want 1", len(resp))
	}
	a := resp[0]
	if a.RunID != "r1" || a.ComponentA != "A1" || a.ComponentB != "B1" || a.SensorID != "S1" || a.WorstMargin != 0.72 {
		t.Errorf("assignment: got %+v", a)
	}
}

func TestAssignments_SelectRunAndMissing(t *testing.T) {
	h := api.New(newStore(matchedRun("r1"), emptyRun("r2")), nil)

	var latest []api.AssignmentResponse
	decode(t, get(t, h, "/api/v1/assignments"), &latest)
	if len(latest) != 0 {
		t.Errorf("latest run assignments: got %d, want 0", len(latest))
	}

	var older []api.AssignmentResponse
	decode(t, get(t, h, "/api/v1/assignments?run=r1"), &older)
	if len(older) != 1 {
		t.Errorf("?run=r1 assignments: got %d, want 1", len(older))
	}

	if rr := get(t, api.New(newStore(), nil), "/api/v1/assignments"); rr.Code != http.StatusNotFound {
		t.Errorf("empty store: got %d, want 404", rr.Code)
	}
}

func TestEvents_FilterByKind(t *testing.T) {
	h := api.New(newStore(matchedRun("r1")), nil)

	var all api.EventsResponse
	decode(t, get(t, h, "/api/v1/events"), &all)
	if all.RunID != "r1" || len(all.Events) != 2 {
		t.Errorf("events: got %+v", all)
	}

	var outliers api.EventsResponse
	decode(t, get(t, h, "/api/v1/events?kind=outlier"), &outliers)
	if len(outliers.Events) != 1 || outliers.Events[0].Subject != "B9" {
		t.Errorf("outlier events: got %+v", outliers.Events)
	}
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics(t *testing.T) {
	rr := get(t, api.New(newStore(matchedRun("r1")), nil), "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"pairmatch_match_yield_percent 50",
		`pairmatch_assignment_worst_margin{pairing="A1/B1",sensor="S1"} 0.72`,
		`pairmatch_events{kind="outlier"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics body missing %q:\n%s", want, body)
		}
	}
}

func TestMetrics_NoRuns(t *testing.T) {
	if rr := get(t, api.New(newStore(), nil), "/metrics"); rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rr.Code)
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts(t *testing.T) {
	st := newStore()
	rr := get(t, api.New(st, nil), "/api/v1/alerts")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("without engine: got %s, want []", got)
	}

	al, err := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "low-yield", Condition: "match_yield < 60"},
	}})
	if err != nil {
		t.Fatalf("alerts.New: %v", err)
	}
	al.Evaluate(matchedRun("r1"))

	var resp []alerts.Alert
	decode(t, get(t, api.New(st, al), "/api/v1/alerts"), &resp)
	if len(resp) != 1 || resp[0].RuleName != "low-yield" || resp[0].State != "firing" {
		t.Errorf("alerts: got %+v", resp)
	}
}
