package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pairmatch/pairmatch/internal/alerts"
	"github.com/pairmatch/pairmatch/internal/metrics"
	"github.com/pairmatch/pairmatch/internal/store"
	"github.com/pairmatch/pairmatch/pkg/types"
)

// Handler serves the run history held in a store.
type Handler struct {
	store  *store.Store
	alerts *alerts.Engine
	mux    *http.ServeMux
}

// New creates a Handler wired to st and registers all routes. al may be nil
// when alerting is not configured.
func New(st *store.Store, al *alerts.Engine) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/runs", h.listRuns)
	h.mux.HandleFunc("/api/v1/runs/", h.getRun) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/assignments", h.assignments)
	h.mux.HandleFunc("/api/v1/events", h.events)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	resp := HealthResponse{State: "no_runs", RunCount: h.store.Count()}
	e, ok := h.store.Latest()
	if !ok {
		jsonResp(w, http.StatusOK, resp)
		return
	}
	resp.LatestRunID = e.Run.ID
	resp.LatestStarted = e.Run.StartedAt.UTC().Format(time.RFC3339)
	resp.State = "ok"
	if res := e.Run.Result; res != nil {
		resp.LatestYield = res.Yield
		if len(res.NoMatch) > 0 {
			resp.State = "no_match"
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	entries := h.store.List()
	out := make([]RunSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, Summary(e))
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" {
		h.listRuns(w, r)
		return
	}
	e, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}
	jsonResp(w, http.StatusOK, e.Run)
}

func (h *Handler) assignments(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	e, ok := h.selectRun(w, r)
	if !ok {
		return
	}
	out := make([]AssignmentResponse, 0)
	if e.Run.Result != nil {
		for _, a := range e.Run.Result.Assignments {
			out = append(out, AssignmentResponse{
				RunID:       e.Run.ID,
				ComponentA:  a.Pairing.A,
				ComponentB:  a.Pairing.B,
				SensorID:    a.SensorID,
				WorstMargin: a.WorstMargin,
				Ratios:      a.Pairing.Ratios,
				Predicted:   a.Predicted,
			})
		}
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	e, ok := h.selectRun(w, r)
	if !ok {
		return
	}
	kind := types.EventKind(r.URL.Query().Get("kind"))
	resp := EventsResponse{RunID: e.Run.ID, Events: make([]types.Event, 0)}
	if e.Run.Result != nil {
		for _, ev := range e.Run.Result.Events {
			if kind == "" || ev.Kind == kind {
				resp.Events = append(resp.Events, ev)
			}
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	e, ok := h.store.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", metrics.ContentType())
	if err := metrics.Write(w, e.Run); err != nil {
		slog.Warn("api: write metrics", "run", e.Run.ID, "error", err)
	}
}

// --- helpers ----------------------------------------------------------------

// selectRun resolves ?run= or falls back to the latest run, writing a 404
// when neither exists.
func (h *Handler) selectRun(w http.ResponseWriter, r *http.Request) (*store.Entry, bool) {
	var e *store.Entry
	var ok bool
	if id := r.URL.Query().Get("run"); id != "" {
		e, ok = h.store.Get(id)
	} else {
		e, ok = h.store.Latest()
	}
	if !ok {
		jsonErr(w, http.StatusNotFound, "run not found")
	}
	return e, ok
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// Summary condenses a stored run for listings and stream clients.
func Summary(e *store.Entry) RunSummary {
	run := e.Run
	s := RunSummary{
		ID:         run.ID,
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339),
		Committed:  run.Committed,
		NoMatch:    make([]string, 0),
	}
	if res := run.Result; res != nil {
		s.Yield = res.Yield
		s.Pairings = len(res.Pairings)
		s.Assignments = len(res.Assignments)
		s.Events = len(res.Events)
		for _, nm := range res.NoMatch {
			s.NoMatch = append(s.NoMatch, string(nm.Stage))
		}
	}
	return s
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
