package api

import "github.com/pairmatch/pairmatch/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State         string  `json:"state"` // ok | no_match | no_runs
	RunCount      int     `json:"run_count"`
	LatestRunID   string  `json:"latest_run_id,omitempty"`
	LatestYield   float64 `json:"latest_match_yield"`
	LatestStarted string  `json:"latest_started_at,omitempty"` // RFC3339
}

// RunSummary is one entry of GET /api/v1/runs.
type RunSummary struct {
	ID          string   `json:"id"`
	StartedAt   string   `json:"started_at"`  // RFC3339
	FinishedAt  string   `json:"finished_at"` // RFC3339
	Committed   int      `json:"committed"`
	Yield       float64  `json:"match_yield"`
	Pairings    int      `json:"pairings"`
	Assignments int      `json:"assignments"`
	Events      int      `json:"events"`
	NoMatch     []string `json:"no_match_stages"`
}

// AssignmentResponse is one entry of GET /api/v1/assignments.
type AssignmentResponse struct {
	RunID       string    `json:"run_id"`
	ComponentA  string    `json:"component_a"`
	ComponentB  string    `json:"component_b"`
	SensorID    string    `json:"sensor_id"`
	WorstMargin float64   `json:"worst_margin"`
	Ratios      []float64 `json:"ratios"`
	Predicted   []float64 `json:"predicted"`
}

// EventsResponse is the payload for GET /api/v1/events.
type EventsResponse struct {
	RunID  string        `json:"run_id"`
	Events []types.Event `json:"events"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
