// Package api implements the read-only HTTP surface of pairmatch serve.
//
// New(store) returns an http.Handler that serves:
//
//	GET /api/v1/health       latest run state and history size
//	GET /api/v1/runs         run summaries, newest first ([]RunSummary)
//	GET /api/v1/runs/{id}    one full run; 404 if unknown or evicted
//	GET /api/v1/assignments  assignments of the latest run (?run= selects another)
//	GET /api/v1/events       events of the latest run (?run=, ?kind= filter)
//	GET /api/v1/alerts       firing alerts and those resolved in the last hour
//	GET /metrics             Prometheus text exposition of the latest run
//
// Every endpoint returns 405 for non-GET methods. The /api/v1 endpoints
// respond with Content-Type: application/json. JSON types are in types.go.
package api
