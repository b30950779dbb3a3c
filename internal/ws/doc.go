// Package ws streams run summaries to WebSocket clients.
//
// A Hub sends the latest run summary to each client on connect and pushes a
// new message whenever a newer run lands in the store. The hub polls the
// store on a fixed interval. Messages look like:
//
//	{"event": "run", "data": { /* api.RunSummary */ }}
//	{"event": "idle"}                  // no run stored yet
//
// The upgrader accepts all origins; restrict them at the reverse proxy.
// serve mounts the hub at /ws/runs.
package ws
