// Package auth provides API-key authentication for the HTTP API.
//
// APIKey wraps a handler. When mode is "apikey" and a key is configured,
// requests must carry the key in the configured header; otherwise they get
// 401 Unauthorized. The health endpoint stays open for liveness probes.
package auth
