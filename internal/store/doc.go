// Package store keeps the history of matching runs in memory. Runs older
// than the configured TTL are evicted by a background loop, except the most
// recent one, which is always retained so the API has something to serve.
package store
