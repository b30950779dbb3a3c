// Package metrics renders a matching run in the Prometheus text exposition
// format so the latest plan can be scraped.
package metrics
