// Package alerts evaluates threshold rules against finished runs and notifies
// webhooks when a rule starts or stops firing.
package alerts
