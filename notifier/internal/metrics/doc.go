// Package metrics keeps the notifier's counters and renders them in the
// Prometheus text exposition format for GET /metrics.
package metrics
