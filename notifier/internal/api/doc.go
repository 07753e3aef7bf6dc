// Package api implements the read-only HTTP status API of the notifier.
//
// New returns an http.Handler that serves:
//
//	GET /api/v1/health   connection state, endpoint, source type, counters, last alert
//	GET /api/v1/alerts   recent notifications, newest first (?limit=N, default 10)
//	GET /metrics         Prometheus text exposition
//
// JSON endpoints answer non-GET methods with 405. No external HTTP framework
// is used.
package api
