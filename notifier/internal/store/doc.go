// Package store provides the thread-safe in-memory history of presented
// notifications, read by the status API.
//
// New(size, ttl) creates a Store holding at most size notifications.
// Put(n) records one; when full the oldest is dropped.
// List(limit) returns live entries newest first; entries older than ttl are
// excluded and later removed by Evict.
// Run(ctx) starts the background eviction loop, ticking at ttl/2 (minimum
// 1s) until ctx is cancelled.
package store
