// Package types defines the shared Go types passed between the event sources
// and the notifier engine. These are the canonical in-memory representations
// of alert traffic, separate from any wire format (Socket.IO, JSON envelope).
package types
