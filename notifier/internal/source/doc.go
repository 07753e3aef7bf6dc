// Package source implements the real-time connections alerts arrive on.
//
// Every Source emits a typed event stream: a connect event each time a
// connection is established, an alert event for every "alert" message, and
// a disconnect event when an established connection ends. Sources reconnect
// with truncated exponential backoff unless reconnection is disabled.
//
// Implementations:
//   - socketio : Socket.IO v5 over the Engine.IO v4 WebSocket transport
//   - websocket: plain WebSocket carrying {"event","data"} JSON envelopes
//   - kafka    : segmentio/kafka-go reader; message values are envelopes
//   - redis    : go-redis Pub/Sub channel; payloads are envelopes
//
// Stream(ctx, src, buf) runs a source in its own goroutine and hands events
// to a single consumer through a buffered channel, so slow presenters do not
// stall transport heartbeats and delivery order is preserved.
package source
