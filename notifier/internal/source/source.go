package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zonewatch/zonewatch/notifier/internal/config"
	"github.com/zonewatch/zonewatch/pkg/types"
)

// Emit receives events from a source. Calls are made from one goroutine,
// in delivery order.
type Emit func(types.Event)

// Source is the common interface implemented by every event source.
type Source interface {
	// Run connects and emits events until ctx is cancelled. With
	// reconnection disabled, or after ErrServerDisconnect, it returns once
	// the connection ends.
	Run(ctx context.Context, emit Emit) error

	// Endpoint describes where the source connects, for logs and status.
	Endpoint() string
}

var (
	// ErrConnectRefused is returned when the server rejects the namespace
	// connection (Socket.IO CONNECT_ERROR).
	ErrConnectRefused = errors.New("source: connection refused by server")

	// ErrServerClosed is returned when the server closes the transport.
	// The source reconnects after it.
	ErrServerClosed = errors.New("source: server closed the connection")

	// ErrServerDisconnect is returned when the server explicitly disconnects
	// the client (Socket.IO DISCONNECT). The source does not reconnect.
	ErrServerDisconnect = errors.New("source: disconnected by server")
)

// New returns the appropriate Source for the given configuration.
func New(cfg config.Source) (Source, error) {
	switch cfg.Type {
	case "socketio", "":
		return newSocketIO(cfg)
	case "websocket":
		return newWebSocket(cfg)
	case "kafka":
		return newKafka(cfg)
	case "redis":
		return newRedis(cfg)
	default:
		return nil, fmt.Errorf("source: unsupported type %q", cfg.Type)
	}
}

// Stream runs src in a goroutine and returns a channel carrying its events.
// The channel is closed when src.Run returns.
func Stream(ctx context.Context, src Source, buf int) <-chan types.Event {
	ch := make(chan types.Event, buf)
	go func() {
		defer close(ch)
		err := src.Run(ctx, func(ev types.Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		})
		if err != nil {
			slog.Error("source: stopped", "endpoint", src.Endpoint(), "err", err)
		}
	}()
	return ch
}

// sessionFunc runs one connection until it ends. connected reports whether
// a connect event was emitted during the session.
type sessionFunc func(ctx context.Context, emit Emit) (connected bool, err error)

// run drives session in a reconnect loop with backoff.
func run(ctx context.Context, endpoint string, rc config.ReconnectConfig, emit Emit, session sessionFunc) error {
	bo := newBackoff(rc.Initial, rc.Max)

	for {
		if ctx.Err() != nil {
			return nil
		}

		connected, err := session(ctx, emit)
		if ctx.Err() != nil {
			if connected {
				emit(types.Disconnected(endpoint, ctx.Err()))
			}
			return nil
		}
		if connected {
			emit(types.Disconnected(endpoint, err))
			bo.reset()
		}

		if !rc.On() || errors.Is(err, ErrServerDisconnect) {
			return err
		}

		wait := bo.next()
		if connected {
			slog.Warn("source: connection lost, will reconnect",
				"endpoint", endpoint, "err", err, "retry_in", wait)
		} else {
			slog.Error("source: connect failed, will retry",
				"endpoint", endpoint, "err", err, "retry_in", wait)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// envelope is the JSON frame used by the websocket, kafka and redis sources.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// decodeEnvelope turns a JSON envelope into an event. It reports false for
// frames that are not JSON objects and for events other than "alert".
func decodeEnvelope(endpoint string, b []byte) (types.Event, bool) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		slog.Warn("source: invalid envelope", "endpoint", endpoint, "err", err)
		return types.Event{}, false
	}
	if env.Event != types.EventAlert {
		slog.Debug("source: ignoring event", "endpoint", endpoint, "event", env.Event)
		return types.Event{}, false
	}
	return types.AlertReceived(endpoint, decodeAlert(env.Data)), true
}

// decodeAlert decodes an alert payload without rejecting it.
func decodeAlert(raw json.RawMessage) types.AlertEvent {
	var a types.AlertEvent
	if len(raw) == 0 {
		return a
	}
	_ = json.Unmarshal(raw, &a)
	return a
}
