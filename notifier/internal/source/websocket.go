package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zonewatch/zonewatch/notifier/internal/config"
	"github.com/zonewatch/zonewatch/pkg/types"
)

const (
	// pongWait is how long to wait for any frame (data or pong) before
	// treating the connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the client sends ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// writeTimeout is the deadline for a single control frame write.
	writeTimeout = 10 * time.Second

	// maxMessageSize bounds a single inbound envelope.
	maxMessageSize = 64 * 1024
)

// wsSource reads {"event","data"} envelopes from a plain WebSocket.
type wsSource struct {
	cfg    config.Source
	header http.Header
	dialer *websocket.Dialer

	pingPeriod time.Duration
	pongWait   time.Duration
}

func newWebSocket(cfg config.Source) (*wsSource, error) {
	d, err := newDialer(cfg)
	if err != nil {
		return nil, fmt.Errorf("source: websocket dialer: %w", err)
	}
	return &wsSource{
		cfg:        cfg,
		header:     handshakeHeader(cfg.Auth),
		dialer:     d,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}, nil
}

func (s *wsSource) Endpoint() string { return s.cfg.Endpoint }

func (s *wsSource) Run(ctx context.Context, emit Emit) error {
	return run(ctx, s.cfg.Endpoint, s.cfg.Reconnect, emit, s.session)
}

func (s *wsSource) session(ctx context.Context, emit Emit) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.Endpoint, s.header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.cfg.Endpoint, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	emit(types.Connected(s.cfg.Endpoint))

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongWait)) //nolint:errcheck
		return nil
	})

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, ErrServerClosed
			}
			return true, fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(s.pongWait)) //nolint:errcheck
		if mt != websocket.TextMessage {
			continue
		}
		if ev, ok := decodeEnvelope(s.cfg.Endpoint, msg); ok {
			emit(ev)
		}
	}
}

// pingLoop sends periodic ping frames until done is closed or a write fails.
func (s *wsSource) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
