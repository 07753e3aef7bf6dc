package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zonewatch/zonewatch/notifier/internal/config"
	"github.com/zonewatch/zonewatch/notifier/internal/socketio"
	"github.com/zonewatch/zonewatch/pkg/types"
)

// defaultHeartbeat is used when the open packet carries no ping settings.
// It matches the Engine.IO defaults (25s interval + 20s timeout).
const defaultHeartbeat = 45 * time.Second

type socketIOSource struct {
	cfg       config.Source
	url       string
	namespace string
	header    http.Header
	auth      json.RawMessage
	dialer    *websocket.Dialer
}

func newSocketIO(cfg config.Source) (*socketIOSource, error) {
	u, err := socketio.HandshakeURL(cfg.Endpoint, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	d, err := newDialer(cfg)
	if err != nil {
		return nil, fmt.Errorf("source: socketio dialer: %w", err)
	}
	ns := cfg.Namespace
	if !strings.HasPrefix(ns, "/") {
		ns = "/" + ns
	}
	return &socketIOSource{
		cfg:       cfg,
		url:       u,
		namespace: ns,
		header:    handshakeHeader(cfg.Auth),
		auth:      connectAuth(cfg.Auth),
		dialer:    d,
	}, nil
}

func (s *socketIOSource) Endpoint() string { return s.cfg.Endpoint }

func (s *socketIOSource) Run(ctx context.Context, emit Emit) error {
	return run(ctx, s.cfg.Endpoint, s.cfg.Reconnect, emit, s.session)
}

// session performs the Engine.IO handshake, joins the namespace and reads
// packets until the connection ends.
func (s *socketIOSource) session(ctx context.Context, emit Emit) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout)) //nolint:errcheck
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return false, fmt.Errorf("read open packet: %w", err)
	}
	ep, err := socketio.ParseEngine(frame)
	if err != nil {
		return false, err
	}
	open, err := socketio.ParseOpen(ep)
	if err != nil {
		return false, err
	}
	heartbeat := open.Deadline()
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	slog.Debug("source: engine.io session opened",
		"endpoint", s.cfg.Endpoint, "sid", open.SID, "heartbeat", heartbeat)

	if err := conn.WriteMessage(websocket.TextMessage, socketio.ConnectFrame(s.namespace, s.auth)); err != nil {
		return false, fmt.Errorf("send connect: %w", err)
	}

	connected := false
	for {
		conn.SetReadDeadline(time.Now().Add(heartbeat)) //nolint:errcheck
		mt, frame, err := conn.ReadMessage()
		if err != nil {
			return connected, fmt.Errorf("read: %w", err)
		}
		if mt != websocket.TextMessage {
			slog.Debug("source: skipping binary frame", "endpoint", s.cfg.Endpoint)
			continue
		}

		ep, err := socketio.ParseEngine(frame)
		if err != nil {
			slog.Warn("source: invalid engine.io frame", "endpoint", s.cfg.Endpoint, "err", err)
			continue
		}

		switch ep.Type {
		case socketio.EnginePing:
			if err := conn.WriteMessage(websocket.TextMessage, socketio.PongFrame()); err != nil {
				return connected, fmt.Errorf("send pong: %w", err)
			}
		case socketio.EngineClose:
			return connected, ErrServerClosed
		case socketio.EngineMessage:
			done, err := s.handlePacket(ep.Data, &connected, emit)
			if done {
				return connected, err
			}
		}
	}
}

// handlePacket processes one Socket.IO packet. done reports that the
// session must end with err.
func (s *socketIOSource) handlePacket(data []byte, connected *bool, emit Emit) (done bool, err error) {
	p, err := socketio.ParsePacket(data)
	if err != nil {
		slog.Warn("source: invalid socket.io packet", "endpoint", s.cfg.Endpoint, "err", err)
		return false, nil
	}
	if p.Namespace != s.namespace {
		return false, nil
	}

	switch p.Type {
	case socketio.Connect:
		if !*connected {
			*connected = true
			emit(types.Connected(s.cfg.Endpoint))
		}
	case socketio.ConnectError:
		return true, fmt.Errorf("%w: %s", ErrConnectRefused, p.ErrorMessage())
	case socketio.Disconnect:
		return true, ErrServerDisconnect
	case socketio.Event:
		name, args, err := p.Event()
		if err != nil {
			slog.Warn("source: invalid event packet", "endpoint", s.cfg.Endpoint, "err", err)
			return false, nil
		}
		if name != types.EventAlert {
			slog.Debug("source: ignoring event", "endpoint", s.cfg.Endpoint, "event", name)
			return false, nil
		}
		var payload json.RawMessage
		if len(args) > 0 {
			payload = args[0]
		}
		emit(types.AlertReceived(s.cfg.Endpoint, decodeAlert(payload)))
	default:
		slog.Debug("source: ignoring packet", "endpoint", s.cfg.Endpoint, "type", p.Type.String())
	}
	return false, nil
}
