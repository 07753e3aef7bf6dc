package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// EngineType is an Engine.IO packet type.
type EngineType byte

const (
	EngineOpen    EngineType = '0'
	EngineClose   EngineType = '1'
	EnginePing    EngineType = '2'
	EnginePong    EngineType = '3'
	EngineMessage EngineType = '4'
	EngineUpgrade EngineType = '5'
	EngineNoop    EngineType = '6'
)

// PacketType is a Socket.IO packet type.
type PacketType int

const (
	Connect PacketType = iota
	Disconnect
	Event
	Ack
	ConnectError
	BinaryEvent
	BinaryAck
)

func (t PacketType) String() string {
	switch t {
	case Connect:
		return "CONNECT"
	case Disconnect:
		return "DISCONNECT"
	case Event:
		return "EVENT"
	case Ack:
		return "ACK"
	case ConnectError:
		return "CONNECT_ERROR"
	case BinaryEvent:
		return "BINARY_EVENT"
	case BinaryAck:
		return "BINARY_ACK"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
}

// Protocol version constants sent in the handshake query.
const (
	EngineVersion = "4"
	Transport     = "websocket"
)

var (
	// ErrEmptyPacket is returned when a frame carries no type digit.
	ErrEmptyPacket = errors.New("socketio: empty packet")

	errNotEvent = errors.New("socketio: packet is not an event")
)

// OpenPayload is the JSON body of an Engine.IO open packet.
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// Deadline is how long a client may go without hearing from the server
// before treating the connection as dead.
func (o OpenPayload) Deadline() time.Duration {
	return time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
}

// EnginePacket is a decoded Engine.IO frame.
type EnginePacket struct {
	Type EngineType
	Data []byte
}

// ParseEngine decodes a text Engine.IO frame.
func ParseEngine(frame []byte) (EnginePacket, error) {
	if len(frame) == 0 {
		return EnginePacket{}, ErrEmptyPacket
	}
	t := EngineType(frame[0])
	if t < EngineOpen || t > EngineNoop {
		return EnginePacket{}, fmt.Errorf("socketio: unknown engine packet type %q", frame[0])
	}
	return EnginePacket{Type: t, Data: frame[1:]}, nil
}

// ParseOpen decodes the payload of an open packet.
func ParseOpen(p EnginePacket) (OpenPayload, error) {
	var o OpenPayload
	if p.Type != EngineOpen {
		return o, fmt.Errorf("socketio: expected open packet, got %q", byte(p.Type))
	}
	if err := json.Unmarshal(p.Data, &o); err != nil {
		return o, fmt.Errorf("socketio: parse open payload: %w", err)
	}
	return o, nil
}

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type        PacketType
	Namespace   string
	ID          *int
	Attachments int
	Data        json.RawMessage
}

// ParsePacket decodes a Socket.IO packet (the payload of an Engine.IO
// message frame).
func ParsePacket(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, ErrEmptyPacket
	}
	p := Packet{Namespace: "/"}
	if b[0] < '0' || b[0] > '6' {
		return Packet{}, fmt.Errorf("socketio: unknown packet type %q", b[0])
	}
	p.Type = PacketType(b[0] - '0')
	i := 1

	if p.Type == BinaryEvent || p.Type == BinaryAck {
		dash := strings.IndexByte(string(b[i:]), '-')
		if dash < 0 {
			return Packet{}, fmt.Errorf("socketio: binary packet without attachment count")
		}
		n, err := strconv.Atoi(string(b[i : i+dash]))
		if err != nil {
			return Packet{}, fmt.Errorf("socketio: attachment count: %w", err)
		}
		p.Attachments = n
		i += dash + 1
	}

	if i < len(b) && b[i] == '/' {
		end := strings.IndexByte(string(b[i:]), ',')
		if end < 0 {
			p.Namespace = string(b[i:])
			return p, nil
		}
		p.Namespace = string(b[i : i+end])
		i += end + 1
	}

	start := i
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i > start {
		id, err := strconv.Atoi(string(b[start:i]))
		if err != nil {
			return Packet{}, fmt.Errorf("socketio: ack id: %w", err)
		}
		p.ID = &id
	}

	if i < len(b) {
		p.Data = json.RawMessage(b[i:])
	}
	return p, nil
}

// Encode renders p as the payload of an Engine.IO message frame.
func (p Packet) Encode() []byte {
	var sb strings.Builder
	sb.WriteByte(byte('0' + p.Type))
	if p.Type == BinaryEvent || p.Type == BinaryAck {
		sb.WriteString(strconv.Itoa(p.Attachments))
		sb.WriteByte('-')
	}
	if p.Namespace != "" && p.Namespace != "/" {
		sb.WriteString(p.Namespace)
		sb.WriteByte(',')
	}
	if p.ID != nil {
		sb.WriteString(strconv.Itoa(*p.ID))
	}
	sb.Write(p.Data)
	return []byte(sb.String())
}

// Event returns the event name and arguments of an EVENT packet.
func (p Packet) Event() (string, []json.RawMessage, error) {
	if p.Type != Event {
		return "", nil, errNotEvent
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(p.Data, &parts); err != nil {
		return "", nil, fmt.Errorf("socketio: event payload: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("socketio: event payload has no name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("socketio: event name: %w", err)
	}
	return name, parts[1:], nil
}

// ErrorMessage returns the message carried by a CONNECT_ERROR packet.
func (p Packet) ErrorMessage() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(p.Data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	var s string
	if err := json.Unmarshal(p.Data, &s); err == nil {
		return s
	}
	return string(p.Data)
}

// Message wraps a Socket.IO packet in an Engine.IO message frame.
func Message(p Packet) []byte {
	return append([]byte{byte(EngineMessage)}, p.Encode()...)
}

// ConnectFrame returns the frame a client sends to join namespace, with an
// optional auth payload.
func ConnectFrame(namespace string, auth json.RawMessage) []byte {
	return Message(Packet{Type: Connect, Namespace: namespace, Data: auth})
}

// PongFrame is the reply to a server ping.
func PongFrame() []byte { return []byte{byte(EnginePong)} }

// HandshakeURL turns an http(s) or ws(s) base endpoint into the WebSocket
// transport URL, e.g. http://host:5000 -> ws://host:5000/socket.io/?EIO=4&transport=websocket.
func HandshakeURL(endpoint, path string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("socketio: parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("socketio: unsupported scheme %q in %q", u.Scheme, endpoint)
	}
	if u.Host == "" {
		return "", fmt.Errorf("socketio: endpoint %q has no host", endpoint)
	}
	if path == "" {
		path = "/socket.io/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path

	q := u.Query()
	q.Set("EIO", EngineVersion)
	q.Set("transport", Transport)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
