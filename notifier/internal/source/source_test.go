package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zonewatch/zonewatch/notifier/internal/config"
	"github.com/zonewatch/zonewatch/pkg/types"
)

// --- helpers ----------------------------------------------------------------

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// startServer runs handle for every WebSocket connection accepted by a test
// HTTP server and returns the server's http:// URL.
func startServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func noReconnect() config.ReconnectConfig {
	off := false
	return config.ReconnectConfig{Enabled: &off, Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond}
}

func fastReconnect() config.ReconnectConfig {
	return config.ReconnectConfig{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond}
}

// next reads one event from ch with a short deadline.
func next(t *testing.T, ch <-chan types.Event) types.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return types.Event{}
}

// collect runs src until it returns and records every emitted event.
func collect(t *testing.T, src Source) ([]types.Event, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		events []types.Event
	)
	err := src.Run(ctx, func(ev types.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	mu.Lock()
	defer mu.Unlock()
	return events, err
}

func kinds(events []types.Event) []types.Kind {
	out := make([]types.Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// --- New --------------------------------------------------------------------

func TestNew_Types(t *testing.T) {
	cases := []config.Source{
		{Type: "socketio", Endpoint: "http://localhost:5000"},
		{Type: "websocket", Endpoint: "ws://localhost:8080/ws"},
		{Type: "kafka", Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "alerts"}},
		{Type: "redis", Redis: config.RedisConfig{Addr: "localhost:6379", Channel: "alerts"}},
	}
	for _, c := range cases {
		src, err := New(c)
		if err != nil {
			t.Errorf("%s: New: %v", c.Type, err)
			continue
		}
		if src.Endpoint() == "" {
			t.Errorf("%s: empty endpoint", c.Type)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	cases := []config.Source{
		{Type: "mqtt"},
		{Type: "socketio", Endpoint: "ftp://host"},
		{Type: "kafka"},
		{Type: "websocket", Endpoint: "ws://x", Auth: config.AuthConfig{Mode: "mtls", CertFile: "/nonexistent.pem", KeyFile: "/nonexistent.key"}},
	}
	for _, c := range cases {
		if _, err := New(c); err == nil {
			t.Errorf("%+v: expected error, got nil", c)
		}
	}
}

func TestKafkaSource_Endpoint(t *testing.T) {
	src, err := New(config.Source{Type: "kafka", Kafka: config.KafkaConfig{Brokers: []string{"b1:9092", "b2:9092"}, Topic: "zone-alerts"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := src.Endpoint(), "kafka://b1:9092,b2:9092/zone-alerts"; got != want {
		t.Errorf("Endpoint: got %q, want %q", got, want)
	}
}

func TestRedisSource_UnreachableFailsBeforeConnect(t *testing.T) {
	cfg := config.Source{
		Type:      "redis",
		Redis:     config.RedisConfig{Addr: "127.0.0.1:1", Channel: "alerts"},
		Reconnect: noReconnect(),
	}
	src, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := src.Endpoint(), "redis://127.0.0.1:1/alerts"; got != want {
		t.Errorf("Endpoint: got %q, want %q", got, want)
	}

	events, err := collect(t, src)
	if err == nil || !strings.Contains(err.Error(), "redis ping") {
		t.Errorf("Run: got %v, want redis ping error", err)
	}
	if len(events) != 0 {
		t.Errorf("events: got %v, want none", kinds(events))
	}
}

// --- envelope ---------------------------------------------------------------

func TestDecodeEnvelope(t *testing.T) {
	ev, ok := decodeEnvelope("ws://x", []byte(`{"event":"alert","data":{"alert_type":"Fire","zone_name":"Warehouse 3"}}`))
	if !ok {
		t.Fatal("alert envelope: want ok")
	}
	if ev.Kind != types.KindAlert || ev.Alert.Message() != "New Alert: Fire in Warehouse 3" {
		t.Errorf("got %+v", ev)
	}
	if ev.Endpoint != "ws://x" {
		t.Errorf("endpoint: got %q", ev.Endpoint)
	}
}

func TestDecodeEnvelope_MissingData(t *testing.T) {
	ev, ok := decodeEnvelope("ws://x", []byte(`{"event":"alert"}`))
	if !ok {
		t.Fatal("want ok for alert without data")
	}
	if ev.Alert != (types.AlertEvent{}) {
		t.Errorf("alert: got %+v, want zero", ev.Alert)
	}
}

func TestDecodeEnvelope_Ignored(t *testing.T) {
	for _, raw := range []string{`not json`, `{"event":"snapshot","data":{}}`, `{"data":{}}`, `[]`} {
		if _, ok := decodeEnvelope("ws://x", []byte(raw)); ok {
			t.Errorf("%s: want ignored", raw)
		}
	}
}

// --- backoff ----------------------------------------------------------------

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 400*time.Millisecond)
	for i, base := range []time.Duration{100, 200, 400, 400} {
		base *= time.Millisecond
		d := b.next()
		lo, hi := base*3/4, base*5/4
		if d < lo || d > hi {
			t.Errorf("step %d: got %v, want within [%v, %v]", i, d, lo, hi)
		}
	}
	b.reset()
	if d := b.next(); d > 125*time.Millisecond {
		t.Errorf("after reset: got %v, want ~100ms", d)
	}
}

// --- run --------------------------------------------------------------------

func TestRun_DisabledReconnectReturnsSessionError(t *testing.T) {
	boom := errors.New("boom")
	var events []types.Event
	err := run(context.Background(), "x", noReconnect(), func(ev types.Event) { events = append(events, ev) },
		func(context.Context, Emit) (bool, error) { return false, boom })

	if !errors.Is(err, boom) {
		t.Errorf("err: got %v, want boom", err)
	}
	if len(events) != 0 {
		t.Errorf("events: got %v, want none (never connected)", kinds(events))
	}
}

func TestRun_ConnectedSessionEmitsDisconnect(t *testing.T) {
	boom := errors.New("boom")
	var events []types.Event
	emit := func(ev types.Event) { events = append(events, ev) }
	err := run(context.Background(), "x", noReconnect(), emit,
		func(_ context.Context, emit Emit) (bool, error) {
			emit(types.Connected("x"))
			return true, boom
		})

	if !errors.Is(err, boom) {
		t.Errorf("err: got %v", err)
	}
	want := []types.Kind{types.KindConnect, types.KindDisconnect}
	if got := kinds(events); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	if !errors.Is(events[1].Err, boom) {
		t.Errorf("disconnect cause: got %v", events[1].Err)
	}
}

func TestRun_ServerDisconnectIsTerminal(t *testing.T) {
	var events []types.Event
	attempts := 0
	err := run(context.Background(), "x", fastReconnect(), func(ev types.Event) { events = append(events, ev) },
		func(_ context.Context, emit Emit) (bool, error) {
			attempts++
			emit(types.Connected("x"))
			return true, ErrServerDisconnect
		})

	if !errors.Is(err, ErrServerDisconnect) {
		t.Errorf("err: got %v, want ErrServerDisconnect", err)
	}
	if attempts != 1 {
		t.Errorf("attempts: got %d, want 1", attempts)
	}
	if got := kinds(events); len(got) != 2 || got[1] != types.KindDisconnect {
		t.Errorf("events: got %v, want connect, disconnect", got)
	}
}

func TestRun_RetriesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	err := run(ctx, "x", fastReconnect(), func(types.Event) {},
		func(context.Context, Emit) (bool, error) {
			attempts++
			if attempts == 3 {
				cancel()
			}
			return false, errors.New("refused")
		})

	if err != nil {
		t.Errorf("err after cancel: got %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts: got %d, want 3", attempts)
	}
}

// --- Stream -----------------------------------------------------------------

type fakeSource struct {
	events []types.Event
}

func (f *fakeSource) Endpoint() string { return "fake" }

func (f *fakeSource) Run(_ context.Context, emit Emit) error {
	for _, ev := range f.events {
		emit(ev)
	}
	return nil
}

func TestStream_PreservesOrderAndCloses(t *testing.T) {
	src := &fakeSource{events: []types.Event{
		types.Connected("fake"),
		types.AlertReceived("fake", types.AlertEvent{AlertType: "1"}),
		types.AlertReceived("fake", types.AlertEvent{AlertType: "2"}),
		types.AlertReceived("fake", types.AlertEvent{AlertType: "3"}),
	}}

	ch := Stream(context.Background(), src, 1)
	var got []string
	for ev := range ch {
		if ev.Kind == types.KindAlert {
			got = append(got, ev.Alert.AlertType)
		}
	}
	if len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Errorf("order: got %v, want [1 2 3]", got)
	}
}
