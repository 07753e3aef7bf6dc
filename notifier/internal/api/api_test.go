package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zonewatch/zonewatch/notifier/internal/alerts"
	"github.com/zonewatch/zonewatch/notifier/internal/api"
	"github.com/zonewatch/zonewatch/notifier/internal/metrics"
	"github.com/zonewatch/zonewatch/notifier/internal/store"
	"github.com/zonewatch/zonewatch/pkg/types"
)

// --- test helpers -----------------------------------------------------------

var src = api.SourceInfo{Type: "socketio", Endpoint: "http://localhost:5000"}

func setup(t *testing.T, events ...types.Event) http.Handler {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	st := store.New(50, time.Hour)
	m := metrics.New()
	e := alerts.New(nil, 0, st, m)
	for _, ev := range events {
		e.Handle(context.Background(), ev)
	}
	return api.New(e, st, src, m)
}

func alert(typ, zone string) types.Event {
	return types.AlertReceived("http://localhost:5000", types.AlertEvent{AlertType: typ, ZoneName: zone})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_NotConnected(t *testing.T) {
	h := setup(t)
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.Connected {
		t.Error("connected: got true, want false")
	}
	if resp.Endpoint != "http://localhost:5000" || resp.Source != "socketio" {
		t.Errorf("endpoint/source: got %q/%q", resp.Endpoint, resp.Source)
	}
	if resp.LastAlert != nil {
		t.Errorf("last_alert: got %+v, want nil", resp.LastAlert)
	}
}

func TestHealth_ConnectedWithAlerts(t *testing.T) {
	h := setup(t,
		types.Connected("http://localhost:5000"),
		alert("Fire", "Warehouse 3"),
		alert("Smoke", "Dock 1"),
	)
	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)

	if !resp.Connected || resp.Connects != 1 || resp.Alerts != 2 {
		t.Errorf("health: %+v", resp)
	}
	if resp.LastAlert == nil || resp.LastAlert.Message != "New Alert: Smoke in Dock 1" {
		t.Errorf("last_alert: %+v", resp.LastAlert)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := setup(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/health", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_Empty(t *testing.T) {
	h := setup(t)
	rr := get(t, h, "/api/v1/alerts")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp []api.AlertResponse
	decode(t, rr, &resp)
	if len(resp) != 0 {
		t.Errorf("alerts: got %d, want 0", len(resp))
	}
}

func TestAlerts_NewestFirstWithDefaultLimit(t *testing.T) {
	var events []types.Event
	for i := 0; i < 12; i++ {
		events = append(events, alert("Fire", string(rune('A'+i))))
	}
	h := setup(t, events...)

	var resp []api.AlertResponse
	decode(t, get(t, h, "/api/v1/alerts"), &resp)

	if len(resp) != 10 {
		t.Fatalf("alerts: got %d, want 10", len(resp))
	}
	if resp[0].ZoneName != "L" || resp[9].ZoneName != "C" {
		t.Errorf("order: first=%q last=%q", resp[0].ZoneName, resp[9].ZoneName)
	}
	if resp[0].ID == "" || resp[0].ReceivedAt == "" {
		t.Errorf("fields missing: %+v", resp[0])
	}
}

func TestAlerts_Limit(t *testing.T) {
	h := setup(t, alert("Fire", "A"), alert("Smoke", "B"), alert("Flood", "C"))

	var resp []api.AlertResponse
	decode(t, get(t, h, "/api/v1/alerts?limit=2"), &resp)
	if len(resp) != 2 || resp[0].Message != "New Alert: Flood in C" {
		t.Errorf("alerts: %+v", resp)
	}
}

func TestAlerts_BadLimit(t *testing.T) {
	h := setup(t)
	for _, q := range []string{"0", "-1", "abc"} {
		if rr := get(t, h, "/api/v1/alerts?limit="+q); rr.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: got %d, want 400", q, rr.Code)
		}
	}
}

func TestAlerts_MethodNotAllowed(t *testing.T) {
	h := setup(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/alerts", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_Exposition(t *testing.T) {
	h := setup(t, types.Connected("http://localhost:5000"), alert("Fire", "A"))
	rr := get(t, h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"notifier_alerts_received_total 1", "notifier_connected 1"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func TestJSONContentType(t *testing.T) {
	h := setup(t)
	for _, path := range []string{"/api/v1/health", "/api/v1/alerts"} {
		if ct := get(t, h, path).Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
	}
}
