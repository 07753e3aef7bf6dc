package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func parse(t *testing.T, text string) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse exposition: %v\n%s", err, text)
	}
	return mfs
}

func value(mf *dto.MetricFamily) float64 {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return -1
	}
	m := mf.GetMetric()[0]
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestMetrics_WriteTextRoundTrip(t *testing.T) {
	m := New()
	m.IncConnects()
	m.IncReceived()
	m.IncReceived()
	m.IncPresented()
	m.IncSuppressed()
	m.IncPresentErrors("slack")
	m.IncPresentErrors("slack")
	m.IncPresentErrors("mail")

	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	mfs := parse(t, buf.String())

	checks := map[string]float64{
		Connects:         1,
		Disconnects:      0,
		AlertsReceived:   2,
		AlertsPresented:  1,
		AlertsSuppressed: 1,
		Connected:        1,
	}
	for name, want := range checks {
		if got := value(mfs[name]); got != want {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}

	errs := mfs[PresentErrors]
	if errs == nil || len(errs.GetMetric()) != 2 {
		t.Fatalf("%s: want 2 labelled series", PresentErrors)
	}
	for _, s := range errs.GetMetric() {
		presenter := s.GetLabel()[0].GetValue()
		want := map[string]float64{"slack": 2, "mail": 1}[presenter]
		if s.GetCounter().GetValue() != want {
			t.Errorf("present errors{%s}: got %v, want %v", presenter, s.GetCounter().GetValue(), want)
		}
	}
}

func TestMetrics_DisconnectClearsGauge(t *testing.T) {
	m := New()
	m.IncConnects()
	m.IncDisconnects()
	s := m.Snapshot()
	if s.Connected {
		t.Error("Connected: want false after disconnect")
	}
	if s.Disconnects != 1 {
		t.Errorf("Disconnects: got %v", s.Disconnects)
	}
}

func TestMetrics_SnapshotIsCopy(t *testing.T) {
	m := New()
	m.IncPresentErrors("http")
	s := m.Snapshot()
	s.PresentErrors["http"] = 99
	if got := m.Snapshot().PresentErrors["http"]; got != 1 {
		t.Errorf("internal map mutated: got %v", got)
	}
}

func TestMetrics_ServeHTTP(t *testing.T) {
	m := New()
	m.IncReceived()

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q", ct)
	}
	if v := value(parse(t, rr.Body.String())[AlertsReceived]); v != 1 {
		t.Errorf("%s: got %v, want 1", AlertsReceived, v)
	}

	rr = httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status: got %d, want 405", rr.Code)
	}
}
