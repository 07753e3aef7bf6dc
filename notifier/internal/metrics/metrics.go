package metrics

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric names exported by the notifier.
const (
	Connects         = "notifier_connects_total"
	Disconnects      = "notifier_disconnects_total"
	AlertsReceived   = "notifier_alerts_received_total"
	AlertsPresented  = "notifier_alerts_presented_total"
	AlertsSuppressed = "notifier_alerts_suppressed_total"
	PresentErrors    = "notifier_present_errors_total"
	Connected        = "notifier_connected"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Connects         float64
	Disconnects      float64
	AlertsReceived   float64
	AlertsPresented  float64
	AlertsSuppressed float64
	PresentErrors    map[string]float64
	Connected        bool
}

// Metrics holds the notifier counters. It is safe for concurrent use.
type Metrics struct {
	mu sync.Mutex
	s  Snapshot
}

// New returns zeroed Metrics.
func New() *Metrics {
	return &Metrics{s: Snapshot{PresentErrors: make(map[string]float64)}}
}

func (m *Metrics) IncConnects() {
	m.mu.Lock()
	m.s.Connects++
	m.s.Connected = true
	m.mu.Unlock()
}

func (m *Metrics) IncDisconnects() {
	m.mu.Lock()
	m.s.Disconnects++
	m.s.Connected = false
	m.mu.Unlock()
}

func (m *Metrics) IncReceived() {
	m.mu.Lock()
	m.s.AlertsReceived++
	m.mu.Unlock()
}

func (m *Metrics) IncPresented() {
	m.mu.Lock()
	m.s.AlertsPresented++
	m.mu.Unlock()
}

func (m *Metrics) IncSuppressed() {
	m.mu.Lock()
	m.s.AlertsSuppressed++
	m.mu.Unlock()
}

// IncPresentErrors counts a failed delivery on the named presenter.
func (m *Metrics) IncPresentErrors(presenter string) {
	m.mu.Lock()
	m.s.PresentErrors[presenter]++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.s
	out.PresentErrors = make(map[string]float64, len(m.s.PresentErrors))
	for k, v := range m.s.PresentErrors {
		out.PresentErrors[k] = v
	}
	return out
}

// Families builds the metric families for the current values, sorted by name.
func (m *Metrics) Families() []*dto.MetricFamily {
	s := m.Snapshot()

	connected := 0.0
	if s.Connected {
		connected = 1
	}

	fams := []*dto.MetricFamily{
		counter(Connects, "Connections established to the alert source.", s.Connects),
		counter(Disconnects, "Established connections that ended.", s.Disconnects),
		counter(AlertsReceived, "Alert events received.", s.AlertsReceived),
		counter(AlertsPresented, "Alert events presented to at least one presenter.", s.AlertsPresented),
		counter(AlertsSuppressed, "Alert events suppressed by the zone cooldown.", s.AlertsSuppressed),
		gauge(Connected, "1 while connected to the alert source.", connected),
	}

	errFam := &dto.MetricFamily{
		Name: strPtr(PresentErrors),
		Help: strPtr("Presenter delivery failures."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	names := make([]string, 0, len(s.PresentErrors))
	for name := range s.PresentErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		errFam.Metric = append(errFam.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: strPtr("presenter"), Value: strPtr(name)}},
			Counter: &dto.Counter{Value: f64Ptr(s.PresentErrors[name])},
		})
	}
	if len(errFam.Metric) > 0 {
		fams = append(fams, errFam)
	}

	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// WriteText writes all families in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	for _, mf := range m.Families() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ServeHTTP serves GET /metrics.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(name),
		Help:   strPtr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: f64Ptr(v)}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(name),
		Help:   strPtr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: f64Ptr(v)}}},
	}
}

func strPtr(s string) *string { return &s }
func f64Ptr(v float64) *float64 { return &v }
