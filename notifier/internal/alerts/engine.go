package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zonewatch/zonewatch/notifier/internal/metrics"
	"github.com/zonewatch/zonewatch/notifier/internal/store"
	"github.com/zonewatch/zonewatch/pkg/types"
)

// lastFirePruneAt is the number of tracked zones that triggers a sweep of
// expired cooldown windows.
const lastFirePruneAt = 256

// Status is a snapshot of the engine's connection and alert counters.
type Status struct {
	Connected bool                `json:"connected"`
	Endpoint  string              `json:"endpoint"`
	Connects  int                 `json:"connects"`
	Alerts    int                 `json:"alerts"`
	LastAlert *types.Notification `json:"last_alert,omitempty"`
}

// Engine handles the typed event stream of a source.
//
// Handle is meant to be called from a single goroutine so notifications are
// presented in delivery order. The setters and Status are safe to call
// concurrently with it.
type Engine struct {
	history *store.Store
	metrics *metrics.Metrics

	mu         sync.Mutex
	presenters []Presenter
	cooldown   time.Duration
	lastFire   map[string]time.Time // key: zone name
	status     Status
	now        func() time.Time
}

// New creates an Engine. A zero cooldown presents every alert.
func New(presenters []Presenter, cooldown time.Duration, history *store.Store, m *metrics.Metrics) *Engine {
	return &Engine{
		history:    history,
		metrics:    m,
		presenters: presenters,
		cooldown:   cooldown,
		lastFire:   make(map[string]time.Time),
		now:        time.Now,
	}
}

// SetPresenters replaces the presenter chain. Alerts already being presented
// finish on the old chain.
func (e *Engine) SetPresenters(p []Presenter) {
	e.mu.Lock()
	e.presenters = p
	e.mu.Unlock()
}

// SetCooldown changes the per-zone suppression window.
func (e *Engine) SetCooldown(d time.Duration) {
	e.mu.Lock()
	e.cooldown = d
	if d == 0 {
		clear(e.lastFire)
	}
	e.mu.Unlock()
}

// pruneLastFire drops zones whose window has passed. Callers hold e.mu.
func (e *Engine) pruneLastFire(now time.Time) {
	for zone, last := range e.lastFire {
		if now.Sub(last) >= e.cooldown {
			delete(e.lastFire, zone)
		}
	}
}

// Status returns the current connection state and counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.status
	if s.LastAlert != nil {
		cp := *s.LastAlert
		s.LastAlert = &cp
	}
	return s
}

// Consume handles events until the channel is closed or ctx is cancelled.
func (e *Engine) Consume(ctx context.Context, events <-chan types.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.Handle(ctx, ev)
		}
	}
}

// Handle processes a single event to completion.
func (e *Engine) Handle(ctx context.Context, ev types.Event) {
	switch ev.Kind {
	case types.KindConnect:
		e.onConnect(ev)
	case types.KindDisconnect:
		e.onDisconnect(ev)
	case types.KindAlert:
		e.onAlert(ctx, ev)
	default:
		slog.Debug("alerts: ignoring event", "kind", ev.Kind)
	}
}

func (e *Engine) onConnect(ev types.Event) {
	e.mu.Lock()
	e.status.Connected = true
	e.status.Endpoint = ev.Endpoint
	e.status.Connects++
	e.mu.Unlock()

	e.metrics.IncConnects()
	slog.Info("connected to server", "endpoint", ev.Endpoint)
}

func (e *Engine) onDisconnect(ev types.Event) {
	e.mu.Lock()
	e.status.Connected = false
	e.mu.Unlock()

	e.metrics.IncDisconnects()
	slog.Warn("disconnected from server", "endpoint", ev.Endpoint, "err", ev.Err)
}

func (e *Engine) onAlert(ctx context.Context, ev types.Event) {
	e.metrics.IncReceived()

	at := ev.At
	if at.IsZero() {
		at = e.now()
	}

	e.mu.Lock()
	if e.cooldown > 0 {
		if last, ok := e.lastFire[ev.Alert.ZoneName]; ok && at.Sub(last) < e.cooldown {
			e.mu.Unlock()
			e.metrics.IncSuppressed()
			slog.Debug("alerts: suppressed by cooldown",
				"zone", ev.Alert.ZoneName,
				"alert_type", ev.Alert.AlertType,
			)
			return
		}
	}
	if e.cooldown > 0 {
		if len(e.lastFire) >= lastFirePruneAt {
			e.pruneLastFire(at)
		}
		e.lastFire[ev.Alert.ZoneName] = at
	}
	presenters := e.presenters
	e.mu.Unlock()

	n := types.Notification{
		ID:         uuid.NewString(),
		AlertType:  ev.Alert.AlertType,
		ZoneName:   ev.Alert.ZoneName,
		Message:    ev.Alert.Message(),
		ReceivedAt: at,
	}

	delivered := 0
	for _, p := range presenters {
		if err := p.Present(ctx, n); err != nil {
			e.metrics.IncPresentErrors(p.Name())
			slog.Error("alerts: presenter failed",
				"presenter", p.Name(),
				"zone", n.ZoneName,
				"err", err,
			)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		e.metrics.IncPresented()
	}

	e.history.Put(n)

	e.mu.Lock()
	e.status.Alerts++
	e.status.LastAlert = &n
	e.mu.Unlock()

	slog.Debug("alerts: notification presented",
		"id", n.ID,
		"alert_type", n.AlertType,
		"zone", n.ZoneName,
		"presenters", delivered,
	)
}
