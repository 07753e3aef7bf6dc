package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/zonewatch/zonewatch/notifier/internal/alerts"
	"github.com/zonewatch/zonewatch/notifier/internal/store"
	"github.com/zonewatch/zonewatch/pkg/types"
)

const defaultAlertLimit = 10

// StatusReader reports the live connection state.
type StatusReader interface {
	Status() alerts.Status
}

// SourceInfo describes the configured event source.
type SourceInfo struct {
	Type     string
	Endpoint string
}

// Handler serves the status API.
type Handler struct {
	status  StatusReader
	history *store.Store
	source  SourceInfo
	mux     *http.ServeMux
}

// New creates a Handler and registers all routes. metrics serves /metrics.
func New(status StatusReader, history *store.Store, src SourceInfo, metrics http.Handler) http.Handler {
	h := &Handler{status: status, history: history, source: src, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.Handle("/metrics", metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s := h.status.Status()
	resp := HealthResponse{
		Connected: s.Connected,
		Endpoint:  s.Endpoint,
		Source:    h.source.Type,
		Connects:  s.Connects,
		Alerts:    s.Alerts,
	}
	if resp.Endpoint == "" {
		resp.Endpoint = h.source.Endpoint
	}
	if s.LastAlert != nil {
		a := toAlertResponse(*s.LastAlert)
		resp.LastAlert = &a
	}
	jsonResp(w, http.StatusOK, resp)
}

// alerts returns GET /api/v1/alerts, newest first.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list := h.history.List(limit)
	out := make([]AlertResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toAlertResponse(n))
	}
	jsonResp(w, http.StatusOK, out)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func toAlertResponse(n types.Notification) AlertResponse {
	return AlertResponse{
		ID:         n.ID,
		AlertType:  n.AlertType,
		ZoneName:   n.ZoneName,
		Message:    n.Message,
		ReceivedAt: n.ReceivedAt.UTC().Format(time.RFC3339),
	}
}
