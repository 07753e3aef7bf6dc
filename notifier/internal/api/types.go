package api

// HealthResponse is the JSON body for GET /api/v1/health.
type HealthResponse struct {
	Connected bool           `json:"connected"`
	Endpoint  string         `json:"endpoint"`
	Source    string         `json:"source"`
	Connects  int            `json:"connects"`
	Alerts    int            `json:"alerts"`
	LastAlert *AlertResponse `json:"last_alert"`
}

// AlertResponse is one presented notification.
type AlertResponse struct {
	ID         string `json:"id"`
	AlertType  string `json:"alert_type"`
	ZoneName   string `json:"zone_name"`
	Message    string `json:"message"`
	ReceivedAt string `json:"received_at"` // RFC3339
}

type errorResponse struct {
	Error string `json:"error"`
}
