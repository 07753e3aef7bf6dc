package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Event names understood on the wire.
const (
	EventConnect    = "connect"
	EventAlert      = "alert"
	EventDisconnect = "disconnect"
)

// Kind identifies which variant of the event stream an Event carries.
type Kind string

const (
	KindConnect    Kind = EventConnect
	KindAlert      Kind = EventAlert
	KindDisconnect Kind = EventDisconnect
)

// Event is one item on the typed event stream produced by a source.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind Kind

	// Alert is set when Kind == KindAlert.
	Alert AlertEvent

	// Endpoint is the address of the connection the event arrived on.
	Endpoint string

	// Err is the cause of a disconnect, if known.
	Err error

	At time.Time
}

// Connected returns a connect event for endpoint.
func Connected(endpoint string) Event {
	return Event{Kind: KindConnect, Endpoint: endpoint, At: time.Now()}
}

// Disconnected returns a disconnect event for endpoint with the given cause.
func Disconnected(endpoint string, err error) Event {
	return Event{Kind: KindDisconnect, Endpoint: endpoint, Err: err, At: time.Now()}
}

// AlertReceived returns an alert event carrying a.
func AlertReceived(endpoint string, a AlertEvent) Event {
	return Event{Kind: KindAlert, Alert: a, Endpoint: endpoint, At: time.Now()}
}

// AlertEvent is the payload of an "alert" event.
type AlertEvent struct {
	AlertType string `json:"alert_type"`
	ZoneName  string `json:"zone_name"`
}

// UnmarshalJSON decodes an alert payload without validating it. Missing
// fields stay empty, non-string values keep their JSON text, and a payload
// that is not an object leaves both fields empty.
func (a *AlertEvent) UnmarshalJSON(data []byte) error {
	*a = AlertEvent{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	a.AlertType = fieldText(fields["alert_type"])
	a.ZoneName = fieldText(fields["zone_name"])
	return nil
}

// Message renders the notification text for the alert.
func (a AlertEvent) Message() string {
	return fmt.Sprintf("New Alert: %s in %s", a.AlertType, a.ZoneName)
}

// fieldText converts a raw JSON value to display text.
func fieldText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Notification is an alert that has been rendered for presentation.
type Notification struct {
	ID         string    `json:"id"`
	AlertType  string    `json:"alert_type"`
	ZoneName   string    `json:"zone_name"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}
