package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zonewatch/zonewatch/pkg/types"
)

// Webhook posts notifications to a Slack, Teams or generic HTTP endpoint.
type Webhook struct {
	kind   string // "slack" | "teams" | "http"
	url    string
	client *http.Client
}

// NewWebhook returns a webhook presenter of the given kind.
func NewWebhook(kind, url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	return &Webhook{kind: kind, url: url, client: client}
}

func (w *Webhook) Name() string { return w.kind }

func (w *Webhook) Present(ctx context.Context, n types.Notification) error {
	var payload any
	switch w.kind {
	case "slack":
		payload = map[string]string{"text": "*[ALERT]* " + n.Message}
	case "teams":
		payload = map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": "FF4F6A",
			"summary":    n.AlertType,
			"title":      fmt.Sprintf("Zone Alert: %s", n.ZoneName),
			"text":       n.Message,
		}
	default:
		payload = map[string]any{"alert": n}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", w.kind, err)
	}
	if err := w.post(ctx, body); err != nil {
		return fmt.Errorf("%s: %w", w.kind, err)
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
