// Package forward delivers newly confirmed tracking matches to an outbound
// webhook. Delivery failures never roll back a match; the caller logs and
// moves on.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nhle/trackit/internal/model"
)

// Webhook posts one JSON payload per match to a fixed URL.
type Webhook struct {
	url    string
	data   map[string]string
	client *http.Client
}

// NewWebhook creates a forwarder for url. The static data fields are merged
// into every payload; match fields win on key collision.
func NewWebhook(url string, data map[string]string) *Webhook {
	return &Webhook{
		url:    url,
		data:   data,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Forward posts the match. Any transport failure or non-2xx response is an
// error.
func (w *Webhook) Forward(ctx context.Context, m model.TrackingMatch) error {
	payload := make(map[string]interface{}, len(w.data)+5)
	for k, v := range w.data {
		payload[k] = v
	}
	payload["tracking_id"] = m.TrackingID
	payload["supplier"] = m.Supplier
	if m.Subject != "" {
		payload["subject"] = m.Subject
	}
	if m.Sender != "" {
		payload["from"] = m.Sender
	}
	if m.URL != "" {
		payload["url"] = m.URL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding forward payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", w.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("forward to %s returned %s", w.url, resp.Status)
	}

	return nil
}
