package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier sends alerts via webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends an alert to webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg DeviceAlert) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	content := formatDeviceAlert(msg)
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: content},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("webhook notifier: non-2xx")
	}
	return nil
}

func formatDeviceAlert(msg DeviceAlert) string {
	var b strings.Builder
	b.WriteString("[New Tracking Device]\n")
	if msg.ExternalID != "" {
		fmt.Fprintf(&b, "Device: %s\n", msg.ExternalID)
	}
	if msg.Registration != "" {
		fmt.Fprintf(&b, "Registration: %s\n", msg.Registration)
	}
	if !msg.Seen.IsZero() {
		fmt.Fprintf(&b, "First Seen: %s\n", msg.Seen.UTC().Format(time.RFC3339))
	}
	for key, value := range msg.Meta {
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}
	return strings.TrimSpace(b.String())
}
