package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebhookNotifier_SendsAlert(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	err := notifier.Notify(context.Background(), DeviceAlert{
		DeviceID:     7,
		ExternalID:   "fc_42",
		Registration: "1ABC123",
		Seen:         time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.MsgType != "text" {
		t.Fatalf("expected msgtype text, got %s", got.MsgType)
	}
	if !strings.Contains(got.Text.Content, "fc_42") {
		t.Fatalf("expected content to mention device, got %q", got.Text.Content)
	}
	if !strings.Contains(got.Text.Content, "1ABC123") {
		t.Fatalf("expected content to mention registration, got %q", got.Text.Content)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	err := notifier.Notify(context.Background(), DeviceAlert{ExternalID: "fc_42"})
	if err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}

func TestWebhookNotifier_EmptyURL(t *testing.T) {
	notifier := NewWebhookNotifier("")
	err := notifier.Notify(context.Background(), DeviceAlert{ExternalID: "fc_42"})
	if err == nil {
		t.Fatalf("expected error on empty url")
	}
}
