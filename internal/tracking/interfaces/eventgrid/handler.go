package eventgrid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"fleettrack-harvest/internal/blob"
	"fleettrack-harvest/internal/observability/metrics"
	"fleettrack-harvest/internal/tracking/application"
	tracking "fleettrack-harvest/internal/tracking/domain"
)

// EventTypeBlobCreated is the storage notification event type that carries
// new telemetry blobs.
const EventTypeBlobCreated = "Microsoft.Storage.BlobCreated"

// Reconciler is the single operation the webhook drives.
type Reconciler interface {
	Reconcile(ctx context.Context, reading tracking.Reading, provenance string) (application.Result, error)
}

// WebhookHandler receives blob-creation notification batches. It answers
// subscription validation handshakes and funnels BlobCreated events through
// the reconciler. Malformed events are logged and skipped; storage failures
// fail the whole delivery so the subscription redelivers it.
type WebhookHandler struct {
	reconciler Reconciler
	fetcher    blob.Fetcher
	loc        *time.Location
	logger     *log.Logger
}

// NewWebhookHandler constructs the webhook handler.
func NewWebhookHandler(reconciler Reconciler, fetcher blob.Fetcher, loc *time.Location, logger *log.Logger) (*WebhookHandler, error) {
	if reconciler == nil {
		return nil, errors.New("eventgrid: nil reconciler")
	}
	if fetcher == nil {
		return nil, errors.New("eventgrid: nil fetcher")
	}
	if loc == nil {
		return nil, errors.New("eventgrid: nil location")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookHandler{reconciler: reconciler, fetcher: fetcher, loc: loc, logger: logger}, nil
}

type gridEvent struct {
	EventType string        `json:"eventType"`
	Data      gridEventData `json:"data"`
}

type gridEventData struct {
	ValidationCode string `json:"validationCode"`
	URL            string `json:"url"`
}

// ServeHTTP processes one notification delivery.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("eventgrid: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var events []gridEvent
	if err := json.Unmarshal(body, &events); err != nil {
		h.logger.Printf("eventgrid: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	for _, event := range events {
		// Subscription validation handshake: echo the code and stop.
		if event.Data.ValidationCode != "" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"validationResponse": event.Data.ValidationCode})
			return
		}
		if event.EventType != EventTypeBlobCreated {
			continue
		}

		start := time.Now()
		err := h.processBlob(r.Context(), event.Data.URL)
		if err != nil {
			if errors.Is(err, tracking.ErrStoreUnavailable) {
				metrics.ObserveIngest("error", time.Since(start))
				h.logger.Printf("eventgrid: %s: %v", event.Data.URL, err)
				http.Error(w, "store unavailable", http.StatusInternalServerError)
				return
			}
			// Malformed or unfetchable events never abort sibling events.
			metrics.ObserveIngest("skipped", time.Since(start))
			h.logger.Printf("eventgrid: skipping %s: %v", event.Data.URL, err)
			continue
		}
		metrics.ObserveIngest("ok", time.Since(start))
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}

func (h *WebhookHandler) processBlob(ctx context.Context, blobURL string) error {
	start := time.Now()
	content, err := h.fetcher.Fetch(ctx, blobURL)
	metrics.ObserveBlobFetch(time.Since(start))
	if err != nil {
		return err
	}

	reading, err := ParseReading(content, h.loc)
	if err != nil {
		return err
	}

	_, err = h.reconciler.Reconcile(ctx, reading, blobURL)
	return err
}
