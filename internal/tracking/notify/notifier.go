package notify

import (
	"context"
	"time"
)

// DeviceAlert represents a new-device notification payload.
type DeviceAlert struct {
	DeviceID     int64             `json:"device_id"`
	ExternalID   string            `json:"deviceid"`
	Registration string            `json:"registration"`
	Seen         time.Time         `json:"seen"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg DeviceAlert) error
}
