package events

import "time"

// TelemetryLogged is raised after every reconciled observation, whether or
// not it advanced the device snapshot.
type TelemetryLogged struct {
	DeviceID     int64     `json:"device_id"`
	ExternalID   string    `json:"external_id"`
	Registration string    `json:"registration"`
	Outcome      string    `json:"outcome"`
	RegoChanged  bool      `json:"rego_changed"`
	Seen         time.Time `json:"seen"`
	Provenance   string    `json:"provenance"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// DeviceCreated is raised when a previously-unseen tracker appears.
type DeviceCreated struct {
	DeviceID     int64     `json:"device_id"`
	ExternalID   string    `json:"external_id"`
	Registration string    `json:"registration"`
	Seen         time.Time `json:"seen"`
	OccurredAt   time.Time `json:"occurred_at"`
}
