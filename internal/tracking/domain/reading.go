package tracking

import (
	"errors"
	"time"
)

// Reading is one canonical telemetry observation, already decoded from the
// source payload. VehicleID is the identifier as issued by Fleetcare; the
// namespaced external identifier is derived from it.
type Reading struct {
	VehicleID    string
	Registration string
	Point        Position
	Heading      float64
	Velocity     float64
	Altitude     float64
	Seen         time.Time
}

// ExternalID returns the source-namespaced device identifier.
func (r Reading) ExternalID() string {
	return ExternalIDPrefix + r.VehicleID
}

// Validate checks required fields.
func (r Reading) Validate() error {
	if r.VehicleID == "" {
		return errors.New("reading: empty vehicle id")
	}
	if r.Registration == "" {
		return errors.New("reading: empty registration")
	}
	if r.Seen.IsZero() {
		return errors.New("reading: zero seen")
	}
	return nil
}

// LoggedPoint is one immutable observation record tied to a device by
// surrogate key. Raw references the source artifact the reading was
// extracted from.
type LoggedPoint struct {
	ID         int64
	DeviceID   int64
	Seen       time.Time
	Point      Position
	Heading    float64
	Velocity   float64
	Altitude   float64
	Message    int
	SourceType string
	Raw        string
}

// NewLoggedPoint builds a history record for a reading resolved to a device.
func NewLoggedPoint(deviceID int64, reading Reading, provenance string) LoggedPoint {
	return LoggedPoint{
		DeviceID:   deviceID,
		Seen:       reading.Seen,
		Point:      reading.Point,
		Heading:    reading.Heading,
		Velocity:   reading.Velocity,
		Altitude:   reading.Altitude,
		Message:    MessageTracking,
		SourceType: SourceTypeFleetcare,
		Raw:        provenance,
	}
}
