package tracking

import (
	"errors"
	"time"
)

// SourceTypeFleetcare tags devices owned by the Fleetcare ingestion pipeline.
const SourceTypeFleetcare = "fleetcare"

// ExternalIDPrefix namespaces Fleetcare vehicle identifiers for storage uniqueness.
const ExternalIDPrefix = "fc_"

// MessageTracking is the fixed message classification written with every point.
const MessageTracking = 3

// Default classification for devices created on first observation.
const (
	DefaultSymbol          = "other"
	DefaultDistrict        = "OTH"
	DefaultDistrictDisplay = "Other"
)

// Position is a WGS84 point in (longitude, latitude) order.
type Position struct {
	Longitude float64
	Latitude  float64
}

// Device is the current, mutable snapshot of one physical tracking unit.
// Seen is monotonically non-decreasing across accepted snapshot updates;
// Point, Heading, Velocity and Altitude always belong to the observation
// at Seen and are never updated independently of it.
type Device struct {
	ID              int64
	ExternalID      string
	Registration    string
	Symbol          string
	District        string
	DistrictDisplay string
	InternalOnly    bool
	Hidden          bool
	Deleted         bool
	Seen            time.Time
	Point           Position
	Heading         float64
	Velocity        float64
	Altitude        float64
	Message         int
	SourceType      string
}

// DeviceRef identifies a resolved device.
type DeviceRef struct {
	ID         int64
	ExternalID string
}

// NewDevice builds a device shell from its first observation, with defaulted
// classification fields.
func NewDevice(reading Reading) Device {
	return Device{
		ExternalID:      reading.ExternalID(),
		Registration:    reading.Registration,
		Symbol:          DefaultSymbol,
		District:        DefaultDistrict,
		DistrictDisplay: DefaultDistrictDisplay,
		Seen:            reading.Seen,
		Point:           reading.Point,
		Heading:         reading.Heading,
		Velocity:        reading.Velocity,
		Altitude:        reading.Altitude,
		Message:         MessageTracking,
		SourceType:      SourceTypeFleetcare,
	}
}

// Validate checks invariants before persistence.
func (d *Device) Validate() error {
	if d == nil {
		return errors.New("device: nil")
	}
	if d.ExternalID == "" {
		return errors.New("device: empty external id")
	}
	if d.SourceType == "" {
		return errors.New("device: empty source type")
	}
	if d.Seen.IsZero() {
		return errors.New("device: zero seen")
	}
	return nil
}
