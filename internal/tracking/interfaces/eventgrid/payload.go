package eventgrid

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tracking "fleettrack-harvest/internal/tracking/domain"
)

// TimestampLayout is the fixed day/month/year 12-hour format used by the
// Fleetcare feed. Payloads carry no timezone; timestamps are interpreted in
// the operating timezone.
const TimestampLayout = "02/01/2006 03:04:05 PM"

type telemetryPayload struct {
	VehicleID string         `json:"vehicleID"`
	Rego      string         `json:"vehicleRego"`
	GPS       gpsPayload     `json:"GPS"`
	Readings  readingsFields `json:"readings"`
	Timestamp string         `json:"timestamp"`
}

type gpsPayload struct {
	Coordinates []float64 `json:"coordinates"`
}

type readingsFields struct {
	Heading  looseFloat `json:"vehicleHeading"`
	Speed    looseFloat `json:"vehicleSpeed"`
	Altitude looseFloat `json:"vehicleAltitude"`
}

// looseFloat accepts JSON numbers, numeric strings, empty strings and null,
// defaulting to zero for anything absent or empty.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*f = 0
			return nil
		}
		value, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = looseFloat(value)
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*f = looseFloat(value)
	return nil
}

// ParseReading decodes raw Fleetcare blob content into a canonical reading.
// Any missing required field or unparseable timestamp is a hard failure; the
// event is rejected, never retried with partial data.
func ParseReading(raw []byte, loc *time.Location) (tracking.Reading, error) {
	var payload telemetryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return tracking.Reading{}, fmt.Errorf("%w: %v", tracking.ErrMalformedPayload, err)
	}
	if payload.VehicleID == "" {
		return tracking.Reading{}, fmt.Errorf("%w: missing vehicleID", tracking.ErrMalformedPayload)
	}
	if payload.Rego == "" {
		return tracking.Reading{}, fmt.Errorf("%w: missing vehicleRego", tracking.ErrMalformedPayload)
	}
	if len(payload.GPS.Coordinates) < 2 {
		return tracking.Reading{}, fmt.Errorf("%w: missing GPS coordinates", tracking.ErrMalformedPayload)
	}
	if payload.Timestamp == "" {
		return tracking.Reading{}, fmt.Errorf("%w: missing timestamp", tracking.ErrMalformedPayload)
	}

	seen, err := time.ParseInLocation(TimestampLayout, payload.Timestamp, loc)
	if err != nil {
		return tracking.Reading{}, fmt.Errorf("%w: bad timestamp %q", tracking.ErrMalformedPayload, payload.Timestamp)
	}

	return tracking.Reading{
		VehicleID:    payload.VehicleID,
		Registration: payload.Rego,
		Point: tracking.Position{
			Longitude: payload.GPS.Coordinates[0],
			Latitude:  payload.GPS.Coordinates[1],
		},
		Heading:  float64(payload.Readings.Heading),
		Velocity: float64(payload.Readings.Speed),
		Altitude: float64(payload.Readings.Altitude),
		Seen:     seen,
	}, nil
}
