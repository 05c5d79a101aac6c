package eventgrid

import (
	"errors"
	"testing"
	"time"

	tracking "fleettrack-harvest/internal/tracking/domain"
)

func perthLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Perth")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestParseReading_FullPayload(t *testing.T) {
	loc := perthLocation(t)
	raw := []byte(`{
		"vehicleID": "42",
		"vehicleRego": "1ABC123",
		"GPS": {"coordinates": [115.857, -31.953]},
		"readings": {"vehicleHeading": 180.5, "vehicleSpeed": 60, "vehicleAltitude": 12},
		"timestamp": "10/03/2026 02:30:45 PM"
	}`)

	reading, err := ParseReading(raw, loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if reading.VehicleID != "42" {
		t.Fatalf("expected vehicle 42, got %s", reading.VehicleID)
	}
	if reading.ExternalID() != "fc_42" {
		t.Fatalf("expected fc_42, got %s", reading.ExternalID())
	}
	if reading.Registration != "1ABC123" {
		t.Fatalf("expected rego 1ABC123, got %s", reading.Registration)
	}
	if reading.Point.Longitude != 115.857 || reading.Point.Latitude != -31.953 {
		t.Fatalf("unexpected point: %+v", reading.Point)
	}
	if reading.Heading != 180.5 || reading.Velocity != 60 || reading.Altitude != 12 {
		t.Fatalf("unexpected readings: %v %v %v", reading.Heading, reading.Velocity, reading.Altitude)
	}

	want := time.Date(2026, 3, 10, 14, 30, 45, 0, loc)
	if !reading.Seen.Equal(want) {
		t.Fatalf("expected seen %s, got %s", want, reading.Seen)
	}
}

func TestParseReading_StringAndEmptyReadings(t *testing.T) {
	raw := []byte(`{
		"vehicleID": "42",
		"vehicleRego": "1ABC123",
		"GPS": {"coordinates": [115.857, -31.953]},
		"readings": {"vehicleHeading": "270.5", "vehicleSpeed": "", "vehicleAltitude": null},
		"timestamp": "10/03/2026 02:30:45 PM"
	}`)

	reading, err := ParseReading(raw, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if reading.Heading != 270.5 {
		t.Fatalf("expected heading 270.5, got %v", reading.Heading)
	}
	if reading.Velocity != 0 {
		t.Fatalf("expected empty speed to default 0, got %v", reading.Velocity)
	}
	if reading.Altitude != 0 {
		t.Fatalf("expected null altitude to default 0, got %v", reading.Altitude)
	}
}

func TestParseReading_MissingReadingsBlock(t *testing.T) {
	raw := []byte(`{
		"vehicleID": "42",
		"vehicleRego": "1ABC123",
		"GPS": {"coordinates": [115.857, -31.953]},
		"timestamp": "10/03/2026 02:30:45 PM"
	}`)

	reading, err := ParseReading(raw, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if reading.Heading != 0 || reading.Velocity != 0 || reading.Altitude != 0 {
		t.Fatalf("expected defaulted readings, got %v %v %v", reading.Heading, reading.Velocity, reading.Altitude)
	}
}

func TestParseReading_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `telemetry`},
		{"missing vehicle id", `{"vehicleRego": "R", "GPS": {"coordinates": [1, 2]}, "timestamp": "10/03/2026 02:30:45 PM"}`},
		{"missing rego", `{"vehicleID": "42", "GPS": {"coordinates": [1, 2]}, "timestamp": "10/03/2026 02:30:45 PM"}`},
		{"missing coordinates", `{"vehicleID": "42", "vehicleRego": "R", "GPS": {"coordinates": [1]}, "timestamp": "10/03/2026 02:30:45 PM"}`},
		{"missing timestamp", `{"vehicleID": "42", "vehicleRego": "R", "GPS": {"coordinates": [1, 2]}}`},
		{"iso timestamp", `{"vehicleID": "42", "vehicleRego": "R", "GPS": {"coordinates": [1, 2]}, "timestamp": "2026-03-10T14:30:45Z"}`},
		{"24h timestamp", `{"vehicleID": "42", "vehicleRego": "R", "GPS": {"coordinates": [1, 2]}, "timestamp": "10/03/2026 14:30:45 PM"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseReading([]byte(tc.raw), time.UTC)
			if !errors.Is(err, tracking.ErrMalformedPayload) {
				t.Fatalf("expected malformed payload, got %v", err)
			}
		})
	}
}
