package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	tracking "fleettrack-harvest/internal/tracking/domain"
	trackingpostgres "fleettrack-harvest/internal/tracking/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestTrackingRepositories_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "tracking_device") || !tableExists(db, "tracking_loggedpoint") {
		t.Skip("tracking tables missing; run migrations")
	}

	ctx := context.Background()
	externalID := tracking.ExternalIDPrefix + "IT-0001"

	_, _ = db.ExecContext(ctx, "DELETE FROM tracking_loggedpoint WHERE source_device_type = $1 AND device_id IN (SELECT id FROM tracking_device WHERE deviceid = $2)", tracking.SourceTypeFleetcare, externalID)
	_, _ = db.ExecContext(ctx, "DELETE FROM tracking_device WHERE source_device_type = $1 AND deviceid = $2", tracking.SourceTypeFleetcare, externalID)

	devices := trackingpostgres.NewDeviceRepository(db)
	points := trackingpostgres.NewLoggedPointRepository(db)
	query := trackingpostgres.NewDeviceQuery(db)

	firstSeen := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	reading := tracking.Reading{
		VehicleID:    "IT-0001",
		Registration: "1ABC123",
		Point:        tracking.Position{Longitude: 115.86, Latitude: -31.95},
		Heading:      90,
		Velocity:     60,
		Altitude:     20,
		Seen:         firstSeen,
	}

	device := tracking.NewDevice(reading)
	if err := devices.Create(ctx, &device); err != nil {
		t.Fatalf("create device: %v", err)
	}
	if device.ID == 0 {
		t.Fatalf("expected assigned device id")
	}

	found, err := devices.Find(ctx, tracking.SourceTypeFleetcare, externalID)
	if err != nil {
		t.Fatalf("find device: %v", err)
	}
	if found == nil || found.ID != device.ID {
		t.Fatalf("expected device %d, got %+v", device.ID, found)
	}
	if found.Symbol != tracking.DefaultSymbol || found.District != tracking.DefaultDistrict {
		t.Fatalf("expected defaulted classification, got symbol=%q district=%q", found.Symbol, found.District)
	}

	laterSeen := firstSeen.Add(5 * time.Minute)
	laterPoint := tracking.Position{Longitude: 115.90, Latitude: -31.90}
	if err := devices.UpdateSnapshot(ctx, device.ID, laterSeen, laterPoint, 180, 50, 25); err != nil {
		t.Fatalf("update snapshot: %v", err)
	}
	if err := devices.UpdateRegistration(ctx, device.ID, "1XYZ999"); err != nil {
		t.Fatalf("update registration: %v", err)
	}

	for _, seen := range []time.Time{firstSeen, laterSeen} {
		reading.Seen = seen
		point := tracking.NewLoggedPoint(device.ID, reading, "it://blob")
		if err := points.Append(ctx, &point); err != nil {
			t.Fatalf("append point at %v: %v", seen, err)
		}
	}

	got, err := query.Get(ctx, tracking.SourceTypeFleetcare, externalID)
	if err != nil {
		t.Fatalf("query get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected device from query")
	}
	if got.Registration != "1XYZ999" {
		t.Fatalf("expected updated registration, got %q", got.Registration)
	}
	if !got.Seen.Equal(laterSeen) {
		t.Fatalf("expected seen %v, got %v", laterSeen, got.Seen)
	}
	if got.Point.Longitude != laterPoint.Longitude || got.Point.Latitude != laterPoint.Latitude {
		t.Fatalf("expected point %+v, got %+v", laterPoint, got.Point)
	}

	history, err := query.History(ctx, device.ID, firstSeen.Add(-time.Minute), laterSeen.Add(time.Minute), 100)
	if err != nil {
		t.Fatalf("query history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	if !history[0].Seen.Before(history[1].Seen) {
		t.Fatalf("expected history ordered by seen ascending")
	}
	if history[0].Raw != "it://blob" {
		t.Fatalf("expected provenance on history row, got %q", history[0].Raw)
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
