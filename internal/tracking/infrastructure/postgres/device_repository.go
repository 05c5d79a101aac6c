package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	tracking "fleettrack-harvest/internal/tracking/domain"
)

const defaultDeviceTable = "tracking_device"

// pgUniqueViolation is the Postgres error code for unique constraint failures.
const pgUniqueViolation = "23505"

// DeviceRepository is a Postgres implementation for device snapshots.
type DeviceRepository struct {
	db    DBTX
	table string
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db DBTX, opts ...DeviceOption) *DeviceRepository {
	repo := &DeviceRepository{db: db, table: defaultDeviceTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DeviceOption configures the repository.
type DeviceOption func(*DeviceRepository)

// WithDeviceTable overrides the default table name.
func WithDeviceTable(table string) DeviceOption {
	return func(repo *DeviceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Find looks up a device by exact (source type, external id) match.
func (r *DeviceRepository) Find(ctx context.Context, sourceType, externalID string) (*tracking.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if sourceType == "" || externalID == "" {
		return nil, errors.New("device repo: empty key")
	}

	query := fmt.Sprintf(`
SELECT id, deviceid, registration, symbol, district, district_display,
	internal_only, hidden, deleted, seen,
	ST_X(point), ST_Y(point), heading, velocity, altitude, message, source_device_type
FROM %s
WHERE source_device_type = $1 AND deviceid = $2
LIMIT 1`, r.table)

	var device tracking.Device
	if err := r.db.QueryRowContext(ctx, query, sourceType, externalID).Scan(
		&device.ID,
		&device.ExternalID,
		&device.Registration,
		&device.Symbol,
		&device.District,
		&device.DistrictDisplay,
		&device.InternalOnly,
		&device.Hidden,
		&device.Deleted,
		&device.Seen,
		&device.Point.Longitude,
		&device.Point.Latitude,
		&device.Heading,
		&device.Velocity,
		&device.Altitude,
		&device.Message,
		&device.SourceType,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, tracking.NewStoreError("device find", err)
	}
	return &device, nil
}

// Create inserts a device shell and assigns its surrogate key. A lost race
// on (source_device_type, deviceid) maps to ErrDeviceConflict. The insert
// uses ON CONFLICT DO NOTHING rather than letting the unique index raise,
// so a conflict does not abort the surrounding transaction and the caller
// can re-read the winning row on the same connection.
func (r *DeviceRepository) Create(ctx context.Context, device *tracking.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	deviceid,
	registration,
	symbol,
	district,
	district_display,
	internal_only,
	hidden,
	deleted,
	seen,
	point,
	heading,
	velocity,
	altitude,
	message,
	source_device_type
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9,
	ST_SetSRID(ST_MakePoint($10, $11), 4326),
	$12, $13, $14, $15, $16
)
ON CONFLICT (source_device_type, deviceid) DO NOTHING
RETURNING id`, r.table)

	err := r.db.QueryRowContext(
		ctx,
		query,
		device.ExternalID,
		device.Registration,
		device.Symbol,
		device.District,
		device.DistrictDisplay,
		device.InternalOnly,
		device.Hidden,
		device.Deleted,
		device.Seen,
		device.Point.Longitude,
		device.Point.Latitude,
		device.Heading,
		device.Velocity,
		device.Altitude,
		device.Message,
		device.SourceType,
	).Scan(&device.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tracking.ErrDeviceConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return tracking.ErrDeviceConflict
		}
		return tracking.NewStoreError("device create", err)
	}
	return nil
}

// UpdateRegistration changes the registration label only.
func (r *DeviceRepository) UpdateRegistration(ctx context.Context, id int64, registration string) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET registration = $1
WHERE id = $2`, r.table)

	if _, err := r.db.ExecContext(ctx, query, registration, id); err != nil {
		return tracking.NewStoreError("device update registration", err)
	}
	return nil
}

// UpdateSnapshot replaces the current snapshot fields together.
func (r *DeviceRepository) UpdateSnapshot(ctx context.Context, id int64, seen time.Time, point tracking.Position, heading, velocity, altitude float64) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET seen = $1,
	point = ST_SetSRID(ST_MakePoint($2, $3), 4326),
	heading = $4,
	velocity = $5,
	altitude = $6
WHERE id = $7`, r.table)

	if _, err := r.db.ExecContext(ctx, query, seen, point.Longitude, point.Latitude, heading, velocity, altitude, id); err != nil {
		return tracking.NewStoreError("device update snapshot", err)
	}
	return nil
}
