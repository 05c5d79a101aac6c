package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	tracking "fleettrack-harvest/internal/tracking/domain"
)

const defaultHistoryLimit = 1000

// DeviceQuery serves the read-side device and history API.
type DeviceQuery struct {
	db           *sql.DB
	deviceTable  string
	historyTable string
}

// NewDeviceQuery constructs a query service with default table names.
func NewDeviceQuery(db *sql.DB, opts ...QueryOption) *DeviceQuery {
	q := &DeviceQuery{db: db, deviceTable: defaultDeviceTable, historyTable: defaultLoggedPointTable}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// QueryOption configures the query service.
type QueryOption func(*DeviceQuery)

// WithQueryTables overrides the table names.
func WithQueryTables(deviceTable, historyTable string) QueryOption {
	return func(q *DeviceQuery) {
		if deviceTable != "" {
			q.deviceTable = deviceTable
		}
		if historyTable != "" {
			q.historyTable = historyTable
		}
	}
}

const deviceColumns = `id, deviceid, registration, symbol, district, district_display,
	internal_only, hidden, deleted, seen,
	ST_X(point), ST_Y(point), heading, velocity, altitude, message, source_device_type`

// List returns non-deleted devices for a source type, most recently seen first.
func (q *DeviceQuery) List(ctx context.Context, sourceType string) ([]tracking.Device, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("device query: nil db")
	}
	if sourceType == "" {
		return nil, errors.New("device query: empty source type")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE source_device_type = $1 AND NOT deleted
ORDER BY seen DESC`, deviceColumns, q.deviceTable)

	rows, err := q.db.QueryContext(ctx, query, sourceType)
	if err != nil {
		return nil, tracking.NewStoreError("device list", err)
	}
	defer rows.Close()

	var result []tracking.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, tracking.NewStoreError("device list", err)
		}
		result = append(result, device)
	}
	if err := rows.Err(); err != nil {
		return nil, tracking.NewStoreError("device list", err)
	}
	return result, nil
}

// Get loads one device by exact (source type, external id) match.
// Returns (nil, nil) on miss.
func (q *DeviceQuery) Get(ctx context.Context, sourceType, externalID string) (*tracking.Device, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("device query: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE source_device_type = $1 AND deviceid = $2
LIMIT 1`, deviceColumns, q.deviceTable)

	row := q.db.QueryRowContext(ctx, query, sourceType, externalID)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, tracking.NewStoreError("device get", err)
	}
	return &device, nil
}

// History returns logged points for a device in a time window, oldest first.
func (q *DeviceQuery) History(ctx context.Context, deviceID int64, from, to time.Time, limit int) ([]tracking.LoggedPoint, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("device query: nil db")
	}
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}

	query := fmt.Sprintf(`
SELECT id, device_id, seen, ST_X(point), ST_Y(point), heading, velocity, altitude, message, source_device_type, raw
FROM %s
WHERE device_id = $1 AND seen >= $2 AND seen <= $3
ORDER BY seen ASC
LIMIT $4`, q.historyTable)

	rows, err := q.db.QueryContext(ctx, query, deviceID, from, to, limit)
	if err != nil {
		return nil, tracking.NewStoreError("history", err)
	}
	defer rows.Close()

	var result []tracking.LoggedPoint
	for rows.Next() {
		var point tracking.LoggedPoint
		if err := rows.Scan(
			&point.ID,
			&point.DeviceID,
			&point.Seen,
			&point.Point.Longitude,
			&point.Point.Latitude,
			&point.Heading,
			&point.Velocity,
			&point.Altitude,
			&point.Message,
			&point.SourceType,
			&point.Raw,
		); err != nil {
			return nil, tracking.NewStoreError("history", err)
		}
		result = append(result, point)
	}
	if err := rows.Err(); err != nil {
		return nil, tracking.NewStoreError("history", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (tracking.Device, error) {
	var device tracking.Device
	err := row.Scan(
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
	)
	return device, err
}
