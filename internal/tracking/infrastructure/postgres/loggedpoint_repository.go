package postgres

import (
	"context"
	"errors"
	"fmt"

	tracking "fleettrack-harvest/internal/tracking/domain"
)

const defaultLoggedPointTable = "tracking_loggedpoint"

// LoggedPointRepository is a Postgres implementation for history records.
type LoggedPointRepository struct {
	db    DBTX
	table string
}

// NewLoggedPointRepository constructs a repository.
func NewLoggedPointRepository(db DBTX, opts ...LoggedPointOption) *LoggedPointRepository {
	repo := &LoggedPointRepository{db: db, table: defaultLoggedPointTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LoggedPointOption configures the repository.
type LoggedPointOption func(*LoggedPointRepository)

// WithLoggedPointTable overrides the default table name.
func WithLoggedPointTable(table string) LoggedPointOption {
	return func(repo *LoggedPointRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Append inserts one immutable history record.
func (r *LoggedPointRepository) Append(ctx context.Context, point *tracking.LoggedPoint) error {
	if r == nil || r.db == nil {
		return errors.New("loggedpoint repo: nil db")
	}
	if point == nil {
		return errors.New("loggedpoint repo: nil point")
	}
	if point.DeviceID == 0 || point.Seen.IsZero() {
		return errors.New("loggedpoint repo: invalid point")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	point,
	heading,
	velocity,
	altitude,
	seen,
	device_id,
	message,
	source_device_type,
	raw
) VALUES (
	ST_SetSRID(ST_MakePoint($1, $2), 4326),
	$3, $4, $5, $6, $7, $8, $9, $10
)
RETURNING id`, r.table)

	err := r.db.QueryRowContext(
		ctx,
		query,
		point.Point.Longitude,
		point.Point.Latitude,
		point.Heading,
		point.Velocity,
		point.Altitude,
		point.Seen,
		point.DeviceID,
		point.Message,
		point.SourceType,
		point.Raw,
	).Scan(&point.ID)
	if err != nil {
		return tracking.NewStoreError("loggedpoint append", err)
	}
	return nil
}
