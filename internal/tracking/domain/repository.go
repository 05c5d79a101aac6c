package tracking

import (
	"context"
	"time"
)

// DeviceRepository persists device snapshots.
type DeviceRepository interface {
	// Find looks up a device by exact (source type, external id) match.
	// Returns (nil, nil) on miss.
	Find(ctx context.Context, sourceType, externalID string) (*Device, error)
	// Create inserts a device shell and assigns its surrogate key.
	// Returns ErrDeviceConflict when the uniqueness constraint rejects it.
	Create(ctx context.Context, device *Device) error
	// UpdateRegistration changes the registration label only.
	UpdateRegistration(ctx context.Context, id int64, registration string) error
	// UpdateSnapshot replaces the current snapshot fields together.
	UpdateSnapshot(ctx context.Context, id int64, seen time.Time, point Position, heading, velocity, altitude float64) error
}

// LoggedPointRepository appends immutable history records.
type LoggedPointRepository interface {
	Append(ctx context.Context, point *LoggedPoint) error
}

// Stores bundles the repositories bound to one transaction.
type Stores interface {
	Devices() DeviceRepository
	Points() LoggedPointRepository
}

// UnitOfWork runs fn with transactional stores. All writes issued through
// the stores commit together or not at all, so a half-applied event surfaces
// as a failure instead of a silent partial commit.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(s Stores) error) error
}

// DeviceQuery serves the read-side API.
type DeviceQuery interface {
	List(ctx context.Context, sourceType string) ([]Device, error)
	Get(ctx context.Context, sourceType, externalID string) (*Device, error)
	History(ctx context.Context, deviceID int64, from, to time.Time, limit int) ([]LoggedPoint, error)
}
