package postgres

import (
	"context"
	"database/sql"
	"errors"

	tracking "fleettrack-harvest/internal/tracking/domain"
)

// UnitOfWork runs reconciliation writes inside one database transaction so
// the snapshot mutation and the history append commit together.
type UnitOfWork struct {
	db         *sql.DB
	deviceOpts []DeviceOption
	pointOpts  []LoggedPointOption
}

// NewUnitOfWork constructs a transactional unit of work.
func NewUnitOfWork(db *sql.DB, deviceOpts []DeviceOption, pointOpts []LoggedPointOption) *UnitOfWork {
	return &UnitOfWork{db: db, deviceOpts: deviceOpts, pointOpts: pointOpts}
}

type txStores struct {
	devices *DeviceRepository
	points  *LoggedPointRepository
}

func (s txStores) Devices() tracking.DeviceRepository { return s.devices }

func (s txStores) Points() tracking.LoggedPointRepository { return s.points }

// Do begins a transaction, runs fn with stores bound to it, and commits.
// Any error from fn rolls the whole event back.
func (u *UnitOfWork) Do(ctx context.Context, fn func(s tracking.Stores) error) error {
	if u == nil || u.db == nil {
		return errors.New("unit of work: nil db")
	}
	if fn == nil {
		return errors.New("unit of work: nil fn")
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return tracking.NewStoreError("begin", err)
	}

	stores := txStores{
		devices: NewDeviceRepository(tx, u.deviceOpts...),
		points:  NewLoggedPointRepository(tx, u.pointOpts...),
	}
	if err := fn(stores); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return tracking.NewStoreError("commit", err)
	}
	return nil
}
