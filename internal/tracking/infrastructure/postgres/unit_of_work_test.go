package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"fleettrack-harvest/internal/tracking/application"
	tracking "fleettrack-harvest/internal/tracking/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestUnitOfWork_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("open sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tracking_device")).
		WithArgs("2XYZ999", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	uow := NewUnitOfWork(db, nil, nil)
	err = uow.Do(context.Background(), func(s tracking.Stores) error {
		return s.Devices().UpdateRegistration(context.Background(), 7, "2XYZ999")
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("open sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	uow := NewUnitOfWork(db, nil, nil)
	boom := errors.New("append failed")
	err = uow.Do(context.Background(), func(s tracking.Stores) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A device created concurrently between the miss and the insert must be
// recovered by re-reading on the same transaction. The conflict-tolerant
// insert returns no row instead of raising, so the transaction stays usable
// for the recovery read.
func TestUnitOfWork_CreateRaceRecoversOnSameTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("open sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	storedSeen := now.Add(-time.Hour)
	readingSeen := now.Add(-time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, deviceid, registration").
		WithArgs("fleetcare", "fc_42").
		WillReturnRows(sqlmock.NewRows(deviceRows))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (source_device_type, deviceid) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT id, deviceid, registration").
		WithArgs("fleetcare", "fc_42").
		WillReturnRows(sqlmock.NewRows(deviceRows).
			AddRow(7, "fc_42", "1ABC123", "other", "OTH", "Other",
				false, false, false, storedSeen,
				115.857, -31.953, 180.0, 60.0, 12.0, 3, "fleetcare"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tracking_device")).
		WithArgs(readingSeen, 115.9, -31.9, 90.0, 50.0, 15.0, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tracking_loggedpoint")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectCommit()

	uow := NewUnitOfWork(db, nil, nil)
	reconciler, err := application.NewReconciler(uow, fixedClock{now: now}, nil, nil)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	reading := tracking.Reading{
		VehicleID:    "42",
		Registration: "1ABC123",
		Point:        tracking.Position{Longitude: 115.9, Latitude: -31.9},
		Heading:      90,
		Velocity:     50,
		Altitude:     15,
		Seen:         readingSeen,
	}
	result, err := reconciler.Reconcile(context.Background(), reading, "https://blobs/fleetcare/42.json")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != application.OutcomeUpdated {
		t.Fatalf("expected updated outcome, got %s", result.Outcome)
	}
	if result.Device.ID != 7 {
		t.Fatalf("expected winner device id 7, got %d", result.Device.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnitOfWork_BeginFailureWrapsStoreError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("open sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	uow := NewUnitOfWork(db, nil, nil)
	err = uow.Do(context.Background(), func(s tracking.Stores) error {
		t.Fatalf("fn should not run")
		return nil
	})
	if !errors.Is(err, tracking.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}
