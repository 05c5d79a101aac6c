package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fleettrack-harvest/internal/observability/metrics"
	"fleettrack-harvest/internal/tracking/application/events"
	tracking "fleettrack-harvest/internal/tracking/domain"
)

// Outcome classifies what a reconciled observation did to the device snapshot.
type Outcome string

const (
	// OutcomeCreated: first-ever observation, device shell materialized.
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated: observation advanced the current snapshot.
	OutcomeUpdated Outcome = "updated"
	// OutcomeStale: observation at or behind the stored snapshot; historicized only.
	OutcomeStale Outcome = "stale"
	// OutcomeFuture: observation ahead of local now (device clock configured
	// for another timezone); historicized only.
	OutcomeFuture Outcome = "future"
)

// Result reports one reconciled observation.
type Result struct {
	Device      tracking.DeviceRef
	Outcome     Outcome
	RegoChanged bool
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Reconciler applies the device state reconciliation rules: resolve the
// device by namespaced identifier, apply the registration and ordering
// checks, and append exactly one history record per event.
type Reconciler struct {
	uow    tracking.UnitOfWork
	clock  tracking.Clock
	bus    Publisher
	logger *log.Logger
}

// NewReconciler constructs the reconciliation service. The publisher may be
// nil when eventing is not wired.
func NewReconciler(uow tracking.UnitOfWork, clock tracking.Clock, bus Publisher, logger *log.Logger) (*Reconciler, error) {
	if uow == nil {
		return nil, errors.New("reconciler: nil unit of work")
	}
	if clock == nil {
		return nil, errors.New("reconciler: nil clock")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{uow: uow, clock: clock, bus: bus, logger: logger}, nil
}

// Reconcile processes one observation end to end. A valid reading always
// yields exactly one history record; rejection from the current snapshot
// (stale or future timestamp) is a normal outcome, not an error. Storage
// failures surface as ErrStoreUnavailable so the caller can arrange
// redelivery; the unit of work guarantees the snapshot mutation and the
// history append commit together.
func (s *Reconciler) Reconcile(ctx context.Context, reading tracking.Reading, provenance string) (Result, error) {
	if err := reading.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", tracking.ErrMalformedPayload, err)
	}

	var result Result
	err := s.uow.Do(ctx, func(st tracking.Stores) error {
		res, err := s.apply(ctx, st, reading, provenance)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return Result{}, tracking.NewStoreError("reconcile", err)
	}

	metrics.IncReconcileOutcome(string(result.Outcome))
	if result.RegoChanged {
		metrics.IncRegoChange()
	}
	s.publish(ctx, result, reading, provenance)
	return result, nil
}

func (s *Reconciler) apply(ctx context.Context, st tracking.Stores, reading tracking.Reading, provenance string) (Result, error) {
	externalID := reading.ExternalID()

	device, err := st.Devices().Find(ctx, tracking.SourceTypeFleetcare, externalID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	if device == nil {
		result, device, err = s.create(ctx, st, reading)
	} else {
		result, err = s.update(ctx, st, device, reading)
	}
	if err != nil {
		return Result{}, err
	}

	point := tracking.NewLoggedPoint(device.ID, reading, provenance)
	if err := st.Points().Append(ctx, &point); err != nil {
		return Result{}, err
	}
	result.Device = tracking.DeviceRef{ID: device.ID, ExternalID: externalID}
	return result, nil
}

// create materializes a device shell from its first observation. A lost
// create race is recovered by re-reading the winner's row and reconciling
// against it as if it had been found initially.
func (s *Reconciler) create(ctx context.Context, st tracking.Stores, reading tracking.Reading) (Result, *tracking.Device, error) {
	shell := tracking.NewDevice(reading)
	err := st.Devices().Create(ctx, &shell)
	if err == nil {
		s.logger.Printf("created device %s: %s, %s", shell.ExternalID, shell.Registration, shell.Seen.Format(time.RFC3339))
		return Result{Outcome: OutcomeCreated}, &shell, nil
	}
	if !errors.Is(err, tracking.ErrDeviceConflict) {
		return Result{}, nil, err
	}

	device, ferr := st.Devices().Find(ctx, tracking.SourceTypeFleetcare, reading.ExternalID())
	if ferr != nil {
		return Result{}, nil, ferr
	}
	if device == nil {
		// Conflict but no row visible: give up and let redelivery retry.
		return Result{}, nil, err
	}
	result, uerr := s.update(ctx, st, device, reading)
	if uerr != nil {
		return Result{}, nil, uerr
	}
	return result, device, nil
}

// update applies the two independent checks against an existing device: the
// registration change is trusted regardless of observation recency, while
// the snapshot moves only for observations newer than the stored state and
// no later than local now.
func (s *Reconciler) update(ctx context.Context, st tracking.Stores, device *tracking.Device, reading tracking.Reading) (Result, error) {
	var result Result

	if reading.Registration != device.Registration {
		if err := st.Devices().UpdateRegistration(ctx, device.ID, reading.Registration); err != nil {
			return Result{}, err
		}
		result.RegoChanged = true
		s.logger.Printf("updated device %d registration to %s", device.ID, reading.Registration)
	}

	now := s.clock.Now()
	switch {
	case reading.Seen.After(now):
		result.Outcome = OutcomeFuture
	case !reading.Seen.After(device.Seen):
		result.Outcome = OutcomeStale
	default:
		if err := st.Devices().UpdateSnapshot(ctx, device.ID, reading.Seen, reading.Point, reading.Heading, reading.Velocity, reading.Altitude); err != nil {
			return Result{}, err
		}
		result.Outcome = OutcomeUpdated
		s.logger.Printf("updated device %d (%s) last seen to %s", device.ID, reading.Registration, reading.Seen.Format(time.RFC3339))
	}
	return result, nil
}

func (s *Reconciler) publish(ctx context.Context, result Result, reading tracking.Reading, provenance string) {
	if s.bus == nil {
		return
	}
	now := s.clock.Now()
	if result.Outcome == OutcomeCreated {
		if err := s.bus.Publish(ctx, events.DeviceCreated{
			DeviceID:     result.Device.ID,
			ExternalID:   result.Device.ExternalID,
			Registration: reading.Registration,
			Seen:         reading.Seen,
			OccurredAt:   now,
		}); err != nil {
			s.logger.Printf("publish device created: %v", err)
		}
	}
	if err := s.bus.Publish(ctx, events.TelemetryLogged{
		DeviceID:     result.Device.ID,
		ExternalID:   result.Device.ExternalID,
		Registration: reading.Registration,
		Outcome:      string(result.Outcome),
		RegoChanged:  result.RegoChanged,
		Seen:         reading.Seen,
		Provenance:   provenance,
		OccurredAt:   now,
	}); err != nil {
		s.logger.Printf("publish telemetry logged: %v", err)
	}
}
