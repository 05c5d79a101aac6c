package tracking

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload marks a telemetry payload with missing or
	// unparseable required fields. The event is rejected outright.
	ErrMalformedPayload = errors.New("tracking: malformed payload")

	// ErrDeviceConflict marks a lost device-creation race: the uniqueness
	// constraint on (source_type, deviceid) rejected the insert. Callers
	// recover by re-reading the now-existing device.
	ErrDeviceConflict = errors.New("tracking: device already exists")

	// ErrStoreUnavailable marks a storage failure that must propagate so the
	// transport layer can arrange redelivery.
	ErrStoreUnavailable = errors.New("tracking: store unavailable")
)

// StoreError wraps a storage failure with the operation that produced it.
// It matches ErrStoreUnavailable under errors.Is while preserving the cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("tracking: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// NewStoreError wraps err unless it already carries a domain meaning.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDeviceConflict) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
