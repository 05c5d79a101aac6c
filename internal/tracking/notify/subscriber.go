package notify

import (
	"context"
	"log"

	"fleettrack-harvest/internal/eventing"
	"fleettrack-harvest/internal/tracking/application/eventbus"
	"fleettrack-harvest/internal/tracking/application/events"
)

// ConsumerName identifies this subscriber for idempotency tracking.
const ConsumerName = "device-created-notifier"

// SubscribeDeviceCreated routes device creation events to the notifier.
// Delivery failures are logged, not retried; the processed store keeps
// redelivered events from producing duplicate notifications.
func SubscribeDeviceCreated(bus eventbus.EventBus, notifier Notifier, store eventing.ProcessedStore, logger *log.Logger) {
	if bus == nil || notifier == nil {
		return
	}
	if logger == nil {
		logger = log.Default()
	}
	handler := func(ctx context.Context, event any) error {
		created, ok := asDeviceCreated(event)
		if !ok {
			return nil
		}
		alert := DeviceAlert{
			DeviceID:     created.DeviceID,
			ExternalID:   created.ExternalID,
			Registration: created.Registration,
			Seen:         created.Seen,
		}
		if err := notifier.Notify(ctx, alert); err != nil {
			logger.Printf("device created notify error: device=%s err=%v", created.ExternalID, err)
		}
		return nil
	}
	eventing.Subscribe(bus, eventbus.EventTypeOf[events.DeviceCreated](), ConsumerName, handler, store)
}

func asDeviceCreated(event any) (events.DeviceCreated, bool) {
	switch v := event.(type) {
	case events.DeviceCreated:
		return v, true
	case *events.DeviceCreated:
		if v != nil {
			return *v, true
		}
	}
	return events.DeviceCreated{}, false
}
