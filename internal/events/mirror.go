package events

import (
	"context"

	"parkwatch/pkg/kafka"
	"parkwatch/pkg/logger"
	"parkwatch/pkg/model"
)

const (
	// TopicSensorReadings carries raw readings from the sensor fleet.
	TopicSensorReadings = "parking.sensor-readings"

	// TopicAvailabilityEvents mirrors committed availability changes for
	// downstream consumers. Messages are keyed by lot id so each lot's
	// events stay ordered within a partition.
	TopicAvailabilityEvents = "parking.availability-events"

	EventTypeAvailabilityChanged = "parking.availability-changed"

	sourceName = "parkwatch"
)

// AvailabilityMirror publishes committed availability events to the bus.
type AvailabilityMirror struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewAvailabilityMirror(producer *kafka.Producer, log *logger.Logger) *AvailabilityMirror {
	return &AvailabilityMirror{
		producer: producer,
		log:      log,
	}
}

func (m *AvailabilityMirror) Mirror(ctx context.Context, event model.AvailabilityEvent) error {
	msg := kafka.NewMessage().
		WithKey(event.LotID).
		WithValue(event).
		WithEventType(EventTypeAvailabilityChanged).
		WithSource(sourceName).
		Build()

	return m.producer.Publish(ctx, msg)
}
