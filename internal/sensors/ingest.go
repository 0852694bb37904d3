package sensors

import (
	"context"

	lotservice "parkwatch/internal/lots/service"
	apperrors "parkwatch/pkg/errors"
	"parkwatch/pkg/kafka"
	"parkwatch/pkg/logger"
	"parkwatch/pkg/model"
)

// Ingestor turns sensor readings from the bus into availability updates.
// Readings run under the sensor role, so they may touch any lot.
type Ingestor struct {
	lots lotservice.ParkingLotService
	log  *logger.Logger
}

func NewIngestor(lots lotservice.ParkingLotService, log *logger.Logger) *Ingestor {
	return &Ingestor{
		lots: lots,
		log:  log,
	}
}

// Handle processes one sensor reading. Malformed payloads and business
// rejections are permanent: retrying them cannot succeed, they go to the DLQ.
// Store outages stay retryable.
func (i *Ingestor) Handle(ctx context.Context, msg kafka.Message) error {
	var reading model.SensorReading
	if err := msg.DecodeValue(&reading); err != nil {
		i.log.Warn("Discarding undecodable sensor reading",
			"event_id", msg.GetEventID(),
			"error", err,
		)
		return kafka.Permanent(err)
	}

	if reading.LotID == "" {
		i.log.Warn("Discarding sensor reading without lot id", "device_id", reading.DeviceID)
		return kafka.Permanent(apperrors.InvalidInput("sensor reading missing lot_id"))
	}

	actor := model.Actor{ID: reading.DeviceID, Role: model.RoleSensor}
	update := &model.AvailabilityUpdate{
		AvailableSpots: reading.AvailableSpots,
		IsOpen:         reading.IsOpen,
	}

	_, err := i.lots.UpdateAvailability(ctx, actor, reading.LotID, update)
	if err != nil {
		if apperrors.IsTransient(err) {
			i.log.Warn("Sensor reading hit transient store error",
				"lot_id", reading.LotID,
				"device_id", reading.DeviceID,
				"error", err,
			)
			return err
		}
		i.log.Warn("Sensor reading rejected",
			"lot_id", reading.LotID,
			"device_id", reading.DeviceID,
			"error", err,
		)
		return kafka.Permanent(err)
	}

	i.log.Debug("Sensor reading applied",
		"lot_id", reading.LotID,
		"device_id", reading.DeviceID,
	)
	return nil
}
