package model

import "time"

// AvailabilityEvent is the change notification fanned out to subscribers and
// mirrored to the event topic. It is emitted only after the mutation has been
// committed to the store.
type AvailabilityEvent struct {
	LotID               string    `json:"lot_id"`
	AvailableSpots      int       `json:"available_spots"`
	IsOpen              bool      `json:"is_open"`
	OccupancyPercentage int       `json:"occupancy_percentage"`
	LastUpdated         time.Time `json:"last_updated"`
}

// SensorReading is the trusted sensor integration's ingest payload.
type SensorReading struct {
	LotID          string `json:"lot_id"`
	DeviceID       string `json:"device_id"`
	AvailableSpots *int   `json:"available_spots,omitempty"`
	IsOpen         *bool  `json:"is_open,omitempty"`
}
