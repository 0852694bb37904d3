package model

import (
	"math"
	"time"
)

// Amenity tags form a closed set; anything outside it is rejected at
// validation time rather than stored.
const AmenityOneOf = "security covered electric-charging disabled-access valet shuttle bike-rack motorcycle-spots truck-spots 24-7-access"

type Address struct {
	Street  string `json:"street" bson:"street" validate:"required,min=2,max=200"`
	City    string `json:"city" bson:"city" validate:"required,min=2,max=100"`
	State   string `json:"state" bson:"state" validate:"required,min=2,max=100"`
	ZipCode string `json:"zip_code" bson:"zip_code" validate:"required,min=2,max=20"`
	Country string `json:"country" bson:"country" validate:"required,min=2,max=100"`
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude] on the
// wire and in storage, matching the 2dsphere index convention.
type GeoPoint struct {
	Type        string    `json:"type" bson:"type" validate:"required,eq=Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"required,len=2"`
}

func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

func (g GeoPoint) Lon() float64 {
	if len(g.Coordinates) != 2 {
		return 0
	}
	return g.Coordinates[0]
}

func (g GeoPoint) Lat() float64 {
	if len(g.Coordinates) != 2 {
		return 0
	}
	return g.Coordinates[1]
}

type Rating struct {
	Average float64 `json:"average" bson:"average" validate:"min=0,max=5"`
	Count   int64   `json:"count" bson:"count" validate:"min=0"`
}

type ParkingLot struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name           string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description    string    `json:"description,omitempty" bson:"description" validate:"omitempty,max=500"`
	Address        Address   `json:"address" bson:"address" validate:"required"`
	Location       GeoPoint  `json:"location" bson:"location" validate:"required"`
	TotalSpots     int       `json:"total_spots" bson:"total_spots" validate:"required,min=1"`
	AvailableSpots int       `json:"available_spots" bson:"available_spots" validate:"min=0"`
	HourlyRate     float64   `json:"hourly_rate" bson:"hourly_rate" validate:"min=0"`
	DailyRate      float64   `json:"daily_rate,omitempty" bson:"daily_rate" validate:"min=0"`
	Currency       string    `json:"currency,omitempty" bson:"currency" validate:"omitempty,len=3"`
	Amenities      []string  `json:"amenities,omitempty" bson:"amenities" validate:"omitempty,dive,oneof=security covered electric-charging disabled-access valet shuttle bike-rack motorcycle-spots truck-spots 24-7-access"`
	IsOpen         bool      `json:"is_open" bson:"is_open"`
	IsActive       bool      `json:"is_active" bson:"is_active"`
	OwnerID        string    `json:"owner_id" bson:"owner_id" validate:"required"`
	Rating         Rating    `json:"rating" bson:"rating"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	LastUpdated    time.Time `json:"last_updated" bson:"last_updated" validate:"omitempty"`
}

// ParkingLotUpdate covers owner/admin edits of descriptive fields. Rating is
// absent on purpose: only the rating aggregator writes it. Availability and
// open state go through the availability operation, not here.
type ParkingLotUpdate struct {
	Name        string    `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=500"`
	Address     *Address  `json:"address,omitempty"`
	Location    *GeoPoint `json:"location,omitempty"`
	TotalSpots  *int      `json:"total_spots,omitempty" validate:"omitempty,min=1"`
	HourlyRate  *float64  `json:"hourly_rate,omitempty" validate:"omitempty,min=0"`
	DailyRate   *float64  `json:"daily_rate,omitempty" validate:"omitempty,min=0"`
	Amenities   *[]string `json:"amenities,omitempty" validate:"omitempty,dive,oneof=security covered electric-charging disabled-access valet shuttle bike-rack motorcycle-spots truck-spots 24-7-access"`
}

// AvailabilityUpdate is the write payload for the availability operation.
// Nil pointers mean "leave unchanged"; provided values are validated against
// the lot's capacity with rejection, never clamping.
type AvailabilityUpdate struct {
	AvailableSpots *int  `json:"available_spots,omitempty"`
	IsOpen         *bool `json:"is_open,omitempty"`
}

// OccupancyPercentage is a pure function over the persisted counters. It is
// computed on demand and never stored.
func OccupancyPercentage(totalSpots, availableSpots int) int {
	if totalSpots <= 0 {
		return 0
	}
	return int(math.Round(float64(totalSpots-availableSpots) / float64(totalSpots) * 100))
}

// IsAvailable reports whether the lot currently has usable spots.
func (p *ParkingLot) IsAvailable() bool {
	return p.AvailableSpots > 0 && p.IsOpen && p.IsActive
}

func (p *ParkingLot) OccupancyPercentage() int {
	return OccupancyPercentage(p.TotalSpots, p.AvailableSpots)
}

// LotSummary is the search/nearby result shape. DistanceKm is populated only
// on radius-bound queries.
type LotSummary struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Address             Address  `json:"address"`
	Location            GeoPoint `json:"location"`
	TotalSpots          int      `json:"total_spots"`
	AvailableSpots      int      `json:"available_spots"`
	OccupancyPercentage int      `json:"occupancy_percentage"`
	HourlyRate          float64  `json:"hourly_rate"`
	DailyRate           float64  `json:"daily_rate,omitempty"`
	Amenities           []string `json:"amenities,omitempty"`
	IsOpen              bool     `json:"is_open"`
	Rating              Rating   `json:"rating"`
	DistanceKm          *float64 `json:"distance_km,omitempty"`
}

func (p *ParkingLot) Summary() LotSummary {
	return LotSummary{
		ID:                  p.ID,
		Name:                p.Name,
		Address:             p.Address,
		Location:            p.Location,
		TotalSpots:          p.TotalSpots,
		AvailableSpots:      p.AvailableSpots,
		OccupancyPercentage: p.OccupancyPercentage(),
		HourlyRate:          p.HourlyRate,
		DailyRate:           p.DailyRate,
		Amenities:           p.Amenities,
		IsOpen:              p.IsOpen,
		Rating:              p.Rating,
	}
}

// SearchFilter is the closed set of supported search predicates. Each field
// maps to exactly one typed query clause; there is no passthrough of raw
// client-supplied operators into the store.
type SearchFilter struct {
	Query         string
	City          string
	State         string
	Amenities     []string
	MinRate       *float64
	MaxRate       *float64
	AvailableOnly bool
}

type LotStats struct {
	TotalSpots          int     `json:"total_spots"`
	AvailableSpots      int     `json:"available_spots"`
	OccupancyPercentage int     `json:"occupancy_percentage"`
	HourlyRate          float64 `json:"hourly_rate"`
	DailyRate           float64 `json:"daily_rate"`
	Rating              Rating  `json:"rating"`
	ReviewsCount        int64   `json:"reviews_count"`
	IsOpen              bool    `json:"is_open"`
	IsActive            bool    `json:"is_active"`
}
