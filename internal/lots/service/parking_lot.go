package service

import (
	"context"
	"errors"
	"sync"

	lotserrors "parkwatch/internal/lots/errors"
	"parkwatch/internal/lots/repository"
	"parkwatch/internal/lots/validator"
	"parkwatch/pkg/config"
	apperrors "parkwatch/pkg/errors"
	"parkwatch/pkg/geo"
	"parkwatch/pkg/model"
	"parkwatch/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// maxNearbyResults caps a single radius query; results are closest first so
// the nearest lots always survive the cap.
const maxNearbyResults = 100

// Publisher fans a committed availability change out to live subscribers.
type Publisher interface {
	Publish(event model.AvailabilityEvent)
}

// EventMirror forwards a committed availability change to the event topic.
// Mirror failures are logged and never surfaced to the caller; the store
// remains the source of truth.
type EventMirror interface {
	Mirror(ctx context.Context, event model.AvailabilityEvent) error
}

// ReviewCounter exposes the review count for the stats endpoint without
// coupling this package to the reviews repository.
type ReviewCounter interface {
	CountByLot(ctx context.Context, lotID string) (int64, error)
}

type ParkingLotService interface {
	Create(ctx context.Context, actor model.Actor, lot *model.ParkingLot) error
	GetByID(ctx context.Context, id string) (*model.ParkingLot, error)
	GetAll(ctx context.Context, page, limit int) ([]*model.ParkingLot, int64, error)
	Update(ctx context.Context, actor model.Actor, id string, updates *model.ParkingLotUpdate) (*model.ParkingLot, error)
	Delete(ctx context.Context, actor model.Actor, id string) error
	Search(ctx context.Context, filter *model.SearchFilter, page, limit int) ([]model.LotSummary, int64, error)
	Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]model.LotSummary, error)
	UpdateAvailability(ctx context.Context, actor model.Actor, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error)
	GetStats(ctx context.Context, id string) (*model.LotStats, error)
}

type parkingLotService struct {
	repo      repository.ParkingLotRepository
	validator *validator.ParkingLotValidator
	hub       Publisher
	mirror    EventMirror
	reviews   ReviewCounter
	cfg       *config.Config
}

func NewParkingLotService(
	repo repository.ParkingLotRepository,
	validator *validator.ParkingLotValidator,
	hub Publisher,
	mirror EventMirror,
	reviews ReviewCounter,
	cfg *config.Config,
) ParkingLotService {
	return &parkingLotService{
		repo:      repo,
		validator: validator,
		hub:       hub,
		mirror:    mirror,
		reviews:   reviews,
		cfg:       cfg,
	}
}

func (s *parkingLotService) Create(ctx context.Context, actor model.Actor, lot *model.ParkingLot) error {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleOwner {
		return apperrors.Forbidden("Only administrators and parking owners may create lots")
	}
	if actor.Role == model.RoleOwner {
		lot.OwnerID = actor.ID
	}

	s.applyDefaults(lot)
	s.sanitize(lot)
	if err := s.validate(lot); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, lot); err != nil {
		s.cfg.Log.Error("Failed to create parking lot", "error", err)
		return apperrors.Internal("Failed to create parking lot", err)
	}

	s.cfg.Log.Info("Parking lot created successfully",
		"id", lot.ID,
		"name", lot.Name,
		"owner_id", lot.OwnerID,
		"total_spots", lot.TotalSpots,
	)
	return nil
}

func (s *parkingLotService) GetByID(ctx context.Context, id string) (*model.ParkingLot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Parking lot ID cannot be empty")
	}

	lot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return lot, nil
}

func (s *parkingLotService) GetAll(ctx context.Context, page, limit int) ([]*model.ParkingLot, int64, error) {
	skip := int64(page-1) * int64(limit)

	var count int64
	var lots []*model.ParkingLot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count parking lots", "error", errCount)
			errCount = apperrors.Internal("Failed to count parking lots", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		lots, errFind = s.repo.FindAll(ctx, limit, skip)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list parking lots", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve parking lots", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return lots, count, nil
}

func (s *parkingLotService) Update(ctx context.Context, actor model.Actor, id string, updates *model.ParkingLotUpdate) (*model.ParkingLot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Parking lot ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	if !actor.CanManage(existing.OwnerID) {
		return nil, apperrors.Forbidden("Only the lot owner or an administrator may edit this lot")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Parking lot update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeLotUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, lotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Parking lot", id)
		}
		s.cfg.Log.Error("Failed to update parking lot", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update parking lot", err)
	}

	s.cfg.Log.Info("Parking lot updated successfully", "id", id)
	return merged, nil
}

func (s *parkingLotService) Delete(ctx context.Context, actor model.Actor, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Parking lot ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapLookupError(err, id)
	}

	if !actor.CanManage(existing.OwnerID) {
		return apperrors.Forbidden("Only the lot owner or an administrator may delete this lot")
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, lotserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Parking lot", id)
		}
		s.cfg.Log.Error("Failed to delete parking lot", "id", id, "error", err)
		return apperrors.Internal("Failed to delete parking lot", err)
	}

	s.cfg.Log.Info("Parking lot deleted successfully", "id", id)
	return nil
}

func (s *parkingLotService) Search(ctx context.Context, filter *model.SearchFilter, page, limit int) ([]model.LotSummary, int64, error) {
	s.sanitizeFilter(filter)

	lots, count, err := s.searchOnce(ctx, filter, page, limit)
	if err != nil && apperrors.IsTransient(err) {
		s.cfg.Log.Warn("Search hit transient store error, retrying once", "error", err)
		lots, count, err = s.searchOnce(ctx, filter, page, limit)
	}
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]model.LotSummary, 0, len(lots))
	for _, lot := range lots {
		summaries = append(summaries, lot.Summary())
	}

	s.cfg.Log.Debug("Parking lot search completed",
		"count", len(summaries),
		"total_count", count,
		"page", page,
		"limit", limit,
	)
	return summaries, count, nil
}

func (s *parkingLotService) searchOnce(ctx context.Context, filter *model.SearchFilter, page, limit int) ([]*model.ParkingLot, int64, error) {
	skip := int64(page-1) * int64(limit)

	var count int64
	var lots []*model.ParkingLot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountSearch(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count parking lots by search", "error", err)
			errCount = s.storeError("Failed to count parking lots by search", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		lots, err = s.repo.Search(ctx, filter, limit, skip)
		if err != nil {
			s.cfg.Log.Error("Failed to search parking lots",
				"limit", limit,
				"skip", skip,
				"error", err,
			)
			errFind = s.storeError("Failed to search parking lots", err)
		}
	}()

	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return lots, count, nil
}

func (s *parkingLotService) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]model.LotSummary, error) {
	center := geo.Point{Lat: lat, Lon: lon}
	if err := center.Validate(); err != nil {
		return nil, apperrors.Validation("Invalid coordinates", map[string]any{"error": err.Error()})
	}

	if radiusKm <= 0 {
		radiusKm = s.cfg.DefaultRadiusKm
	}
	if radiusKm > s.cfg.MaxRadiusKm {
		return nil, apperrors.Validation("Radius too large", map[string]any{
			"radius_km":     radiusKm,
			"max_radius_km": s.cfg.MaxRadiusKm,
		})
	}

	lots, err := s.repo.NearbyActive(ctx, center, radiusKm, maxNearbyResults)
	if err != nil {
		s.cfg.Log.Error("Failed to find nearby parking lots",
			"lat", lat,
			"lon", lon,
			"radius_km", radiusKm,
			"error", err,
		)
		return nil, s.storeError("Failed to find nearby parking lots", err)
	}

	summaries := make([]model.LotSummary, 0, len(lots))
	for _, lot := range lots {
		summary := lot.Summary()
		distanceKm := lot.DistanceMeters / 1000.0
		summary.DistanceKm = &distanceKm
		summaries = append(summaries, summary)
	}

	s.cfg.Log.Debug("Nearby query completed",
		"lat", lat,
		"lon", lon,
		"radius_km", radiusKm,
		"count", len(summaries),
	)
	return summaries, nil
}

// UpdateAvailability performs the availability mutation in a fixed order:
// lookup, then authorization, then validation, then the guarded write. A
// caller that is both unauthorized and sends bad input gets the authorization
// error. Events fan out only after the write has committed.
func (s *parkingLotService) UpdateAvailability(ctx context.Context, actor model.Actor, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Parking lot ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	if !actor.Elevated() && !actor.CanManage(existing.OwnerID) {
		return nil, apperrors.Forbidden("Not authorized to update availability for this lot")
	}

	if err := s.validator.ValidateAvailability(update, existing.TotalSpots); err != nil {
		s.cfg.Log.Warn("Availability validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid availability input", map[string]any{"error": err.Error()})
	}

	lot, err := s.repo.UpdateAvailability(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, lotserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Parking lot", id)
		case errors.Is(err, lotserrors.ErrStaleCapacity):
			return nil, apperrors.Conflict("Available spots exceed the lot's current capacity")
		default:
			s.cfg.Log.Error("Failed to update availability", "id", id, "error", err)
			return nil, s.storeError("Failed to update availability", err)
		}
	}

	event := model.AvailabilityEvent{
		LotID:               lot.ID,
		AvailableSpots:      lot.AvailableSpots,
		IsOpen:              lot.IsOpen,
		OccupancyPercentage: lot.OccupancyPercentage(),
		LastUpdated:         lot.LastUpdated,
	}

	if s.hub != nil {
		s.hub.Publish(event)
	}
	if s.mirror != nil {
		if err := s.mirror.Mirror(ctx, event); err != nil {
			s.cfg.Log.Warn("Failed to mirror availability event",
				"lot_id", lot.ID,
				"error", err,
			)
		}
	}

	s.cfg.Log.Info("Availability updated",
		"id", lot.ID,
		"available_spots", lot.AvailableSpots,
		"is_open", lot.IsOpen,
		"actor_id", actor.ID,
		"actor_role", actor.Role,
	)
	return lot, nil
}

func (s *parkingLotService) GetStats(ctx context.Context, id string) (*model.LotStats, error) {
	lot, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var reviewsCount int64
	if s.reviews != nil {
		reviewsCount, err = s.reviews.CountByLot(ctx, id)
		if err != nil {
			s.cfg.Log.Warn("Failed to count reviews for stats", "lot_id", id, "error", err)
			reviewsCount = lot.Rating.Count
		}
	}

	return &model.LotStats{
		TotalSpots:          lot.TotalSpots,
		AvailableSpots:      lot.AvailableSpots,
		OccupancyPercentage: lot.OccupancyPercentage(),
		HourlyRate:          lot.HourlyRate,
		DailyRate:           lot.DailyRate,
		Rating:              lot.Rating,
		ReviewsCount:        reviewsCount,
		IsOpen:              lot.IsOpen,
		IsActive:            lot.IsActive,
	}, nil
}

// --- Helpers ---

func (s *parkingLotService) applyDefaults(lot *model.ParkingLot) {
	lot.IsActive = true
	if lot.AvailableSpots == 0 && lot.TotalSpots > 0 {
		lot.AvailableSpots = lot.TotalSpots
	}
	if lot.Currency == "" {
		lot.Currency = "USD"
	}
	lot.Rating = model.Rating{}
}

func (s *parkingLotService) sanitize(lot *model.ParkingLot) {
	lot.Name = sanitizer.NormalizeName(lot.Name)
	lot.Description = sanitizer.TrimAndNormalize(lot.Description)
	lot.Address.Street = sanitizer.TrimAndNormalize(lot.Address.Street)
	lot.Address.City = sanitizer.NormalizeCity(lot.Address.City)
	lot.Address.State = sanitizer.NormalizeCity(lot.Address.State)
	lot.Address.ZipCode = sanitizer.TrimAndNormalize(lot.Address.ZipCode)
	lot.Address.Country = sanitizer.NormalizeCity(lot.Address.Country)
	lot.Amenities = sanitizer.NormalizeAmenities(lot.Amenities)
}

func (s *parkingLotService) sanitizeFilter(filter *model.SearchFilter) {
	if filter == nil {
		return
	}
	filter.Query = sanitizer.TrimAndNormalize(filter.Query)
	filter.City = sanitizer.TrimAndNormalize(filter.City)
	filter.State = sanitizer.TrimAndNormalize(filter.State)
	filter.Amenities = sanitizer.NormalizeAmenities(filter.Amenities)
}

func (s *parkingLotService) mergeLotUpdates(existing *model.ParkingLot, updates *model.ParkingLotUpdate) *model.ParkingLot {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Description != nil {
		merged.Description = *updates.Description
	}
	if updates.Address != nil {
		merged.Address = *updates.Address
	}
	if updates.Location != nil {
		merged.Location = *updates.Location
	}
	if updates.TotalSpots != nil {
		merged.TotalSpots = *updates.TotalSpots
		if merged.AvailableSpots > merged.TotalSpots {
			merged.AvailableSpots = merged.TotalSpots
		}
	}
	if updates.HourlyRate != nil {
		merged.HourlyRate = *updates.HourlyRate
	}
	if updates.DailyRate != nil {
		merged.DailyRate = *updates.DailyRate
	}
	if updates.Amenities != nil {
		merged.Amenities = *updates.Amenities
	}

	return &merged
}

func (s *parkingLotService) validate(lot *model.ParkingLot) error {
	if err := s.validator.Validate(lot); err != nil {
		s.cfg.Log.Warn("Parking lot validation failed", "error", err)
		return apperrors.Validation("Parking lot validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// storeError classifies a repository failure. Network and timeout errors are
// transient and surface as SERVICE_UNAVAILABLE; everything else (decode
// failures, programming errors) is INTERNAL_ERROR and must not be retried.
func (s *parkingLotService) storeError(message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return apperrors.Unavailable("parking lot store", err)
	}
	return apperrors.Internal(message, err)
}

func (s *parkingLotService) mapLookupError(err error, id string) error {
	if errors.Is(err, lotserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Parking lot", id)
	}
	if errors.Is(err, lotserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid parking lot ID format")
	}
	return apperrors.Internal("Failed to retrieve parking lot", err)
}
