package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	lotserrors "parkwatch/internal/lots/errors"
	"parkwatch/internal/lots/repository"
	"parkwatch/internal/lots/validator"
	"parkwatch/pkg/config"
	mongotx "parkwatch/pkg/db/mongo"
	apperrors "parkwatch/pkg/errors"
	"parkwatch/pkg/geo"
	"parkwatch/pkg/logger"
	"parkwatch/pkg/model"
)

// Mock repository for testing
type mockParkingLotRepository struct {
	createFunc             func(ctx context.Context, lot *model.ParkingLot) error
	findByIDFunc           func(ctx context.Context, id string) (*model.ParkingLot, error)
	findAllFunc            func(ctx context.Context, limit int, skip int64) ([]*model.ParkingLot, error)
	countFunc              func(ctx context.Context) (int64, error)
	updateFunc             func(ctx context.Context, id string, lot *model.ParkingLot) error
	searchFunc             func(ctx context.Context, filter *model.SearchFilter, limit int, skip int64) ([]*model.ParkingLot, error)
	countSearchFunc        func(ctx context.Context, filter *model.SearchFilter) (int64, error)
	nearbyActiveFunc       func(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]*repository.LotWithDistance, error)
	updateAvailabilityFunc func(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error)
	updateRatingFunc       func(ctx context.Context, id string, rating model.Rating) error
	softDeleteFunc         func(ctx context.Context, id string) error
	existsFunc             func(ctx context.Context, id string) (bool, error)
}

func (m *mockParkingLotRepository) Create(ctx context.Context, lot *model.ParkingLot) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, lot)
	}
	return nil
}

func (m *mockParkingLotRepository) FindByID(ctx context.Context, id string) (*model.ParkingLot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, lotserrors.ErrNotFound
}

func (m *mockParkingLotRepository) FindAll(ctx context.Context, limit int, skip int64) ([]*model.ParkingLot, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, skip)
	}
	return []*model.ParkingLot{}, nil
}

func (m *mockParkingLotRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockParkingLotRepository) Update(ctx context.Context, id string, lot *model.ParkingLot) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, lot)
	}
	return nil
}

func (m *mockParkingLotRepository) Search(ctx context.Context, filter *model.SearchFilter, limit int, skip int64) ([]*model.ParkingLot, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, filter, limit, skip)
	}
	return []*model.ParkingLot{}, nil
}

func (m *mockParkingLotRepository) CountSearch(ctx context.Context, filter *model.SearchFilter) (int64, error) {
	if m.countSearchFunc != nil {
		return m.countSearchFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockParkingLotRepository) NearbyActive(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]*repository.LotWithDistance, error) {
	if m.nearbyActiveFunc != nil {
		return m.nearbyActiveFunc(ctx, center, radiusKm, limit)
	}
	return []*repository.LotWithDistance{}, nil
}

func (m *mockParkingLotRepository) UpdateAvailability(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error) {
	if m.updateAvailabilityFunc != nil {
		return m.updateAvailabilityFunc(ctx, id, update)
	}
	return nil, lotserrors.ErrNotFound
}

func (m *mockParkingLotRepository) UpdateRating(ctx context.Context, id string, rating model.Rating) error {
	if m.updateRatingFunc != nil {
		return m.updateRatingFunc(ctx, id, rating)
	}
	return nil
}

func (m *mockParkingLotRepository) SoftDelete(ctx context.Context, id string) error {
	if m.softDeleteFunc != nil {
		return m.softDeleteFunc(ctx, id)
	}
	return nil
}

func (m *mockParkingLotRepository) Exists(ctx context.Context, id string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, id)
	}
	return false, nil
}

func (m *mockParkingLotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return nil
}

type mockHub struct {
	mu     sync.Mutex
	events []model.AvailabilityEvent
}

func (h *mockHub) Publish(event model.AvailabilityEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *mockHub) Events() []model.AvailabilityEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.AvailabilityEvent{}, h.events...)
}

func testConfig() *config.Config {
	return &config.Config{
		Log:             logger.NewNop(),
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		DefaultRadiusKm: 10,
		MaxRadiusKm:     100,
	}
}

func testService(repo repository.ParkingLotRepository, hub Publisher) *parkingLotService {
	cfg := testConfig()
	return &parkingLotService{
		repo:      repo,
		validator: validator.NewParkingLotValidator(cfg.Log),
		hub:       hub,
		cfg:       cfg,
	}
}

func testLot() *model.ParkingLot {
	return &model.ParkingLot{
		ID:             "507f1f77bcf86cd799439011",
		Name:           "Central Garage",
		Address:        model.Address{Street: "1 Main St", City: "Springfield", State: "Illinois", ZipCode: "62701", Country: "USA"},
		Location:       model.NewGeoPoint(39.78, -89.65),
		TotalSpots:     100,
		AvailableSpots: 40,
		HourlyRate:     3.5,
		IsOpen:         true,
		IsActive:       true,
		OwnerID:        "owner-1",
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestUpdateAvailability_NotFoundBeforeAuthorization(t *testing.T) {
	repo := &mockParkingLotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ParkingLot, error) {
			return nil, lotserrors.ErrNotFound
		},
	}
	svc := testService(repo, nil)

	// Actor is not authorized for anything, but the lot is missing so the
	// not-found error must win.
	actor := model.Actor{ID: "stranger", Role: model.RoleUser}
	_, err := svc.UpdateAvailability(context.Background(), actor, "507f1f77bcf86cd799439011", &model.AvailabilityUpdate{
		AvailableSpots: intPtr(10),
	})

	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected code %s, got %s", apperrors.CodeNotFound, appErr.Code)
	}
}

func TestUpdateAvailability_AuthorizationBeforeValidation(t *testing.T) {
	updateCalled := false
	repo := &mockParkingLotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ParkingLot, error) {
			return testLot(), nil
		},
		updateAvailabilityFunc: func(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error) {
			updateCalled = true
			return testLot(), nil
		},
	}
	svc := testService(repo, nil)

	// Both problems at once: wrong actor and spots over capacity. The
	// authorization failure must be reported and nothing written.
	actor := model.Actor{ID: "stranger", Role: model.RoleUser}
	_, err := svc.UpdateAvailability(context.Background(), actor, "507f1f77bcf86cd799439011", &model.AvailabilityUpdate{
		AvailableSpots: intPtr(500),
	})

	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != apperrors.CodeForbidden {
		t.Errorf("expected code %s, got %s", apperrors.CodeForbidden, appErr.Code)
	}
	if updateCalled {
		t.Error("repository write must not happen for an unauthorized request")
	}
}

func TestUpdateAvailability_RejectsOverCapacity(t *testing.T) {
	updateCalled := false
	repo := &mockParkingLotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ParkingLot, error) {
			return testLot(), nil
		},
		updateAvailabilityFunc: func(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error) {
			updateCalled = true
			return testLot(), nil
		},
	}
	svc := testService(repo, nil)

	actor := model.Actor{ID: "owner-1", Role: model.RoleOwner}
	_, err := svc.UpdateAvailability(context.Background(), actor, "507f1f77bcf86cd799439011", &model.AvailabilityUpdate{
		AvailableSpots: intPtr(101),
	})

	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected code %s, got %s", apperrors.CodeValidation, appErr.Code)
	}
	if updateCalled {
		t.Error("out-of-range spots must be rejected before the write, not clamped")
	}
}

func TestUpdateAvailability_RejectsEmptyPayload(t *testing.T) {
	repo := &mockParkingLotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ParkingLot, error) {
			return testLot(), nil
		},
	}
	svc := testService(repo, nil)

	actor := model.Actor{ID: "owner-1", Role: model.RoleOwner}
	_, err := svc.UpdateAvailability(context.Background(), actor, "507f1f77bcf86cd799439011", &model.AvailabilityUpdate{})

	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error for empty payload, got %v", err)
	}
}

func TestUpdateAvailability_PublishesAfterCommitOnly(t *testing.T) {
	hub := &mockHub{}
	failWrite := true
	repo := &mockParkingLotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ParkingLot, error) {
			return testLot(), nil
		},
		updateAvailabilityFunc: func(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error) {
			if failWrite {
				return nil, lotserrors.ErrStaleCapacity
			}
			lot := testLot()
			lot.AvailableSpots = *update.AvailableSpots
			return lot, nil
		},
	}
	svc := testService(repo, hub)
	actor := model.Actor{ID: "sensor-7", Role: model.RoleSensor}

	_, err := svc.UpdateAvailability(context.Background(), actor, "507f1f77bcf86cd799439011", &model.AvailabilityUpdate{
		AvailableSpots: intPtr(25),
	})
	if err == nil {
		t.Fatal("expected error when the write fails")
	}
	if len(hub.Events()) != 0 {
		t.Fatalf("no event may be published for a failed write, got %d", len(hub.Events()))
	}

	failWrite = false
	lot, err := svc.UpdateAvailability(context.Background(), actor, "507f1f77bcf86cd799439011", &model.AvailabilityUpdate{
		AvailableSpots: intPtr(25),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := hub.Events()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	if events[0].LotID != lot.ID || events[0].AvailableSpots != 25 {
		t.Errorf("event does not reflect the committed state: %+v", events[0])
	}
	if events[0].OccupancyPercentage != 75 {
		t.Errorf("expected occupancy 75, got %d", events[0].OccupancyPercentage)
	}
}

func TestUpdateAvailability_Idempotent(t *testing.T) {
	hub := &mockHub{}
	repo := &mockParkingLotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ParkingLot, error) {
			lot := testLot()
			lot.AvailableSpots = 25
			return lot, nil
		},
		updateAvailabilityFunc: func(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error) {
			lot := testLot()
			lot.AvailableSpots = *update.AvailableSpots
			return lot, nil
		},
	}
	svc := testService(repo, hub)
	actor := model.Actor{ID: "admin-1", Role: model.RoleAdmin}

	for i := 0; i < 2; i++ {
		lot, err := svc.UpdateAvailability(context.Background(), actor, "507f1f77bcf86cd799439011", &model.AvailabilityUpdate{
			AvailableSpots: intPtr(25),
		})
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if lot.AvailableSpots != 25 {
			t.Errorf("attempt %d: expected 25 spots, got %d", i, lot.AvailableSpots)
		}
	}
}

func TestUpdateAvailability_SensorMayWriteAnyLot(t *testing.T) {
	repo := &mockParkingLotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ParkingLot, error) {
			return testLot(), nil
		},
		updateAvailabilityFunc: func(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error) {
			lot := testLot()
			lot.IsOpen = *update.IsOpen
			return lot, nil
		},
	}
	svc := testService(repo, nil)

	actor := model.Actor{ID: "gate-device-3", Role: model.RoleSensor}
	lot, err := svc.UpdateAvailability(context.Background(), actor, "507f1f77bcf86cd799439011", &model.AvailabilityUpdate{
		IsOpen: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lot.IsOpen {
		t.Error("expected lot to be closed")
	}
}

func TestNearby_InvalidCoordinates(t *testing.T) {
	svc := testService(&mockParkingLotRepository{}, nil)

	cases := []struct {
		name     string
		lat, lon float64
	}{
		{"lat too high", 91, 0},
		{"lat too low", -91, 0},
		{"lon too high", 0, 181},
		{"lon too low", 0, -181},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Nearby(context.Background(), tc.lat, tc.lon, 5)
			appErr := apperrors.AsAppError(err)
			if appErr == nil || appErr.Code != apperrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNearby_DefaultAndMaxRadius(t *testing.T) {
	var capturedRadius float64
	repo := &mockParkingLotRepository{
		nearbyActiveFunc: func(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]*repository.LotWithDistance, error) {
			capturedRadius = radiusKm
			return []*repository.LotWithDistance{}, nil
		},
	}
	svc := testService(repo, nil)

	if _, err := svc.Nearby(context.Background(), 39.78, -89.65, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capturedRadius != 10 {
		t.Errorf("expected default radius 10, got %v", capturedRadius)
	}

	_, err := svc.Nearby(context.Background(), 39.78, -89.65, 101)
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error for oversized radius, got %v", err)
	}
}

func TestNearby_PopulatesDistance(t *testing.T) {
	repo := &mockParkingLotRepository{
		nearbyActiveFunc: func(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]*repository.LotWithDistance, error) {
			return []*repository.LotWithDistance{
				{ParkingLot: *testLot(), DistanceMeters: 1500},
			}, nil
		},
	}
	svc := testService(repo, nil)

	summaries, err := svc.Nearby(context.Background(), 39.78, -89.65, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].DistanceKm == nil || *summaries[0].DistanceKm != 1.5 {
		t.Errorf("expected distance 1.5 km, got %v", summaries[0].DistanceKm)
	}
}

func TestSearch_RetriesOnceOnTransientError(t *testing.T) {
	var countCalls, findCalls int
	repo := &mockParkingLotRepository{
		countSearchFunc: func(ctx context.Context, filter *model.SearchFilter) (int64, error) {
			countCalls++
			return 1, nil
		},
		searchFunc: func(ctx context.Context, filter *model.SearchFilter, limit int, skip int64) ([]*model.ParkingLot, error) {
			findCalls++
			if findCalls == 1 {
				return nil, context.DeadlineExceeded
			}
			return []*model.ParkingLot{testLot()}, nil
		},
	}
	svc := testService(repo, nil)

	summaries, total, err := svc.Search(context.Background(), &model.SearchFilter{City: "Springfield"}, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if findCalls != 2 {
		t.Errorf("expected exactly one retry, got %d find calls", findCalls)
	}
	if total != 1 || len(summaries) != 1 {
		t.Errorf("expected 1 result, got total=%d len=%d", total, len(summaries))
	}
}

func TestSearch_NoRetryOnNonTransientError(t *testing.T) {
	var findCalls int
	repo := &mockParkingLotRepository{
		searchFunc: func(ctx context.Context, filter *model.SearchFilter, limit int, skip int64) ([]*model.ParkingLot, error) {
			findCalls++
			return nil, errors.New("cannot decode document into ParkingLot")
		},
	}
	svc := testService(repo, nil)

	_, _, err := svc.Search(context.Background(), &model.SearchFilter{City: "Springfield"}, 1, 10)
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeInternal {
		t.Fatalf("decode failures must surface as internal errors, got %v", err)
	}
	if findCalls != 1 {
		t.Errorf("only transient store errors earn the retry, got %d find calls", findCalls)
	}
}

func TestSearch_EscapesFilterBeforeRepository(t *testing.T) {
	var captured *model.SearchFilter
	repo := &mockParkingLotRepository{
		searchFunc: func(ctx context.Context, filter *model.SearchFilter, limit int, skip int64) ([]*model.ParkingLot, error) {
			captured = filter
			return []*model.ParkingLot{}, nil
		},
	}
	svc := testService(repo, nil)

	_, _, err := svc.Search(context.Background(), &model.SearchFilter{City: "  Spring   field  "}, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured == nil {
		t.Fatal("repository never received the filter")
	}
	if captured.City != "Spring field" {
		t.Errorf("expected normalized city, got %q", captured.City)
	}
}

func TestGetAll_PageSkipMath(t *testing.T) {
	var capturedSkip int64
	var capturedLimit int
	repo := &mockParkingLotRepository{
		countFunc: func(ctx context.Context) (int64, error) { return 30, nil },
		findAllFunc: func(ctx context.Context, limit int, skip int64) ([]*model.ParkingLot, error) {
			capturedLimit = limit
			capturedSkip = skip
			return []*model.ParkingLot{}, nil
		},
	}
	svc := testService(repo, nil)

	_, total, err := svc.GetAll(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 30 {
		t.Errorf("expected total 30, got %d", total)
	}
	if capturedLimit != 10 || capturedSkip != 20 {
		t.Errorf("expected limit=10 skip=20, got limit=%d skip=%d", capturedLimit, capturedSkip)
	}
}

func TestDelete_OwnerOnly(t *testing.T) {
	deleted := false
	repo := &mockParkingLotRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.ParkingLot, error) {
			return testLot(), nil
		},
		softDeleteFunc: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	svc := testService(repo, nil)

	err := svc.Delete(context.Background(), model.Actor{ID: "stranger", Role: model.RoleUser}, "507f1f77bcf86cd799439011")
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if deleted {
		t.Error("soft delete must not run for an unauthorized actor")
	}

	if err := svc.Delete(context.Background(), model.Actor{ID: "owner-1", Role: model.RoleOwner}, "507f1f77bcf86cd799439011"); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if !deleted {
		t.Error("expected soft delete to run for the owner")
	}
}

func TestCreate_OwnerIDForcedForOwners(t *testing.T) {
	var created *model.ParkingLot
	repo := &mockParkingLotRepository{
		createFunc: func(ctx context.Context, lot *model.ParkingLot) error {
			created = lot
			return nil
		},
	}
	svc := testService(repo, nil)

	lot := testLot()
	lot.ID = ""
	lot.OwnerID = "someone-else"
	err := svc.Create(context.Background(), model.Actor{ID: "owner-9", Role: model.RoleOwner}, lot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.OwnerID != "owner-9" {
		t.Errorf("owner-created lots must belong to the creating owner, got %q", created.OwnerID)
	}
}

func TestCreate_RejectsPlainUsers(t *testing.T) {
	svc := testService(&mockParkingLotRepository{}, nil)

	lot := testLot()
	lot.ID = ""
	err := svc.Create(context.Background(), model.Actor{ID: "user-1", Role: model.RoleUser}, lot)
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
