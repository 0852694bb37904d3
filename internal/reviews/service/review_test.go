package service

import (
	"context"
	"sync"
	"testing"
	"time"

	reviewserrors "parkwatch/internal/reviews/errors"
	"parkwatch/internal/reviews/validator"
	"parkwatch/pkg/config"
	mongotx "parkwatch/pkg/db/mongo"
	apperrors "parkwatch/pkg/errors"
	"parkwatch/pkg/logger"
	"parkwatch/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// Mock repository for testing
type mockReviewRepository struct {
	createFunc          func(ctx context.Context, review *model.Review) error
	findByIDFunc        func(ctx context.Context, id string) (*model.Review, error)
	findByLotFunc       func(ctx context.Context, lotID string, limit int, skip int64) ([]*model.Review, error)
	countByLotFunc      func(ctx context.Context, lotID string) (int64, error)
	updateFunc          func(ctx context.Context, id string, review *model.Review) error
	deleteFunc          func(ctx context.Context, id string) error
	aggregateRatingFunc func(ctx context.Context, lotID string) (model.Rating, error)
}

func (m *mockReviewRepository) Create(ctx context.Context, review *model.Review) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, review)
	}
	return nil
}

func (m *mockReviewRepository) FindByID(ctx context.Context, id string) (*model.Review, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reviewserrors.ErrNotFound
}

func (m *mockReviewRepository) FindByLot(ctx context.Context, lotID string, limit int, skip int64) ([]*model.Review, error) {
	if m.findByLotFunc != nil {
		return m.findByLotFunc(ctx, lotID, limit, skip)
	}
	return []*model.Review{}, nil
}

func (m *mockReviewRepository) CountByLot(ctx context.Context, lotID string) (int64, error) {
	if m.countByLotFunc != nil {
		return m.countByLotFunc(ctx, lotID)
	}
	return 0, nil
}

func (m *mockReviewRepository) Update(ctx context.Context, id string, review *model.Review) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, review)
	}
	return nil
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockReviewRepository) AggregateRating(ctx context.Context, lotID string) (model.Rating, error) {
	if m.aggregateRatingFunc != nil {
		return m.aggregateRatingFunc(ctx, lotID)
	}
	return model.Rating{}, nil
}

func (m *mockReviewRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockLotChecker struct {
	existsFunc func(ctx context.Context, id string) (bool, error)
}

func (m *mockLotChecker) Exists(ctx context.Context, id string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, id)
	}
	return true, nil
}

type mockScheduler struct {
	mu      sync.Mutex
	lotIDs  []string
}

func (m *mockScheduler) Enqueue(lotID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lotIDs = append(m.lotIDs, lotID)
}

func (m *mockScheduler) Enqueued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.lotIDs...)
}

func reviewTestConfig() *config.Config {
	return &config.Config{
		Log:                  logger.NewNop(),
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         5 * time.Second,
		RatingRetryQueueSize: 16,
		RatingRetryAttempts:  2,
		RatingRetryBackoff:   time.Millisecond,
	}
}

func testReviewService(repo *mockReviewRepository, lots LotChecker, scheduler RatingScheduler) *reviewService {
	cfg := reviewTestConfig()
	return &reviewService{
		repo:       repo,
		lots:       lots,
		aggregator: scheduler,
		validator:  validator.NewReviewValidator(cfg.Log),
		cfg:        cfg,
	}
}

func testReview() *model.Review {
	return &model.Review{
		ID:      "65f000000000000000000001",
		LotID:   "507f1f77bcf86cd799439011",
		UserID:  "user-1",
		Rating:  4,
		Comment: "Plenty of space and easy access",
	}
}

func TestCreateReview_DuplicateIsConflict(t *testing.T) {
	repo := &mockReviewRepository{
		createFunc: func(ctx context.Context, review *model.Review) error {
			return reviewserrors.ErrDuplicate
		},
	}
	svc := testReviewService(repo, &mockLotChecker{}, &mockScheduler{})

	review := testReview()
	review.ID = ""
	err := svc.Create(context.Background(), model.Actor{ID: "user-1", Role: model.RoleUser}, review)

	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateReview_MissingLot(t *testing.T) {
	lots := &mockLotChecker{
		existsFunc: func(ctx context.Context, id string) (bool, error) {
			return false, nil
		},
	}
	scheduler := &mockScheduler{}
	svc := testReviewService(&mockReviewRepository{}, lots, scheduler)

	review := testReview()
	review.ID = ""
	err := svc.Create(context.Background(), model.Actor{ID: "user-1", Role: model.RoleUser}, review)

	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(scheduler.Enqueued()) != 0 {
		t.Error("no recompute may be scheduled for a rejected review")
	}
}

func TestCreateReview_SetsAuthorFromActor(t *testing.T) {
	var created *model.Review
	repo := &mockReviewRepository{
		createFunc: func(ctx context.Context, review *model.Review) error {
			created = review
			return nil
		},
	}
	scheduler := &mockScheduler{}
	svc := testReviewService(repo, &mockLotChecker{}, scheduler)

	review := testReview()
	review.ID = ""
	review.UserID = "spoofed-user"
	err := svc.Create(context.Background(), model.Actor{ID: "user-7", Role: model.RoleUser}, review)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.UserID != "user-7" {
		t.Errorf("review author must come from the actor, got %q", created.UserID)
	}
	if got := scheduler.Enqueued(); len(got) != 1 || got[0] != review.LotID {
		t.Errorf("expected one recompute for the lot, got %v", got)
	}
}

func TestCreateReview_RequiresIdentity(t *testing.T) {
	svc := testReviewService(&mockReviewRepository{}, &mockLotChecker{}, &mockScheduler{})

	review := testReview()
	review.ID = ""
	err := svc.Create(context.Background(), model.Actor{}, review)

	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestUpdateReview_AuthorOrAdminOnly(t *testing.T) {
	repo := &mockReviewRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Review, error) {
			return testReview(), nil
		},
	}
	svc := testReviewService(repo, &mockLotChecker{}, &mockScheduler{})

	newRating := 2
	updates := &model.ReviewUpdate{Rating: &newRating}

	_, err := svc.Update(context.Background(), model.Actor{ID: "someone-else", Role: model.RoleUser}, testReview().ID, updates)
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden for non-author, got %v", err)
	}

	if _, err := svc.Update(context.Background(), model.Actor{ID: "user-1", Role: model.RoleUser}, testReview().ID, updates); err != nil {
		t.Fatalf("author update failed: %v", err)
	}
	if _, err := svc.Update(context.Background(), model.Actor{ID: "admin-1", Role: model.RoleAdmin}, testReview().ID, updates); err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
}

func TestDeleteReview_SchedulesRecompute(t *testing.T) {
	repo := &mockReviewRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Review, error) {
			return testReview(), nil
		},
	}
	scheduler := &mockScheduler{}
	svc := testReviewService(repo, &mockLotChecker{}, scheduler)

	if err := svc.Delete(context.Background(), model.Actor{ID: "user-1", Role: model.RoleUser}, testReview().ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := scheduler.Enqueued(); len(got) != 1 || got[0] != testReview().LotID {
		t.Errorf("expected recompute for the reviewed lot, got %v", got)
	}
}

// --- Rating aggregator ---

type memRatingWriter struct {
	mu   sync.Mutex
	last map[string]model.Rating
	err  error
}

func newMemRatingWriter() *memRatingWriter {
	return &memRatingWriter{last: make(map[string]model.Rating)}
}

func (w *memRatingWriter) UpdateRating(ctx context.Context, lotID string, rating model.Rating) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.last[lotID] = rating
	return nil
}

func (w *memRatingWriter) Rating(lotID string) model.Rating {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last[lotID]
}

func ratingSourceFor(ratings *[]int) *mockReviewRepository {
	return &mockReviewRepository{
		aggregateRatingFunc: func(ctx context.Context, lotID string) (model.Rating, error) {
			list := *ratings
			if len(list) == 0 {
				return model.Rating{}, nil
			}
			sum := 0
			for _, r := range list {
				sum += r
			}
			return model.Rating{
				Average: float64(sum) / float64(len(list)),
				Count:   int64(len(list)),
			}, nil
		},
	}
}

func TestRecompute_AverageAndCount(t *testing.T) {
	lotID := "507f1f77bcf86cd799439011"
	ratings := []int{5, 3, 4}
	writer := newMemRatingWriter()
	aggregator := NewRatingAggregator(ratingSourceFor(&ratings), writer, reviewTestConfig())

	if err := aggregator.Recompute(context.Background(), lotID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := writer.Rating(lotID); got.Average != 4.0 || got.Count != 3 {
		t.Errorf("expected 4.0/3, got %v/%v", got.Average, got.Count)
	}

	// Remove the 5-star review and recompute.
	ratings = []int{3, 4}
	if err := aggregator.Recompute(context.Background(), lotID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := writer.Rating(lotID); got.Average != 3.5 || got.Count != 2 {
		t.Errorf("expected 3.5/2, got %v/%v", got.Average, got.Count)
	}

	// Last review gone: back to the zero rating.
	ratings = []int{}
	if err := aggregator.Recompute(context.Background(), lotID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := writer.Rating(lotID); got.Average != 0 || got.Count != 0 {
		t.Errorf("expected 0/0, got %v/%v", got.Average, got.Count)
	}
}

func TestRecompute_RoundsToOneDecimal(t *testing.T) {
	lotID := "507f1f77bcf86cd799439011"
	ratings := []int{5, 4, 4} // 4.333...
	writer := newMemRatingWriter()
	aggregator := NewRatingAggregator(ratingSourceFor(&ratings), writer, reviewTestConfig())

	if err := aggregator.Recompute(context.Background(), lotID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := writer.Rating(lotID); got.Average != 4.3 {
		t.Errorf("expected average rounded to 4.3, got %v", got.Average)
	}
}

func TestAggregator_WorkerProcessesQueue(t *testing.T) {
	lotID := "507f1f77bcf86cd799439011"
	ratings := []int{5, 5}
	writer := newMemRatingWriter()
	aggregator := NewRatingAggregator(ratingSourceFor(&ratings), writer, reviewTestConfig())

	aggregator.Start()
	aggregator.Enqueue(lotID)
	aggregator.Stop()

	if got := writer.Rating(lotID); got.Average != 5.0 || got.Count != 2 {
		t.Errorf("expected 5.0/2 after worker drain, got %v/%v", got.Average, got.Count)
	}
}

func TestAggregator_FailureNeverReachesReviewOp(t *testing.T) {
	lotID := "507f1f77bcf86cd799439011"
	_ = lotID
	ratings := []int{5}
	writer := newMemRatingWriter()
	writer.err = context.DeadlineExceeded

	cfg := reviewTestConfig()
	aggregator := NewRatingAggregator(ratingSourceFor(&ratings), writer, cfg)
	aggregator.Start()

	repo := &mockReviewRepository{}
	svc := testReviewService(repo, &mockLotChecker{}, aggregator)

	review := testReview()
	review.ID = ""
	if err := svc.Create(context.Background(), model.Actor{ID: "user-1", Role: model.RoleUser}, review); err != nil {
		t.Fatalf("review create must succeed even when recompute fails: %v", err)
	}

	// Drains the queue; the failing recompute retries and gives up quietly.
	aggregator.Stop()
}
