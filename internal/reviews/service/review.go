package service

import (
	"context"
	"errors"
	"sync"

	reviewserrors "parkwatch/internal/reviews/errors"
	"parkwatch/internal/reviews/repository"
	"parkwatch/internal/reviews/validator"
	"parkwatch/pkg/config"
	apperrors "parkwatch/pkg/errors"
	"parkwatch/pkg/model"
	"parkwatch/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

// LotChecker verifies the target lot exists before a review is accepted.
type LotChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// RatingScheduler queues an asynchronous rating recompute for a lot.
type RatingScheduler interface {
	Enqueue(lotID string)
}

type ReviewService interface {
	Create(ctx context.Context, actor model.Actor, review *model.Review) error
	GetByID(ctx context.Context, id string) (*model.Review, error)
	GetByLot(ctx context.Context, lotID string, page, limit int) ([]*model.Review, int64, error)
	Update(ctx context.Context, actor model.Actor, id string, updates *model.ReviewUpdate) (*model.Review, error)
	Delete(ctx context.Context, actor model.Actor, id string) error
}

type reviewService struct {
	repo       repository.ReviewRepository
	lots       LotChecker
	aggregator RatingScheduler
	validator  *validator.ReviewValidator
	cfg        *config.Config
}

func NewReviewService(
	repo repository.ReviewRepository,
	lots LotChecker,
	aggregator RatingScheduler,
	validator *validator.ReviewValidator,
	cfg *config.Config,
) ReviewService {
	return &reviewService{
		repo:       repo,
		lots:       lots,
		aggregator: aggregator,
		validator:  validator,
		cfg:        cfg,
	}
}

func (s *reviewService) Create(ctx context.Context, actor model.Actor, review *model.Review) error {
	if actor.ID == "" {
		return apperrors.Unauthorized("Authentication required to post a review")
	}
	review.UserID = actor.ID

	s.sanitize(review)
	if err := s.validate(review); err != nil {
		return err
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		exists, err := s.lots.Exists(sessCtx, review.LotID)
		if err != nil {
			return apperrors.Internal("Failed to check parking lot existence", err)
		}
		if !exists {
			return apperrors.NotFoundWithID("Parking lot", review.LotID)
		}

		if err := s.repo.Create(sessCtx, review); err != nil {
			if errors.Is(err, reviewserrors.ErrDuplicate) {
				return apperrors.Conflict("You have already reviewed this parking lot")
			}
			return apperrors.Internal("Failed to create review", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create review", "lot_id", review.LotID, "error", err)
		return err
	}

	s.scheduleRecompute(review.LotID)

	s.cfg.Log.Info("Review created successfully",
		"id", review.ID,
		"lot_id", review.LotID,
		"rating", review.Rating,
	)
	return nil
}

func (s *reviewService) GetByID(ctx context.Context, id string) (*model.Review, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Review ID cannot be empty")
	}

	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return review, nil
}

func (s *reviewService) GetByLot(ctx context.Context, lotID string, page, limit int) ([]*model.Review, int64, error) {
	if lotID == "" {
		return nil, 0, apperrors.InvalidInput("Parking lot ID cannot be empty")
	}

	skip := int64(page-1) * int64(limit)

	var count int64
	var reviews []*model.Review
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByLot(ctx, lotID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reviews", "lot_id", lotID, "error", errCount)
			errCount = apperrors.Internal("Failed to count reviews", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reviews, errFind = s.repo.FindByLot(ctx, lotID, limit, skip)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reviews", "lot_id", lotID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reviews", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reviews, count, nil
}

func (s *reviewService) Update(ctx context.Context, actor model.Actor, id string, updates *model.ReviewUpdate) (*model.Review, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Review ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	if !s.canModerate(actor, existing) {
		return nil, apperrors.Forbidden("Only the review author or an administrator may edit this review")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Review update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeReviewUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, reviewserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Review", id)
		}
		s.cfg.Log.Error("Failed to update review", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update review", err)
	}

	s.scheduleRecompute(merged.LotID)

	s.cfg.Log.Info("Review updated successfully", "id", id, "lot_id", merged.LotID)
	return merged, nil
}

func (s *reviewService) Delete(ctx context.Context, actor model.Actor, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Review ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapLookupError(err, id)
	}

	if !s.canModerate(actor, existing) {
		return apperrors.Forbidden("Only the review author or an administrator may delete this review")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, reviewserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Review", id)
		}
		s.cfg.Log.Error("Failed to delete review", "id", id, "error", err)
		return apperrors.Internal("Failed to delete review", err)
	}

	s.scheduleRecompute(existing.LotID)

	s.cfg.Log.Info("Review deleted successfully", "id", id, "lot_id", existing.LotID)
	return nil
}

// --- Helpers ---

// scheduleRecompute hands the lot to the aggregator. The review operation has
// already committed; a recompute problem must never surface to the caller.
func (s *reviewService) scheduleRecompute(lotID string) {
	if s.aggregator != nil {
		s.aggregator.Enqueue(lotID)
	}
}

func (s *reviewService) canModerate(actor model.Actor, review *model.Review) bool {
	return actor.Role == model.RoleAdmin || (actor.ID != "" && actor.ID == review.UserID)
}

func (s *reviewService) sanitize(review *model.Review) {
	review.Title = sanitizer.TrimAndNormalize(review.Title)
	review.Comment = sanitizer.TrimAndNormalize(review.Comment)
}

func (s *reviewService) mergeReviewUpdates(existing *model.Review, updates *model.ReviewUpdate) *model.Review {
	merged := *existing

	if updates.Rating != nil {
		merged.Rating = *updates.Rating
	}
	if updates.Title != nil {
		merged.Title = *updates.Title
	}
	if updates.Comment != nil {
		merged.Comment = *updates.Comment
	}

	return &merged
}

func (s *reviewService) validate(review *model.Review) error {
	if err := s.validator.Validate(review); err != nil {
		s.cfg.Log.Warn("Review validation failed", "error", err)
		return apperrors.Validation("Review validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reviewService) mapLookupError(err error, id string) error {
	if errors.Is(err, reviewserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Review", id)
	}
	if errors.Is(err, reviewserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid review ID format")
	}
	return apperrors.Internal("Failed to retrieve review", err)
}
