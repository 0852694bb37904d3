package service

import (
	"context"
	"math"
	"sync"
	"time"

	"parkwatch/pkg/config"
	"parkwatch/pkg/model"
)

// RatingSource recomputes a lot's rating from its reviews.
type RatingSource interface {
	AggregateRating(ctx context.Context, lotID string) (model.Rating, error)
}

// RatingWriter persists the recomputed rating onto the lot. The aggregator is
// the only component that ever writes the rating field.
type RatingWriter interface {
	UpdateRating(ctx context.Context, lotID string, rating model.Rating) error
}

// RatingAggregator recomputes lot ratings asynchronously. Review operations
// enqueue the affected lot and return; a recompute failure is logged and
// retried but never propagates back to the review operation.
type RatingAggregator struct {
	source RatingSource
	writer RatingWriter
	cfg    *config.Config
	queue  chan string
	wg     sync.WaitGroup
	once   sync.Once
}

func NewRatingAggregator(source RatingSource, writer RatingWriter, cfg *config.Config) *RatingAggregator {
	return &RatingAggregator{
		source: source,
		writer: writer,
		cfg:    cfg,
		queue:  make(chan string, cfg.RatingRetryQueueSize),
	}
}

func (a *RatingAggregator) Start() {
	a.wg.Add(1)
	go a.worker()
	a.cfg.Log.Info("Rating aggregator started", "queue_size", cap(a.queue))
}

// Stop drains the queue and waits for in-flight recomputes to finish.
func (a *RatingAggregator) Stop() {
	a.once.Do(func() {
		close(a.queue)
	})
	a.wg.Wait()
	a.cfg.Log.Info("Rating aggregator stopped")
}

// Enqueue schedules a recompute for lotID. Never blocks: if the queue is
// full the request is dropped with a warning, the next review on the lot
// will recompute the same state.
func (a *RatingAggregator) Enqueue(lotID string) {
	select {
	case a.queue <- lotID:
	default:
		a.cfg.Log.Warn("Rating recompute queue full, dropping request", "lot_id", lotID)
	}
}

func (a *RatingAggregator) worker() {
	defer a.wg.Done()

	for lotID := range a.queue {
		a.recomputeWithRetry(lotID)
	}
}

func (a *RatingAggregator) recomputeWithRetry(lotID string) {
	var err error
	for attempt := 1; attempt <= a.cfg.RatingRetryAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.WriteTimeout)
		err = a.Recompute(ctx, lotID)
		cancel()
		if err == nil {
			return
		}
		a.cfg.Log.Warn("Rating recompute failed",
			"lot_id", lotID,
			"attempt", attempt,
			"max_attempts", a.cfg.RatingRetryAttempts,
			"error", err,
		)
		time.Sleep(a.cfg.RatingRetryBackoff)
	}

	a.cfg.Log.Error("Rating recompute gave up", "lot_id", lotID, "error", err)
}

// Recompute reads the review aggregate and writes it to the lot. The average
// is rounded to one decimal; a lot with no reviews gets the zero rating.
func (a *RatingAggregator) Recompute(ctx context.Context, lotID string) error {
	rating, err := a.source.AggregateRating(ctx, lotID)
	if err != nil {
		return err
	}

	rating.Average = math.Round(rating.Average*10) / 10

	if err := a.writer.UpdateRating(ctx, lotID, rating); err != nil {
		return err
	}

	a.cfg.Log.Debug("Rating recomputed",
		"lot_id", lotID,
		"average", rating.Average,
		"count", rating.Count,
	)
	return nil
}
