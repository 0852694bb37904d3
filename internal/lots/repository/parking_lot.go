package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	lotserrors "parkwatch/internal/lots/errors"
	"parkwatch/pkg/config"
	mongotx "parkwatch/pkg/db/mongo"
	"parkwatch/pkg/geo"
	"parkwatch/pkg/model"
	"parkwatch/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "ParkingLots"
)

// LotWithDistance carries the $geoNear computed distance alongside the lot.
type LotWithDistance struct {
	model.ParkingLot `bson:",inline"`
	DistanceMeters   float64 `bson:"distance_meters"`
}

type mongoParkingLotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ParkingLotRepository interface {
	Create(ctx context.Context, lot *model.ParkingLot) error
	FindByID(ctx context.Context, id string) (*model.ParkingLot, error)
	FindAll(ctx context.Context, limit int, skip int64) ([]*model.ParkingLot, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, lot *model.ParkingLot) error
	Search(ctx context.Context, filter *model.SearchFilter, limit int, skip int64) ([]*model.ParkingLot, error)
	CountSearch(ctx context.Context, filter *model.SearchFilter) (int64, error)
	NearbyActive(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]*LotWithDistance, error)
	UpdateAvailability(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error)
	UpdateRating(ctx context.Context, id string, rating model.Rating) error
	SoftDelete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoParkingLotRepository(cfg *config.Config) ParkingLotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoParkingLotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// SessionContext cannot be wrapped without breaking transaction semantics, so
// inside a transaction the original context is returned with a no-op cancel.
func (r *mongoParkingLotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoParkingLotRepository) Create(ctx context.Context, lot *model.ParkingLot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	lot.CreatedAt = now
	lot.LastUpdated = now

	result, err := r.collection.InsertOne(ctx, lot)
	if err != nil {
		return fmt.Errorf("failed to create parking lot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		lot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoParkingLotRepository) FindByID(ctx context.Context, id string) (*model.ParkingLot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", lotserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "is_active": true}

	var lot model.ParkingLot
	err = r.collection.FindOne(ctx, filter).Decode(&lot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, lotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find parking lot: %w", err)
	}

	return &lot, nil
}

func (r *mongoParkingLotRepository) FindAll(ctx context.Context, limit int, skip int64) ([]*model.ParkingLot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(skip)

	cursor, err := r.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find parking lots: %w", err)
	}
	defer cursor.Close(ctx)

	var lots []*model.ParkingLot
	if err = cursor.All(ctx, &lots); err != nil {
		return nil, fmt.Errorf("failed to decode parking lots: %w", err)
	}

	return lots, nil
}

func (r *mongoParkingLotRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"is_active": true})
	if err != nil {
		return 0, fmt.Errorf("failed to count parking lots: %w", err)
	}

	return count, nil
}

func (r *mongoParkingLotRepository) Update(ctx context.Context, id string, lot *model.ParkingLot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", lotserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "is_active": true}
	update := bson.M{
		"$set": bson.M{
			"name":         lot.Name,
			"description":  lot.Description,
			"address":      lot.Address,
			"location":     lot.Location,
			"total_spots":  lot.TotalSpots,
			"hourly_rate":  lot.HourlyRate,
			"daily_rate":   lot.DailyRate,
			"currency":     lot.Currency,
			"amenities":    lot.Amenities,
			"last_updated": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update parking lot: %w", err)
	}

	if result.MatchedCount == 0 {
		return lotserrors.ErrNotFound
	}

	return nil
}

// Search runs the closed-set filter with the deterministic ranking: best
// rated first, then most available spots, then id for a stable order.
func (r *mongoParkingLotRepository) Search(ctx context.Context, filter *model.SearchFilter, limit int, skip int64) ([]*model.ParkingLot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{
			{Key: "rating.average", Value: -1},
			{Key: "available_spots", Value: -1},
			{Key: "_id", Value: 1},
		}).
		SetLimit(int64(limit)).
		SetSkip(skip)

	cursor, err := r.collection.Find(ctx, r.buildSearchFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search parking lots: %w", err)
	}
	defer cursor.Close(ctx)

	var lots []*model.ParkingLot
	if err = cursor.All(ctx, &lots); err != nil {
		return nil, fmt.Errorf("failed to decode parking lots: %w", err)
	}

	return lots, nil
}

func (r *mongoParkingLotRepository) CountSearch(ctx context.Context, filter *model.SearchFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildSearchFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count parking lots by search: %w", err)
	}
	return count, nil
}

// buildSearchFilter maps each SearchFilter field to exactly one typed clause.
// Free-text input is escaped before entering any regex position, so client
// strings can never smuggle query operators.
func (r *mongoParkingLotRepository) buildSearchFilter(filter *model.SearchFilter) bson.M {
	query := bson.M{"is_active": true}

	if filter == nil {
		return query
	}

	if filter.Query != "" {
		query["$text"] = bson.M{"$search": filter.Query}
	}
	if filter.City != "" {
		// Case-insensitive substring match: "Spring" matches "Springfield".
		query["address.city"] = bson.M{
			"$regex":   sanitizer.EscapeRegex(filter.City),
			"$options": "i",
		}
	}
	if filter.State != "" {
		query["address.state"] = bson.M{
			"$regex":   sanitizer.EscapeRegex(filter.State),
			"$options": "i",
		}
	}
	if len(filter.Amenities) > 0 {
		// A lot matches if it carries at least one of the requested tags.
		query["amenities"] = bson.M{"$in": filter.Amenities}
	}

	rateRange := bson.M{}
	if filter.MinRate != nil {
		rateRange["$gte"] = *filter.MinRate
	}
	if filter.MaxRate != nil {
		rateRange["$lte"] = *filter.MaxRate
	}
	if len(rateRange) > 0 {
		query["hourly_rate"] = rateRange
	}

	if filter.AvailableOnly {
		query["available_spots"] = bson.M{"$gt": 0}
		query["is_open"] = true
	}

	return query
}

// nearbyPipeline builds the $geoNear aggregation for a radius query. The
// radius is passed to maxDistance as-is; $geoNear treats the boundary as
// inclusive, so a lot at exactly radiusKm is returned.
func nearbyPipeline(center geo.Point, radiusKm float64, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near": bson.M{
				"type":        "Point",
				"coordinates": []float64{center.Lon, center.Lat},
			},
			"distanceField": "distance_meters",
			"maxDistance":   geo.KmToMeters(radiusKm),
			"spherical":     true,
			"query":         bson.M{"is_active": true},
		}}},
		{{Key: "$limit", Value: limit}},
	}
}

// NearbyActive returns active lots within radiusKm of center, closest first.
func (r *mongoParkingLotRepository) NearbyActive(ctx context.Context, center geo.Point, radiusKm float64, limit int) ([]*LotWithDistance, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Aggregate(ctx, nearbyPipeline(center, radiusKm, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to run nearby query: %w", err)
	}
	defer cursor.Close(ctx)

	var lots []*LotWithDistance
	if err = cursor.All(ctx, &lots); err != nil {
		return nil, fmt.Errorf("failed to decode nearby lots: %w", err)
	}

	return lots, nil
}

// UpdateAvailability applies the availability mutation as a single guarded
// findOneAndUpdate. The capacity guard is part of the filter so the check and
// the write are one atomic step; concurrent writers cannot interleave between
// them. Returns the post-update document.
func (r *mongoParkingLotRepository) UpdateAvailability(ctx context.Context, id string, update *model.AvailabilityUpdate) (*model.ParkingLot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", lotserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "is_active": true}
	set := bson.M{"last_updated": time.Now().UTC().Truncate(time.Millisecond)}

	if update.AvailableSpots != nil {
		filter["total_spots"] = bson.M{"$gte": *update.AvailableSpots}
		set["available_spots"] = *update.AvailableSpots
	}
	if update.IsOpen != nil {
		set["is_open"] = *update.IsOpen
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lot model.ParkingLot
	err = r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&lot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish a missing lot from one whose capacity shrank
			// under the requested spot count.
			exists, existsErr := r.Exists(ctx, id)
			if existsErr != nil {
				return nil, existsErr
			}
			if exists {
				return nil, lotserrors.ErrStaleCapacity
			}
			return nil, lotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update availability: %w", err)
	}

	return &lot, nil
}

func (r *mongoParkingLotRepository) UpdateRating(ctx context.Context, id string, rating model.Rating) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", lotserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "is_active": true}
	update := bson.M{"$set": bson.M{"rating": rating}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}

	if result.MatchedCount == 0 {
		return lotserrors.ErrNotFound
	}

	return nil
}

func (r *mongoParkingLotRepository) SoftDelete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", lotserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "is_active": true}
	update := bson.M{
		"$set": bson.M{
			"is_active":    false,
			"last_updated": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to soft delete parking lot: %w", err)
	}

	if result.MatchedCount == 0 {
		return lotserrors.ErrNotFound
	}

	return nil
}

func (r *mongoParkingLotRepository) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", lotserrors.ErrInvalidID, id)
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID, "is_active": true}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check parking lot existence: %w", err)
	}

	return count > 0, nil
}

func (r *mongoParkingLotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
