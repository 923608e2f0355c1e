package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "agenda/internal/reservations/errors"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"
	"agenda/pkg/timerange"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	CreateMany(ctx context.Context, reservations []*model.Reservation) error
	FindByID(ctx context.Context, tenantID, id string) (*model.Reservation, error)
	FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Reservation, error)
	FindAll(ctx context.Context, tenantID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context, tenantID string, filter model.ReservationFilter) (int64, error)
	FindOverlapping(ctx context.Context, resourceID string, interval timerange.Interval, excludeID string) ([]*model.Reservation, error)
	FindByGroup(ctx context.Context, groupID string) ([]*model.Reservation, error)
	FindUpcomingByClient(ctx context.Context, tenantID, clientID string, now time.Time, limit int) ([]*model.Reservation, error)
	Update(ctx context.Context, reservation *model.Reservation) error
	UpdateStatusMany(ctx context.Context, ids []string, status model.ReservationStatus) (int64, error)
	SetExternalEventID(ctx context.Context, tenantID, id, eventID string) error
	FindByExternalEventID(ctx context.Context, tenantID, eventID string) (*model.Reservation, error)
	CountActiveFuture(ctx context.Context, tenantID string, field string, value string, now time.Time) (int64, error)
	IDsBy(ctx context.Context, tenantID string, field string, value string) ([]string, error)
	DeleteBy(ctx context.Context, tenantID string, field string, value string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

// Fields accepted by CountActiveFuture, IDsBy and DeleteBy.
const (
	FieldResourceID = "resource_id"
	FieldClientID   = "client_id"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) CreateMany(ctx context.Context, reservations []*model.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, len(reservations))
	for i, reservation := range reservations {
		reservation.CreatedAt = now
		reservation.UpdatedAt = now
		docs[i] = reservation
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to create reservations: %w", err)
	}

	for i, id := range result.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok {
			reservations[i].ID = oid.Hex()
		}
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID, "tenant_id": tenantID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

// FindByIDs returns the reservations among ids that belong to tenantID.
// Malformed ids are reported as ErrInvalidID.
func (r *mongoReservationRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectIDs, err := toObjectIDs(ids)
	if err != nil {
		return nil, err
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}, "tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) FindAll(ctx context.Context, tenantID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, buildListFilter(tenantID, filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) Count(ctx context.Context, tenantID string, filter model.ReservationFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(tenantID, filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

// FindOverlapping returns the non-cancelled reservations of resourceID whose
// interval overlaps interval, ordered by start time.
func (r *mongoReservationRepository) FindOverlapping(ctx context.Context, resourceID string, interval timerange.Interval, excludeID string) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := overlapFilter(resourceID, interval)
	if excludeID != "" {
		if oid, err := primitive.ObjectIDFromHex(excludeID); err == nil {
			filter["_id"] = bson.M{"$ne": oid}
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) FindByGroup(ctx context.Context, groupID string) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"recurring_group_id": groupID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find group reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) FindUpcomingByClient(ctx context.Context, tenantID, clientID string, now time.Time, limit int) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"tenant_id":  tenantID,
		"client_id":  clientID,
		"status":     bson.M{"$ne": model.StatusCancelled},
		"start_time": bson.M{"$gte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find upcoming reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

func (r *mongoReservationRepository) Update(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(reservation.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, reservation.ID)
	}

	reservation.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"start_time": reservation.StartTime,
			"end_time":   reservation.EndTime,
			"status":     reservation.Status,
			"updated_at": reservation.UpdatedAt,
		},
	}

	// A cancelled row is never written again, whatever the caller read.
	filter := bson.M{
		"_id":       objectID,
		"tenant_id": reservation.TenantID,
		"status":    bson.M{"$ne": model.StatusCancelled},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

// UpdateStatusMany sets status on every listed reservation that is not
// already cancelled and returns how many rows changed.
func (r *mongoReservationRepository) UpdateStatusMany(ctx context.Context, ids []string, status model.ReservationStatus) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectIDs, err := toObjectIDs(ids)
	if err != nil {
		return 0, err
	}

	filter := bson.M{
		"_id":    bson.M{"$in": objectIDs},
		"status": bson.M{"$ne": model.StatusCancelled},
	}
	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to update reservations: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoReservationRepository) SetExternalEventID(ctx context.Context, tenantID, id, eventID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "tenant_id": tenantID},
		bson.M{"$set": bson.M{"external_calendar_event_id": eventID}},
	)
	if err != nil {
		return fmt.Errorf("failed to store external event id: %w", err)
	}
	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

func (r *mongoReservationRepository) FindByExternalEventID(ctx context.Context, tenantID, eventID string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "external_calendar_event_id": eventID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation by external event: %w", err)
	}
	return &reservation, nil
}

// CountActiveFuture counts non-cancelled reservations that have not ended yet
// and reference value through field (resource_id or client_id).
func (r *mongoReservationRepository) CountActiveFuture(ctx context.Context, tenantID string, field string, value string, now time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"tenant_id": tenantID,
		field:       value,
		"status":    bson.M{"$ne": model.StatusCancelled},
		"end_time":  bson.M{"$gt": now},
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count active reservations: %w", err)
	}
	return count, nil
}

// IDsBy lists the ids of every reservation referencing value through field,
// so cascades can remove dependents first.
func (r *mongoReservationRepository) IDsBy(ctx context.Context, tenantID string, field string, value string) ([]string, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"tenant_id": tenantID, field: value}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservation ids: %w", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reservation ids: %w", err)
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID.Hex()
	}
	return ids, nil
}

func (r *mongoReservationRepository) DeleteBy(ctx context.Context, tenantID string, field string, value string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"tenant_id": tenantID, field: value})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reservations: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

// overlapFilter is the storage form of timerange.Overlaps for one resource:
// start_time < interval.End AND end_time > interval.Start.
func overlapFilter(resourceID string, interval timerange.Interval) bson.M {
	return bson.M{
		"resource_id": resourceID,
		"status":      bson.M{"$ne": model.StatusCancelled},
		"start_time":  bson.M{"$lt": interval.End},
		"end_time":    bson.M{"$gt": interval.Start},
	}
}

func buildListFilter(tenantID string, f model.ReservationFilter) bson.M {
	filter := bson.M{"tenant_id": tenantID}
	if f.ResourceID != "" {
		filter["resource_id"] = f.ResourceID
	}
	if f.ClientID != "" {
		filter["client_id"] = f.ClientID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.From != nil || f.To != nil {
		timeFilter := bson.M{}
		if f.From != nil {
			timeFilter["$gte"] = *f.From
		}
		if f.To != nil {
			timeFilter["$lte"] = *f.To
		}
		filter["start_time"] = timeFilter
	}
	return filter
}

func toObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, oid)
	}
	return objectIDs, nil
}
