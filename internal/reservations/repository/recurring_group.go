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

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const RecurringGroupCollectionName = "Recurring_groups"

type RecurringGroupRepository interface {
	Create(ctx context.Context, group *model.RecurringGroup) error
	FindByID(ctx context.Context, id string) (*model.RecurringGroup, error)
	Delete(ctx context.Context, id string) error
	DeleteBy(ctx context.Context, tenantID string, field string, value string) error
}

type mongoRecurringGroupRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoRecurringGroupRepository(cfg *config.Config) RecurringGroupRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRecurringGroupRepository{
		cfg:        cfg,
		collection: db.Collection(RecurringGroupCollectionName),
	}
}

func (r *mongoRecurringGroupRepository) Create(ctx context.Context, group *model.RecurringGroup) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	group.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, group)
	if err != nil {
		return fmt.Errorf("failed to create recurring group: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		group.ID = oid.Hex()
	}
	return nil
}

// FindByID is not tenant scoped: cancelling a group distinguishes a missing
// group from one that belongs to another tenant.
func (r *mongoRecurringGroupRepository) FindByID(ctx context.Context, id string) (*model.RecurringGroup, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, reservationserrors.ErrGroupNotFound
	}

	var group model.RecurringGroup
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&group); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find recurring group: %w", err)
	}
	return &group, nil
}

func (r *mongoRecurringGroupRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return reservationserrors.ErrGroupNotFound
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete recurring group: %w", err)
	}
	if result.DeletedCount == 0 {
		return reservationserrors.ErrGroupNotFound
	}
	return nil
}

func (r *mongoRecurringGroupRepository) DeleteBy(ctx context.Context, tenantID string, field string, value string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctx, bson.M{"tenant_id": tenantID, field: value}); err != nil {
		return fmt.Errorf("failed to delete recurring groups: %w", err)
	}
	return nil
}
