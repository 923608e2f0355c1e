package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	syncerrors "agenda/internal/calendarsync/errors"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const ChannelsCollectionName = "Calendar_channels"

// ChannelRepository maps push-notification channels to tenants and keeps the
// incremental sync cursor of each one.
type ChannelRepository interface {
	Create(ctx context.Context, channel *model.CalendarChannel) error
	FindByID(ctx context.Context, id string) (*model.CalendarChannel, error)
	FindByTenant(ctx context.Context, tenantID string) ([]*model.CalendarChannel, error)
	UpdateSyncToken(ctx context.Context, id, syncToken string) error
	DeleteByTenant(ctx context.Context, tenantID string) error
}

type mongoChannelRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoChannelRepository(cfg *config.Config) ChannelRepository {
	return &mongoChannelRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(ChannelsCollectionName),
	}
}

func (r *mongoChannelRepository) Create(ctx context.Context, channel *model.CalendarChannel) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if channel.CreatedAt.IsZero() {
		channel.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := r.collection.InsertOne(ctx, channel); err != nil {
		return fmt.Errorf("failed to store calendar channel: %w", err)
	}
	return nil
}

func (r *mongoChannelRepository) FindByID(ctx context.Context, id string) (*model.CalendarChannel, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var channel model.CalendarChannel
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&channel); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, syncerrors.ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to find calendar channel: %w", err)
	}
	return &channel, nil
}

func (r *mongoChannelRepository) FindByTenant(ctx context.Context, tenantID string) ([]*model.CalendarChannel, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar channels: %w", err)
	}
	defer cursor.Close(ctx)

	channels := make([]*model.CalendarChannel, 0)
	if err := cursor.All(ctx, &channels); err != nil {
		return nil, fmt.Errorf("failed to decode calendar channels: %w", err)
	}
	return channels, nil
}

func (r *mongoChannelRepository) UpdateSyncToken(ctx context.Context, id, syncToken string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"sync_token": syncToken}}
	if syncToken == "" {
		update = bson.M{"$unset": bson.M{"sync_token": ""}}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update sync token: %w", err)
	}
	if result.MatchedCount == 0 {
		return syncerrors.ErrChannelNotFound
	}
	return nil
}

func (r *mongoChannelRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctx, bson.M{"tenant_id": tenantID}); err != nil {
		return fmt.Errorf("failed to delete calendar channels: %w", err)
	}
	return nil
}
