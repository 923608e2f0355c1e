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
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CredentialsCollectionName = "Calendar_credentials"

// CredentialRepository stores one OAuth grant per tenant, keyed by tenant id.
type CredentialRepository interface {
	Find(ctx context.Context, tenantID string) (*model.CalendarCredential, error)
	Upsert(ctx context.Context, cred *model.CalendarCredential) error
	Delete(ctx context.Context, tenantID string) error
}

type mongoCredentialRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCredentialRepository(cfg *config.Config) CredentialRepository {
	return &mongoCredentialRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CredentialsCollectionName),
	}
}

func (r *mongoCredentialRepository) Find(ctx context.Context, tenantID string) (*model.CalendarCredential, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var cred model.CalendarCredential
	err := r.collection.FindOne(ctx, bson.M{"_id": tenantID}).Decode(&cred)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, syncerrors.ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to find calendar credentials: %w", err)
	}
	return &cred, nil
}

func (r *mongoCredentialRepository) Upsert(ctx context.Context, cred *model.CalendarCredential) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	cred.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": cred.TenantID}, cred, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store calendar credentials: %w", err)
	}
	return nil
}

func (r *mongoCredentialRepository) Delete(ctx context.Context, tenantID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": tenantID}); err != nil {
		return fmt.Errorf("failed to delete calendar credentials: %w", err)
	}
	return nil
}
