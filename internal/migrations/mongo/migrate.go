package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agenda/internal/migrations/mongo/validators"
	"agenda/pkg/logger"
)

var (
	ResourcesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "name", Value: 1}}},
	}

	ClientsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "full_name", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "phone", Value: 1}}},
	}

	ReservationsIndexes = []mongo.IndexModel{
		// overlap queries
		{Keys: bson.D{
			{Key: "resource_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "start_time", Value: -1}}},
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "client_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{{Key: "recurring_group_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "external_calendar_event_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	RecurringGroupsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "resource_id", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "client_id", Value: 1}}},
	}

	// Expired locks are reaped by the server; acquisition also takes over
	// expired locks, so the TTL monitor's delay does not matter.
	ReservationLocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}

	TabsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "reservation_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "client_id", Value: 1},
			{Key: "status", Value: 1},
		}},
	}

	TabItemsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tab_id", Value: 1}}},
	}

	CalendarChannelsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}}},
	}
)

type collection struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Tabs belong to the billing side; only their indexes are managed here.
var collections = map[string]collection{
	"Resources":            {Indexes: ResourcesIndexes, Validator: validators.ResourceValidator},
	"Clients":              {Indexes: ClientsIndexes, Validator: validators.ClientValidator},
	"Reservations":         {Indexes: ReservationsIndexes, Validator: validators.ReservationValidator},
	"Recurring_groups":     {Indexes: RecurringGroupsIndexes, Validator: validators.RecurringGroupValidator},
	"Reservation_locks":    {Indexes: ReservationLocksIndexes, Validator: validators.ReservationLockValidator},
	"Tabs":                 {Indexes: TabsIndexes},
	"Tab_items":            {Indexes: TabItemsIndexes},
	"Calendar_credentials": {Validator: validators.CalendarCredentialValidator},
	"Calendar_channels":    {Indexes: CalendarChannelsIndexes, Validator: validators.CalendarChannelValidator},
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName, "collections", len(collections))

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}
	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
