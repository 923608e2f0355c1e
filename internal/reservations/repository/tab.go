package repository

import (
	"context"
	"fmt"

	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	TabCollectionName     = "Tabs"
	TabItemCollectionName = "Tab_items"
)

// TabRepository is the narrow view of the billing collaborator: open-tab
// counts used as preconditions, paid totals for client history, and the
// deletes needed by cascades.
type TabRepository interface {
	CountOpenByReservations(ctx context.Context, reservationIDs []string) (map[string]int64, error)
	CountOpenByClient(ctx context.Context, tenantID, clientID string) (int64, error)
	SumPaidByClient(ctx context.Context, tenantID, clientID string) (float64, error)
	DeleteByReservations(ctx context.Context, reservationIDs []string) error
	DeleteByClient(ctx context.Context, tenantID, clientID string) error
}

type mongoTabRepository struct {
	cfg   *config.Config
	tabs  *mongo.Collection
	items *mongo.Collection
}

func NewMongoTabRepository(cfg *config.Config) TabRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTabRepository{
		cfg:   cfg,
		tabs:  db.Collection(TabCollectionName),
		items: db.Collection(TabItemCollectionName),
	}
}

func (r *mongoTabRepository) CountOpenByReservations(ctx context.Context, reservationIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	if len(reservationIDs) == 0 {
		return counts, nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"reservation_id": bson.M{"$in": reservationIDs},
			"status":         model.TabOpen,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$reservation_id",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.tabs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count open tabs: %w", err)
	}
	var rows []struct {
		ReservationID string `bson:"_id"`
		Count         int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode open tab counts: %w", err)
	}

	for _, row := range rows {
		counts[row.ReservationID] = row.Count
	}
	return counts, nil
}

func (r *mongoTabRepository) CountOpenByClient(ctx context.Context, tenantID, clientID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.tabs.CountDocuments(ctx, bson.M{
		"tenant_id": tenantID,
		"client_id": clientID,
		"status":    model.TabOpen,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count open tabs: %w", err)
	}
	return count, nil
}

func (r *mongoTabRepository) SumPaidByClient(ctx context.Context, tenantID, clientID string) (float64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"tenant_id": tenantID,
			"client_id": clientID,
			"status":    model.TabPaid,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$total"},
		}}},
	}

	cursor, err := r.tabs.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to sum paid tabs: %w", err)
	}
	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode paid tab total: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (r *mongoTabRepository) DeleteByReservations(ctx context.Context, reservationIDs []string) error {
	if len(reservationIDs) == 0 {
		return nil
	}
	return r.deleteTabs(ctx, bson.M{"reservation_id": bson.M{"$in": reservationIDs}})
}

func (r *mongoTabRepository) DeleteByClient(ctx context.Context, tenantID, clientID string) error {
	return r.deleteTabs(ctx, bson.M{"tenant_id": tenantID, "client_id": clientID})
}

// deleteTabs removes the matching tabs after their items.
func (r *mongoTabRepository) deleteTabs(ctx context.Context, filter bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	cursor, err := r.tabs.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to find tabs: %w", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("failed to decode tabs: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	tabIDs := make([]string, len(docs))
	for i, doc := range docs {
		tabIDs[i] = doc.ID.Hex()
	}
	if _, err := r.items.DeleteMany(ctx, bson.M{"tab_id": bson.M{"$in": tabIDs}}); err != nil {
		return fmt.Errorf("failed to delete tab items: %w", err)
	}
	if _, err := r.tabs.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete tabs: %w", err)
	}
	return nil
}
