package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "agenda/internal/reservations/errors"
	"agenda/pkg/config"
	"agenda/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Reservation_locks"

// ReservationLockRepository stores the per-resource advisory locks.
type ReservationLockRepository interface {
	Acquire(ctx context.Context, lock *model.ReservationLock) error
	TakeOverExpired(ctx context.Context, lock *model.ReservationLock, now time.Time) (bool, error)
	Confirm(ctx context.Context, lockID, owner string, now time.Time) error
	Release(ctx context.Context, lockID, owner string) error
}

type mongoReservationLockRepository struct {
	collection *mongo.Collection
}

func NewReservationLockRepository(cfg *config.Config) ReservationLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

// Acquire returns ErrLockHeld if the lock document already exists.
func (r *mongoReservationLockRepository) Acquire(ctx context.Context, lock *model.ReservationLock) error {
	lock.CreatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire reservation lock: %w", err)
	}
	return nil
}

// TakeOverExpired replaces a lock whose holder let it expire. The TTL monitor
// only runs about once a minute, so stale locks are reclaimed here.
func (r *mongoReservationLockRepository) TakeOverExpired(ctx context.Context, lock *model.ReservationLock, now time.Time) (bool, error) {
	lock.CreatedAt = now.UTC()

	filter := bson.M{"_id": lock.ID, "expires_at": bson.M{"$lt": now}}
	err := r.collection.FindOneAndReplace(ctx, filter, lock).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to take over reservation lock: %w", err)
	}
	return true, nil
}

// Confirm touches the lock inside the caller's transaction. It returns
// ErrLockLost once another owner has taken the lock over; a takeover racing
// the open transaction hits a write conflict on the same document instead.
func (r *mongoReservationLockRepository) Confirm(ctx context.Context, lockID, owner string, now time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": lockID, "owner": owner},
		bson.M{"$set": bson.M{"confirmed_at": now.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to confirm reservation lock: %w", err)
	}
	if res.MatchedCount == 0 {
		return reservationserrors.ErrLockLost
	}
	return nil
}

// Release deletes the lock only if owner still holds it.
func (r *mongoReservationLockRepository) Release(ctx context.Context, lockID, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	return err
}
