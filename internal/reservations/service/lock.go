package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "agenda/internal/reservations/errors"
	"agenda/internal/reservations/repository"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/mongo"
)

// resourceLocker serializes every write that changes the occupied intervals
// of one resource, across processes.
type resourceLocker struct {
	repo repository.ReservationLockRepository
	cfg  *config.Config
	now  clock
}

func lockID(resourceID string) string {
	return fmt.Sprintf("reservation_lock_%s", resourceID)
}

// withLock runs fn while holding the lock of resourceID. Contention is
// retried with a constant backoff before giving up with a conflict.
func (l *resourceLocker) withLock(ctx context.Context, resourceID string, fn func(held heldLock) error) error {
	lock := &model.ReservationLock{
		ID:    lockID(resourceID),
		Owner: uuid.NewString(),
	}

	attempts := max(l.cfg.ReservationLockAttempts, 1)
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(l.cfg.ReservationLockRetryDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		now := l.now()
		lock.ExpiresAt = now.Add(l.cfg.ReservationLockTTL)

		err := l.repo.Acquire(ctx, lock)
		if err == nil {
			return nil
		}
		if !errors.Is(err, reservationserrors.ErrLockHeld) {
			return err
		}

		taken, takeErr := l.repo.TakeOverExpired(ctx, lock, now)
		if takeErr != nil {
			return takeErr
		}
		if taken {
			l.cfg.Log.WarnContext(ctx, "Took over expired reservation lock", "lock_id", lock.ID)
			return nil
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		if errors.Is(err, reservationserrors.ErrLockHeld) {
			return apperrors.Conflict("This resource is currently being booked by another request. Please try again.")
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return apperrors.Timeout("Timed out waiting for the reservation lock")
		}
		return apperrors.Internal("Failed to acquire reservation lock", err)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if releaseErr := l.repo.Release(releaseCtx, lock.ID, lock.Owner); releaseErr != nil {
			l.cfg.Log.WarnContext(ctx, "Failed to release reservation lock", "lock_id", lock.ID, "error", releaseErr)
		}
	}()

	return fn(heldLock{repo: l.repo, id: lock.ID, owner: lock.Owner, now: l.now})
}

// heldLock is the caller's claim on a resource lock. The claim alone does not
// stop a holder that outlived its TTL, so writers confirm it inside their
// transaction: a takeover then either fails the confirm or collides with it.
type heldLock struct {
	repo  repository.ReservationLockRepository
	id    string
	owner string
	now   clock
}

func (h heldLock) confirm(ctx context.Context) error {
	err := h.repo.Confirm(ctx, h.id, h.owner, h.now())
	if errors.Is(err, reservationserrors.ErrLockLost) {
		return apperrors.Conflict("The reservation lock expired before the booking finished. Please try again.")
	}
	if err != nil {
		return apperrors.Internal("Failed to confirm reservation lock", err)
	}
	return nil
}

// lockedTransaction runs fn in one transaction under the lock of resourceID,
// after confirming the lock is still ours.
func (s *reservationService) lockedTransaction(ctx context.Context, resourceID string, fn mongotx.TransactionFunc) error {
	return s.locker.withLock(ctx, resourceID, func(held heldLock) error {
		return s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			if err := held.confirm(sessCtx); err != nil {
				return err
			}
			return fn(sessCtx)
		})
	})
}
