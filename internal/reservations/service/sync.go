package service

import (
	"context"
	"time"

	"agenda/pkg/model"

	"github.com/google/uuid"
)

// SyncDispatcher hands outbound calendar jobs to whatever executes them. A
// dispatch failure never fails the local operation that triggered it.
type SyncDispatcher interface {
	Dispatch(ctx context.Context, job *model.SyncJob) error
}

func (s *reservationService) dispatch(ctx context.Context, op model.SyncOperation, r *model.Reservation) {
	if s.sync == nil {
		return
	}

	job := &model.SyncJob{
		ID:              uuid.NewString(),
		Operation:       op,
		TenantID:        r.TenantID,
		ReservationID:   r.ID,
		ExternalEventID: r.ExternalCalendarEventID,
		EnqueuedAt:      s.now().UTC(),
	}
	if err := s.sync.Dispatch(ctx, job); err != nil {
		s.cfg.Log.WarnContext(ctx, "Failed to dispatch calendar sync job",
			"job_id", job.ID,
			"operation", op,
			"reservation_id", r.ID,
			"error", err,
		)
	}
}

// syncAfterEdit picks the job for an edited single reservation: cancelled
// ones are removed from the calendar, others are pushed again.
func (s *reservationService) syncAfterEdit(ctx context.Context, r *model.Reservation) {
	if !r.Synced() {
		return
	}
	if r.Status == model.StatusCancelled {
		s.dispatch(ctx, model.SyncDelete, r)
		return
	}
	s.dispatch(ctx, model.SyncUpdate, r)
}

type clock func() time.Time
