package service

import (
	"context"
	"fmt"

	syncerrors "agenda/internal/calendarsync/errors"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
)

// Processor executes one outbound sync job against the adapter. It returns
// an error only when local state could not be read or written; calendar
// failures are handled by the adapter.
type Processor struct {
	adapter *Adapter
	log     *logger.Logger
}

func NewProcessor(adapter *Adapter, log *logger.Logger) *Processor {
	return &Processor{adapter: adapter, log: log}
}

func (p *Processor) Process(ctx context.Context, job *model.SyncJob) error {
	switch job.Operation {
	case model.SyncCreate:
		return p.create(ctx, job)
	case model.SyncUpdate:
		return p.update(ctx, job)
	case model.SyncDelete:
		p.adapter.DeleteEvent(ctx, job.TenantID, job.ExternalEventID)
		return nil
	default:
		return fmt.Errorf("%w: %q", syncerrors.ErrUnknownOperation, job.Operation)
	}
}

func (p *Processor) create(ctx context.Context, job *model.SyncJob) error {
	reservations, err := p.adapter.lifecycle()
	if err != nil {
		return err
	}

	r, err := p.load(ctx, reservations, job)
	if r == nil || err != nil {
		return err
	}
	// Duplicate deliveries and recurring members are not mirrored.
	if r.Synced() || r.IsRecurring || r.Status == model.StatusCancelled {
		return nil
	}

	eventID := p.adapter.CreateEvent(ctx, job.TenantID, r)
	if eventID == "" {
		return nil
	}
	if err := reservations.AttachExternalEvent(ctx, job.TenantID, r.ID, eventID); err != nil {
		p.log.Error("Failed to store calendar event id",
			"job_id", job.ID,
			"reservation_id", r.ID,
			"event_id", eventID,
			"error", err,
		)
		return err
	}
	return nil
}

func (p *Processor) update(ctx context.Context, job *model.SyncJob) error {
	reservations, err := p.adapter.lifecycle()
	if err != nil {
		return err
	}

	r, err := p.load(ctx, reservations, job)
	if r == nil || err != nil {
		return err
	}
	if r.ExternalCalendarEventID == "" {
		r.ExternalCalendarEventID = job.ExternalEventID
	}
	p.adapter.UpdateEvent(ctx, job.TenantID, r)
	return nil
}

// load returns nil without error when the reservation no longer exists.
func (p *Processor) load(ctx context.Context, reservations Reservations, job *model.SyncJob) (*model.ReservationDetails, error) {
	r, err := reservations.GetByID(ctx, job.TenantID, job.ReservationID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			p.log.Info("Skipping sync job for a missing reservation", "job_id", job.ID, "reservation_id", job.ReservationID)
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}
