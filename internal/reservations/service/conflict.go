package service

import (
	"context"
	"fmt"
	"time"

	"agenda/internal/reservations/repository"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/timerange"
)

// Conflict is an existing reservation that blocks a candidate interval.
type Conflict struct {
	Reservation *model.Reservation
	ClientName  string
}

type ConflictChecker struct {
	repo    repository.ReservationRepository
	clients ClientLookup
	log     *logger.Logger
}

func NewConflictChecker(repo repository.ReservationRepository, clients ClientLookup, log *logger.Logger) *ConflictChecker {
	return &ConflictChecker{repo: repo, clients: clients, log: log}
}

// FindConflict returns the first non-cancelled reservation of resourceID
// overlapping candidate, skipping excludeID, or nil when the slot is free.
func (c *ConflictChecker) FindConflict(ctx context.Context, tenantID, resourceID string, candidate timerange.Interval, excludeID string) (*Conflict, error) {
	blocking, err := c.firstOverlap(ctx, resourceID, candidate, excludeID)
	if err != nil || blocking == nil {
		return nil, err
	}

	conflict := &Conflict{Reservation: blocking}
	if client, err := c.clients.FindByID(ctx, tenantID, blocking.ClientID); err == nil {
		conflict.ClientName = client.FullName
	} else {
		c.log.WarnContext(ctx, "Failed to resolve client of conflicting reservation",
			"reservation_id", blocking.ID,
			"client_id", blocking.ClientID,
			"error", err,
		)
	}
	return conflict, nil
}

func (c *ConflictChecker) firstOverlap(ctx context.Context, resourceID string, candidate timerange.Interval, excludeID string) (*model.Reservation, error) {
	existing, err := c.repo.FindOverlapping(ctx, resourceID, candidate, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing reservations: %w", err)
	}
	for _, r := range existing {
		if r.ID == excludeID || r.Status == model.StatusCancelled {
			continue
		}
		if timerange.Overlaps(r.Interval(), candidate) {
			return r, nil
		}
	}
	return nil, nil
}

func conflictError(c *Conflict) error {
	name := c.ClientName
	if name == "" {
		name = "another client"
	}
	return apperrors.Conflict(fmt.Sprintf(
		"Time conflicts with the reservation of %s (%s - %s)",
		name,
		c.Reservation.StartTime.UTC().Format(time.RFC3339),
		c.Reservation.EndTime.UTC().Format(time.RFC3339),
	)).WithDetails(map[string]any{
		"conflicting_reservation_id": c.Reservation.ID,
		"client_name":                c.ClientName,
		"start_time":                 c.Reservation.StartTime.UTC(),
		"end_time":                   c.Reservation.EndTime.UTC(),
	})
}
