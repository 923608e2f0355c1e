package service

import (
	"context"
	"errors"
	"fmt"

	reservationserrors "agenda/internal/reservations/errors"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentDispatches = 8

// CancelMany cancels an explicit list of reservations. Every id must resolve
// within the tenant and none may have an open tab; otherwise nothing changes.
func (s *reservationService) CancelMany(ctx context.Context, tenantID string, req *model.CancelMultipleRequest) (*model.CancelResult, error) {
	if err := s.validator.ValidateCancelMany(req); err != nil {
		return nil, s.validationError("Invalid reservation id list", err)
	}

	var wellFormed, unresolved []string
	for _, id := range req.ReservationIDs {
		if primitive.IsValidObjectID(id) {
			wellFormed = append(wellFormed, id)
		} else {
			unresolved = append(unresolved, id)
		}
	}

	found, err := s.repo.FindByIDs(ctx, tenantID, wellFormed)
	if err != nil && !errors.Is(err, reservationserrors.ErrInvalidID) {
		s.cfg.Log.ErrorContext(ctx, "Failed to load reservations to cancel", "tenant_id", tenantID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}

	byID := make(map[string]*model.Reservation, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	for _, id := range wellFormed {
		if _, ok := byID[id]; !ok {
			unresolved = append(unresolved, id)
		}
	}
	if len(unresolved) > 0 {
		return nil, apperrors.NotFound("Some reservations").WithDetails(map[string]any{
			"unresolved_ids": unresolved,
		})
	}

	openTabs, err := s.tabs.CountOpenByReservations(ctx, wellFormed)
	if err != nil {
		s.cfg.Log.ErrorContext(ctx, "Failed to check open tabs", "tenant_id", tenantID, "error", err)
		return nil, apperrors.Internal("Failed to check open tabs", err)
	}
	var blocked []string
	for _, id := range wellFormed {
		if openTabs[id] > 0 {
			blocked = append(blocked, id)
		}
	}
	if len(blocked) > 0 {
		return nil, apperrors.PreconditionFailed("Cannot cancel reservations with open tabs", reasonOpenTab).WithDetails(map[string]any{
			"reservations_with_open_tabs": blocked,
		})
	}

	var toCancel, alreadyCancelled []string
	var affected []*model.Reservation
	for _, id := range wellFormed {
		r := byID[id]
		if r.Status == model.StatusCancelled {
			alreadyCancelled = append(alreadyCancelled, id)
			continue
		}
		toCancel = append(toCancel, id)
		affected = append(affected, r)
	}

	var changed int64
	if len(toCancel) > 0 {
		changed, err = s.repo.UpdateStatusMany(ctx, toCancel, model.StatusCancelled)
		if err != nil {
			s.cfg.Log.ErrorContext(ctx, "Failed to cancel reservations", "tenant_id", tenantID, "error", err)
			return nil, apperrors.Internal("Failed to cancel reservations", err)
		}
	}

	s.cfg.Log.InfoContext(ctx, "Reservations cancelled successfully",
		"tenant_id", tenantID,
		"requested", len(req.ReservationIDs),
		"cancelled", changed,
		"already_cancelled", len(alreadyCancelled),
	)

	s.dispatchDeletes(ctx, affected)

	return &model.CancelResult{
		Message:             fmt.Sprintf("%d reservations cancelled successfully", changed),
		CancelledCount:      changed,
		AlreadyCancelledIDs: alreadyCancelled,
	}, nil
}

// CancelRecurringGroup cancels the members of a series that have not started
// yet. Past occurrences are left as they are.
func (s *reservationService) CancelRecurringGroup(ctx context.Context, tenantID, groupID string) (*model.CancelResult, error) {
	if groupID == "" {
		return nil, apperrors.InvalidInput("Recurring group ID cannot be empty")
	}

	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, reservationserrors.ErrGroupNotFound) {
			return nil, apperrors.NotFoundWithID("Recurring group", groupID)
		}
		s.cfg.Log.ErrorContext(ctx, "Failed to retrieve recurring group", "group_id", groupID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve recurring group", err)
	}

	members, err := s.repo.FindByGroup(ctx, groupID)
	if err != nil {
		s.cfg.Log.ErrorContext(ctx, "Failed to retrieve recurring group members", "group_id", groupID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve recurring group members", err)
	}

	now := s.now()
	owned := false
	var toCancel []string
	var affected []*model.Reservation
	for _, r := range members {
		if r.TenantID != tenantID {
			continue
		}
		owned = true
		if r.Status == model.StatusCancelled || r.StartTime.Before(now) {
			continue
		}
		toCancel = append(toCancel, r.ID)
		affected = append(affected, r)
	}
	if !owned {
		s.cfg.Log.WarnContext(ctx, "Recurring group cancel denied", "group_id", groupID, "tenant_id", tenantID)
		return nil, apperrors.Forbidden("Not allowed to cancel this recurring group")
	}

	var changed int64
	if len(toCancel) > 0 {
		changed, err = s.repo.UpdateStatusMany(ctx, toCancel, model.StatusCancelled)
		if err != nil {
			s.cfg.Log.ErrorContext(ctx, "Failed to cancel recurring group", "group_id", groupID, "error", err)
			return nil, apperrors.Internal("Failed to cancel recurring reservations", err)
		}
	}

	s.cfg.Log.InfoContext(ctx, "Recurring reservations cancelled successfully",
		"group_id", groupID,
		"tenant_id", tenantID,
		"cancelled", changed,
	)

	s.dispatchDeletes(ctx, affected)

	return &model.CancelResult{
		Message:        "Recurring reservations cancelled successfully",
		CancelledCount: changed,
	}, nil
}

// dispatchDeletes requests removal of the mirrored events of reservations.
// Failures are logged by dispatch and never undo the cancellation.
func (s *reservationService) dispatchDeletes(ctx context.Context, reservations []*model.Reservation) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentDispatches)
	for _, r := range reservations {
		if !r.Synced() {
			continue
		}
		r.Status = model.StatusCancelled
		g.Go(func() error {
			s.dispatch(ctx, model.SyncDelete, r)
			return nil
		})
	}
	_ = g.Wait()
}
