package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	clientserrors "agenda/internal/clients/errors"
	"agenda/internal/recurrence"
	reservationserrors "agenda/internal/reservations/errors"
	"agenda/internal/reservations/repository"
	"agenda/internal/reservations/validator"
	resourceserrors "agenda/internal/resources/errors"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"agenda/pkg/timerange"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type ReservationService interface {
	List(ctx context.Context, tenantID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.ReservationDetails, int64, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.ReservationDetails, error)
	CreateSingle(ctx context.Context, tenantID string, req *model.ReservationCreate) (*model.Reservation, error)
	CreateRecurring(ctx context.Context, tenantID string, req *model.ReservationCreate) (*model.RecurringCreateResult, error)
	Update(ctx context.Context, tenantID, id string, upd *model.ReservationUpdate) (*model.Reservation, error)
	Cancel(ctx context.Context, tenantID, id string) (*model.CancelResult, error)
	CancelMany(ctx context.Context, tenantID string, req *model.CancelMultipleRequest) (*model.CancelResult, error)
	CancelRecurringGroup(ctx context.Context, tenantID, groupID string) (*model.CancelResult, error)

	FindByExternalEvent(ctx context.Context, tenantID, eventID string) (*model.Reservation, error)
	AttachExternalEvent(ctx context.Context, tenantID, id, eventID string) error
	ApplyExternalCancellation(ctx context.Context, tenantID, id string) error
	ApplyExternalReschedule(ctx context.Context, tenantID, id string, interval timerange.Interval) error
}

// ResourceLookup and ClientLookup are the tenant-scoped reads the lifecycle
// needs from the resources and clients stores.
type ResourceLookup interface {
	FindByID(ctx context.Context, tenantID, id string) (*model.Resource, error)
	FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Resource, error)
}

type ClientLookup interface {
	FindByID(ctx context.Context, tenantID, id string) (*model.Client, error)
	FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Client, error)
}

type Repositories struct {
	Reservations repository.ReservationRepository
	Groups       repository.RecurringGroupRepository
	Locks        repository.ReservationLockRepository
	Tabs         repository.TabRepository
	Resources    ResourceLookup
	Clients      ClientLookup
}

type reservationService struct {
	repo      repository.ReservationRepository
	groups    repository.RecurringGroupRepository
	tabs      repository.TabRepository
	resources ResourceLookup
	clients   ClientLookup
	conflicts *ConflictChecker
	locker    *resourceLocker
	validator *validator.ReservationValidator
	sync      SyncDispatcher
	cfg       *config.Config
	now       clock
	// location is the tenant calendar zone series are stepped in, so a
	// weekly slot keeps its wall-clock time across DST changes.
	location *time.Location
}

func NewReservationService(
	repos Repositories,
	validator *validator.ReservationValidator,
	sync SyncDispatcher,
	cfg *config.Config,
) ReservationService {
	s := &reservationService{
		repo:      repos.Reservations,
		groups:    repos.Groups,
		tabs:      repos.Tabs,
		resources: repos.Resources,
		clients:   repos.Clients,
		conflicts: NewConflictChecker(repos.Reservations, repos.Clients, cfg.Log),
		validator: validator,
		sync:      sync,
		cfg:       cfg,
		now:       time.Now,
	}
	s.locker = &resourceLocker{repo: repos.Locks, cfg: cfg, now: func() time.Time { return s.now() }}

	location, err := time.LoadLocation(cfg.CalendarTimezone)
	if err != nil {
		cfg.Log.Warn("Unknown calendar timezone, stepping series in UTC", "timezone", cfg.CalendarTimezone, "error", err)
		location = time.UTC
	}
	s.location = location
	return s
}

func (s *reservationService) List(ctx context.Context, tenantID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.ReservationDetails, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var reservations []*model.Reservation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = s.repo.Count(gctx, tenantID, filter)
		if err != nil {
			s.cfg.Log.ErrorContext(ctx, "Failed to count reservations", "tenant_id", tenantID, "error", err)
			return apperrors.Internal("Failed to count reservations", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reservations, err = s.repo.FindAll(gctx, tenantID, filter, limit, offset)
		if err != nil {
			s.cfg.Log.ErrorContext(ctx, "Failed to list reservations", "tenant_id", tenantID, "error", err)
			return apperrors.Internal("Failed to retrieve reservations", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	details, err := s.withSummaries(ctx, tenantID, reservations)
	if err != nil {
		return nil, 0, err
	}
	return details, count, nil
}

func (s *reservationService) GetByID(ctx context.Context, tenantID, id string) (*model.ReservationDetails, error) {
	reservation, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	details, err := s.withSummaries(ctx, tenantID, []*model.Reservation{reservation})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

func (s *reservationService) CreateSingle(ctx context.Context, tenantID string, req *model.ReservationCreate) (*model.Reservation, error) {
	hours, err := s.validator.ValidateCreate(req)
	if err != nil {
		return nil, s.validationError("Reservation validation failed", err)
	}
	if err := s.verifyReferences(ctx, tenantID, req.ResourceID, req.ClientID); err != nil {
		return nil, err
	}

	interval, err := timerange.FromHours(req.StartTime.UTC(), hours)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	reservation := &model.Reservation{
		TenantID:   tenantID,
		ResourceID: req.ResourceID,
		ClientID:   req.ClientID,
		StartTime:  interval.Start,
		EndTime:    interval.End,
		Status:     model.StatusConfirmed,
	}

	err = s.lockedTransaction(ctx, req.ResourceID, func(sessCtx mongo.SessionContext) error {
		conflict, err := s.conflicts.FindConflict(sessCtx, tenantID, req.ResourceID, interval, "")
		if err != nil {
			return apperrors.Internal("Failed to check existing reservations", err)
		}
		if conflict != nil {
			return conflictError(conflict)
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Failed to create reservation", err, "tenant_id", tenantID, "resource_id", req.ResourceID)
		return nil, err
	}

	s.cfg.Log.InfoContext(ctx, "Reservation created successfully",
		"id", reservation.ID,
		"tenant_id", tenantID,
		"resource_id", reservation.ResourceID,
		"start_time", reservation.StartTime,
		"end_time", reservation.EndTime,
	)

	s.dispatch(ctx, model.SyncCreate, reservation)
	return reservation, nil
}

// CreateRecurring books every occurrence of the series that does not collide
// with an already stored reservation. Occurrences are only checked against
// stored state, never against siblings, which the fixed stepping keeps apart.
// Recurring reservations are not mirrored to the external calendar.
func (s *reservationService) CreateRecurring(ctx context.Context, tenantID string, req *model.ReservationCreate) (*model.RecurringCreateResult, error) {
	hours, err := s.validator.ValidateCreate(req)
	if err != nil {
		return nil, s.validationError("Reservation validation failed", err)
	}
	if !req.IsRecurring {
		return nil, apperrors.InvalidInput("is_recurring must be true for a recurring reservation")
	}
	if err := s.verifyReferences(ctx, tenantID, req.ResourceID, req.ClientID); err != nil {
		return nil, err
	}

	start := req.StartTime.In(s.location)
	until := req.EndDate.In(s.location)
	if _, err := recurrence.Count(start, req.Frequency, until, s.cfg.MaxRecurringOccurrences); err != nil {
		return nil, apperrors.Validation(err.Error(), map[string]any{
			"max_occurrences": s.cfg.MaxRecurringOccurrences,
		})
	}

	group := &model.RecurringGroup{
		TenantID:   tenantID,
		ResourceID: req.ResourceID,
		ClientID:   req.ClientID,
		Frequency:  req.Frequency,
		DayOfWeek:  recurrence.AnchorWeekday(start, req.Frequency),
		StartDate:  start.UTC(),
		EndDate:    until.UTC(),
	}

	var accepted []*model.Reservation
	var skipped []model.SkippedOccurrence

	err = s.lockedTransaction(ctx, req.ResourceID, func(sessCtx mongo.SessionContext) error {
		accepted, skipped = nil, nil

		if err := s.groups.Create(sessCtx, group); err != nil {
			return apperrors.Internal("Failed to create recurring group", err)
		}

		for occurrence := range recurrence.Expand(start, timerange.HoursToDuration(hours), req.Frequency, until) {
			blocking, err := s.conflicts.firstOverlap(sessCtx, req.ResourceID, occurrence, "")
			if err != nil {
				return apperrors.Internal("Failed to check existing reservations", err)
			}
			if blocking != nil {
				skipped = append(skipped, model.SkippedOccurrence{
					StartTime:                occurrence.Start.UTC(),
					EndTime:                  occurrence.End.UTC(),
					ConflictingReservationID: blocking.ID,
				})
				continue
			}
			accepted = append(accepted, &model.Reservation{
				TenantID:         tenantID,
				ResourceID:       req.ResourceID,
				ClientID:         req.ClientID,
				StartTime:        occurrence.Start.UTC(),
				EndTime:          occurrence.End.UTC(),
				Status:           model.StatusConfirmed,
				IsRecurring:      true,
				RecurringGroupID: group.ID,
			})
		}

		if len(accepted) == 0 {
			if err := s.groups.Delete(sessCtx, group.ID); err != nil {
				return apperrors.Internal("Failed to remove empty recurring group", err)
			}
			return allOccupiedError(skipped)
		}

		if err := s.repo.CreateMany(sessCtx, accepted); err != nil {
			return apperrors.Internal("Failed to create recurring reservations", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Failed to create recurring reservations", err, "tenant_id", tenantID, "resource_id", req.ResourceID)
		return nil, err
	}

	s.cfg.Log.InfoContext(ctx, "Recurring reservations created successfully",
		"group_id", group.ID,
		"tenant_id", tenantID,
		"resource_id", req.ResourceID,
		"frequency", req.Frequency,
		"count", len(accepted),
		"skipped", len(skipped),
	)

	return &model.RecurringCreateResult{
		Message:          fmt.Sprintf("%d recurring reservations created", len(accepted)),
		RecurringGroupID: group.ID,
		Count:            len(accepted),
		Skipped:          skipped,
	}, nil
}

func (s *reservationService) Update(ctx context.Context, tenantID, id string, upd *model.ReservationUpdate) (*model.Reservation, error) {
	hours, err := s.validator.ValidateUpdate(upd)
	if err != nil {
		return nil, s.validationError("Invalid update input", err)
	}

	existing, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkEditable(ctx, existing); err != nil {
		return nil, err
	}

	merged := mergeUpdate(existing, upd, hours)

	write := func(ctx context.Context) error {
		if err := s.repo.Update(ctx, merged); err != nil {
			if errors.Is(err, reservationserrors.ErrNotFound) {
				return apperrors.PreconditionFailed("Cannot edit a cancelled reservation", reasonCancelled)
			}
			return apperrors.Internal("Failed to update reservation", err)
		}
		return nil
	}

	if upd.ChangesTime() && merged.Status != model.StatusCancelled {
		err = s.lockedTransaction(ctx, merged.ResourceID, func(sessCtx mongo.SessionContext) error {
			conflict, err := s.conflicts.FindConflict(sessCtx, tenantID, merged.ResourceID, merged.Interval(), merged.ID)
			if err != nil {
				return apperrors.Internal("Failed to check existing reservations", err)
			}
			if conflict != nil {
				return conflictError(conflict)
			}
			return write(sessCtx)
		})
	} else {
		err = write(ctx)
	}
	if err != nil {
		s.logFailure("Failed to update reservation", err, "id", id, "tenant_id", tenantID)
		return nil, err
	}

	s.cfg.Log.InfoContext(ctx, "Reservation updated successfully",
		"id", id,
		"tenant_id", tenantID,
		"status", merged.Status,
		"start_time", merged.StartTime,
		"end_time", merged.EndTime,
	)

	s.syncAfterEdit(ctx, merged)
	return merged, nil
}

func (s *reservationService) Cancel(ctx context.Context, tenantID, id string) (*model.CancelResult, error) {
	existing, err := s.find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing.Status.IsTerminal() {
		return nil, apperrors.PreconditionFailed("Reservation is already cancelled", reasonCancelled)
	}
	if err := s.checkOpenTabs(ctx, existing.ID, "Cannot cancel a reservation with an open tab. Close the tab first."); err != nil {
		return nil, err
	}

	changed, err := s.repo.UpdateStatusMany(ctx, []string{existing.ID}, model.StatusCancelled)
	if err != nil {
		s.cfg.Log.ErrorContext(ctx, "Failed to cancel reservation", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to cancel reservation", err)
	}
	if changed == 0 {
		return nil, apperrors.PreconditionFailed("Reservation is already cancelled", reasonCancelled)
	}

	s.cfg.Log.InfoContext(ctx, "Reservation cancelled successfully", "id", id, "tenant_id", tenantID)

	existing.Status = model.StatusCancelled
	if existing.Synced() {
		s.dispatch(ctx, model.SyncDelete, existing)
	}

	return &model.CancelResult{
		Message:        "Reservation cancelled successfully",
		ReservationID:  existing.ID,
		CancelledCount: changed,
	}, nil
}

// FindByExternalEvent resolves the reservation mirrored by a calendar event.
func (s *reservationService) FindByExternalEvent(ctx context.Context, tenantID, eventID string) (*model.Reservation, error) {
	if eventID == "" {
		return nil, apperrors.InvalidInput("External event ID cannot be empty")
	}
	reservation, err := s.repo.FindByExternalEventID(ctx, tenantID, eventID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", eventID)
		}
		return nil, apperrors.Internal("Failed to find reservation", err)
	}
	return reservation, nil
}

// AttachExternalEvent stores the id the calendar assigned to a mirrored
// reservation.
func (s *reservationService) AttachExternalEvent(ctx context.Context, tenantID, id, eventID string) error {
	if err := s.repo.SetExternalEventID(ctx, tenantID, id, eventID); err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) || errors.Is(err, reservationserrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("Reservation", id)
		}
		return apperrors.Internal("Failed to store external event id", err)
	}
	return nil
}

// ApplyExternalCancellation cancels a reservation because its mirrored event
// was cancelled in the calendar. It skips the open-tab and start checks of
// the user path and leaves already cancelled rows untouched.
func (s *reservationService) ApplyExternalCancellation(ctx context.Context, tenantID, id string) error {
	existing, err := s.find(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if existing.Status.IsTerminal() {
		return nil
	}

	changed, err := s.repo.UpdateStatusMany(ctx, []string{existing.ID}, model.StatusCancelled)
	if err != nil {
		return apperrors.Internal("Failed to cancel reservation", err)
	}
	if changed > 0 {
		s.cfg.Log.InfoContext(ctx, "Reservation cancelled from external calendar", "id", id, "tenant_id", tenantID)
	}
	return nil
}

// ApplyExternalReschedule moves a reservation to the times of its mirrored
// event. The move is still conflict checked under the resource lock; a
// conflicting move is rejected and local state stays authoritative.
func (s *reservationService) ApplyExternalReschedule(ctx context.Context, tenantID, id string, interval timerange.Interval) error {
	if _, err := timerange.New(interval.Start, interval.End); err != nil {
		return apperrors.Validation(err.Error(), nil)
	}

	existing, err := s.find(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if existing.Status.IsTerminal() {
		return nil
	}
	if existing.StartTime.Equal(interval.Start) && existing.EndTime.Equal(interval.End) {
		return nil
	}

	moved := *existing
	moved.StartTime = interval.Start.UTC()
	moved.EndTime = interval.End.UTC()

	err = s.lockedTransaction(ctx, moved.ResourceID, func(sessCtx mongo.SessionContext) error {
		conflict, err := s.conflicts.FindConflict(sessCtx, tenantID, moved.ResourceID, moved.Interval(), moved.ID)
		if err != nil {
			return apperrors.Internal("Failed to check existing reservations", err)
		}
		if conflict != nil {
			return conflictError(conflict)
		}
		if err := s.repo.Update(sessCtx, &moved); err != nil {
			return apperrors.Internal("Failed to reschedule reservation", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Rejected external reschedule", err, "id", id, "tenant_id", tenantID)
		return err
	}

	s.cfg.Log.InfoContext(ctx, "Reservation rescheduled from external calendar",
		"id", id,
		"tenant_id", tenantID,
		"start_time", moved.StartTime,
		"end_time", moved.EndTime,
	)
	return nil
}

// --- Helpers ---

const (
	reasonCancelled      = "cancelled"
	reasonAlreadyStarted = "already_started"
	reasonOpenTab        = "open_tab"
)

func (s *reservationService) find(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		// A malformed id and a foreign id both read as missing.
		if errors.Is(err, reservationserrors.ErrNotFound) || errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		s.cfg.Log.ErrorContext(ctx, "Failed to retrieve reservation", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

func (s *reservationService) verifyReferences(ctx context.Context, tenantID, resourceID, clientID string) error {
	if _, err := s.resources.FindByID(ctx, tenantID, resourceID); err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) || errors.Is(err, resourceserrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("Resource", resourceID)
		}
		return apperrors.Internal("Failed to retrieve resource", err)
	}
	if _, err := s.clients.FindByID(ctx, tenantID, clientID); err != nil {
		if errors.Is(err, clientserrors.ErrNotFound) || errors.Is(err, clientserrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("Client", clientID)
		}
		return apperrors.Internal("Failed to retrieve client", err)
	}
	return nil
}

func (s *reservationService) checkEditable(ctx context.Context, r *model.Reservation) error {
	if r.Status.IsTerminal() {
		return apperrors.PreconditionFailed("Cannot edit a cancelled reservation", reasonCancelled)
	}
	if r.HasStarted(s.now()) {
		return apperrors.PreconditionFailed("Cannot edit a reservation that has already started", reasonAlreadyStarted)
	}
	return s.checkOpenTabs(ctx, r.ID, "Cannot edit a reservation with an open tab. Close the tab first.")
}

func (s *reservationService) checkOpenTabs(ctx context.Context, id, message string) error {
	counts, err := s.tabs.CountOpenByReservations(ctx, []string{id})
	if err != nil {
		s.cfg.Log.ErrorContext(ctx, "Failed to check open tabs", "reservation_id", id, "error", err)
		return apperrors.Internal("Failed to check open tabs", err)
	}
	if open := counts[id]; open > 0 {
		return apperrors.PreconditionFailed(message, reasonOpenTab).WithDetails(map[string]any{
			"open_tabs": open,
		})
	}
	return nil
}

// mergeUpdate applies an edit. A new start without a duration keeps the
// current length; a duration alone stretches from the current start.
func mergeUpdate(existing *model.Reservation, upd *model.ReservationUpdate, hours float64) *model.Reservation {
	merged := *existing

	if upd.ChangesTime() {
		interval := existing.Interval()
		if hours > 0 {
			interval.End = interval.Start.Add(timerange.HoursToDuration(hours))
		}
		if upd.StartTime != nil {
			interval = interval.Shift(upd.StartTime.UTC())
		}
		merged.StartTime, merged.EndTime = interval.Start, interval.End
	}
	if upd.Status != "" {
		merged.Status = upd.Status
	}
	return &merged
}

func (s *reservationService) withSummaries(ctx context.Context, tenantID string, reservations []*model.Reservation) ([]*model.ReservationDetails, error) {
	resourceIDs := make([]string, 0, len(reservations))
	clientIDs := make([]string, 0, len(reservations))
	for _, r := range reservations {
		resourceIDs = append(resourceIDs, r.ResourceID)
		clientIDs = append(clientIDs, r.ClientID)
	}

	var resources []*model.Resource
	var clients []*model.Client

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resources, err = s.resources.FindByIDs(gctx, tenantID, uniq(resourceIDs))
		return err
	})
	g.Go(func() error {
		var err error
		clients, err = s.clients.FindByIDs(gctx, tenantID, uniq(clientIDs))
		return err
	})
	if err := g.Wait(); err != nil {
		s.cfg.Log.ErrorContext(ctx, "Failed to load reservation references", "tenant_id", tenantID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservation details", err)
	}

	resourceByID := make(map[string]*model.Resource, len(resources))
	for _, r := range resources {
		resourceByID[r.ID] = r
	}
	clientByID := make(map[string]*model.Client, len(clients))
	for _, c := range clients {
		clientByID[c.ID] = c
	}

	details := make([]*model.ReservationDetails, len(reservations))
	for i, r := range reservations {
		d := &model.ReservationDetails{Reservation: r}
		if res, ok := resourceByID[r.ResourceID]; ok {
			d.Resource = res.Summary()
		}
		if c, ok := clientByID[r.ClientID]; ok {
			d.Client = c.Summary()
		}
		details[i] = d
	}
	return details, nil
}

func (s *reservationService) validationError(message string, err error) error {
	s.cfg.Log.Warn(message, "error", err)
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return apperrors.Validation(message, map[string]any{"errors": errs})
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

// logFailure logs client-caused rejections at warn and everything else at
// error.
func (s *reservationService) logFailure(message string, err error, args ...any) {
	args = append(args, "error", err)
	appErr := apperrors.AsAppError(err)
	if appErr.HTTPStatus >= 500 {
		s.cfg.Log.Error(message, args...)
		return
	}
	s.cfg.Log.Warn(message, args...)
}

func allOccupiedError(skipped []model.SkippedOccurrence) error {
	ids := make([]string, 0, len(skipped))
	for _, occ := range skipped {
		ids = append(ids, occ.ConflictingReservationID)
	}
	return apperrors.Conflict("All slots of the recurring series are occupied").WithDetails(map[string]any{
		"occupied_count":              len(skipped),
		"conflicting_reservation_ids": uniq(ids),
	})
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
