package service

import (
	"context"
	"errors"
	"strings"
	"time"

	clientserrors "agenda/internal/clients/errors"
	"agenda/internal/clients/repository"
	"agenda/internal/clients/validator"
	reservationsrepo "agenda/internal/reservations/repository"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"agenda/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

const upcomingLimit = 3

type ClientService interface {
	List(ctx context.Context, tenantID, search string, limit int, offset int64) ([]*model.Client, int64, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.Client, error)
	Create(ctx context.Context, tenantID string, client *model.Client) error
	Update(ctx context.Context, tenantID, id string, upd *model.ClientUpdate) (*model.Client, error)
	Delete(ctx context.Context, tenantID, id string) error
	History(ctx context.Context, tenantID, id string, limit int, offset int64) (*model.ClientHistory, error)
}

// ReservationStore is what the client lifecycle reads and removes from the
// reservations collection.
type ReservationStore interface {
	FindAll(ctx context.Context, tenantID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context, tenantID string, filter model.ReservationFilter) (int64, error)
	FindUpcomingByClient(ctx context.Context, tenantID, clientID string, now time.Time, limit int) ([]*model.Reservation, error)
	CountActiveFuture(ctx context.Context, tenantID string, field string, value string, now time.Time) (int64, error)
	DeleteBy(ctx context.Context, tenantID string, field string, value string) (int64, error)
}

type GroupStore interface {
	DeleteBy(ctx context.Context, tenantID string, field string, value string) error
}

type TabStore interface {
	CountOpenByClient(ctx context.Context, tenantID, clientID string) (int64, error)
	SumPaidByClient(ctx context.Context, tenantID, clientID string) (float64, error)
	DeleteByClient(ctx context.Context, tenantID, clientID string) error
}

type clientService struct {
	repo         repository.ClientRepository
	reservations ReservationStore
	groups       GroupStore
	tabs         TabStore
	validator    *validator.ClientValidator
	cfg          *config.Config
	now          func() time.Time
}

func NewClientService(
	repo repository.ClientRepository,
	reservations ReservationStore,
	groups GroupStore,
	tabs TabStore,
	validator *validator.ClientValidator,
	cfg *config.Config,
) ClientService {
	return &clientService{
		repo:         repo,
		reservations: reservations,
		groups:       groups,
		tabs:         tabs,
		validator:    validator,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *clientService) List(ctx context.Context, tenantID, search string, limit int, offset int64) ([]*model.Client, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var clients []*model.Client

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if count, err = s.repo.Count(gctx, tenantID, search); err != nil {
			s.cfg.Log.Error("Failed to count clients", "tenant_id", tenantID, "error", err)
			return apperrors.Internal("Failed to count clients", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if clients, err = s.repo.FindAll(gctx, tenantID, search, limit, offset); err != nil {
			s.cfg.Log.Error("Failed to list clients", "tenant_id", tenantID, "search", search, "error", err)
			return apperrors.Internal("Failed to retrieve clients", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return clients, count, nil
}

func (s *clientService) GetByID(ctx context.Context, tenantID, id string) (*model.Client, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Client ID cannot be empty")
	}

	client, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, clientserrors.ErrNotFound) || errors.Is(err, clientserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Client", id)
		}
		s.cfg.Log.Error("Failed to get client by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve client", err)
	}
	return client, nil
}

func (s *clientService) Create(ctx context.Context, tenantID string, client *model.Client) error {
	client.TenantID = tenantID

	if err := s.sanitizeAndValidate(client); err != nil {
		s.cfg.Log.Warn("Client validation failed", "full_name", client.FullName, "error", err)
		return validationError("Client validation failed", err)
	}

	if err := s.repo.Create(ctx, client); err != nil {
		s.cfg.Log.Error("Failed to create client", "full_name", client.FullName, "error", err)
		return apperrors.Internal("Failed to create client", err)
	}

	s.cfg.Log.Info("Client created successfully",
		"id", client.ID,
		"tenant_id", tenantID,
		"phone", client.Phone,
	)
	return nil
}

func (s *clientService) Update(ctx context.Context, tenantID, id string, upd *model.ClientUpdate) (*model.Client, error) {
	existing, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	merged := *existing
	if upd.FullName != nil {
		merged.FullName = *upd.FullName
	}
	if upd.Phone != nil {
		merged.Phone = *upd.Phone
	}
	if upd.Email != nil {
		merged.Email = *upd.Email
	}
	if upd.TaxID != nil {
		merged.TaxID = *upd.TaxID
	}
	if err := s.sanitizeAndValidate(&merged); err != nil {
		s.cfg.Log.Warn("Client validation failed", "id", id, "error", err)
		return nil, validationError("Client validation failed", err)
	}

	if err := s.repo.Update(ctx, &merged); err != nil {
		if errors.Is(err, clientserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Client", id)
		}
		s.cfg.Log.Error("Failed to update client", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update client", err)
	}

	s.cfg.Log.Info("Client updated successfully", "id", id, "tenant_id", tenantID)
	return &merged, nil
}

// Delete removes a client without active future reservations or open tabs,
// cascading to its tabs, reservations and recurring groups.
func (s *clientService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetByID(ctx, tenantID, id); err != nil {
		return err
	}

	active, err := s.reservations.CountActiveFuture(ctx, tenantID, reservationsrepo.FieldClientID, id, s.now())
	if err != nil {
		s.cfg.Log.Error("Failed to count active reservations", "client_id", id, "error", err)
		return apperrors.Internal("Failed to check active reservations", err)
	}
	if active > 0 {
		return apperrors.PreconditionFailed(
			"Cannot delete a client with active future reservations. Cancel them first.",
			"active_reservations",
		).WithDetails(map[string]any{"active_reservations": active})
	}

	open, err := s.tabs.CountOpenByClient(ctx, tenantID, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count open tabs", "client_id", id, "error", err)
		return apperrors.Internal("Failed to check open tabs", err)
	}
	if open > 0 {
		return apperrors.PreconditionFailed(
			"Cannot delete a client with open tabs. Close them first.",
			"open_tabs",
		).WithDetails(map[string]any{"open_tabs": open})
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.tabs.DeleteByClient(sessCtx, tenantID, id); err != nil {
			return apperrors.Internal("Failed to delete tabs", err)
		}
		if _, err := s.reservations.DeleteBy(sessCtx, tenantID, reservationsrepo.FieldClientID, id); err != nil {
			return apperrors.Internal("Failed to delete reservations", err)
		}
		if err := s.groups.DeleteBy(sessCtx, tenantID, reservationsrepo.FieldClientID, id); err != nil {
			return apperrors.Internal("Failed to delete recurring groups", err)
		}
		if err := s.repo.Delete(sessCtx, tenantID, id); err != nil {
			if errors.Is(err, clientserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Client", id)
			}
			return apperrors.Internal("Failed to delete client", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete client", "id", id, "tenant_id", tenantID, "error", err)
		return err
	}

	s.cfg.Log.Info("Client deleted successfully", "id", id, "tenant_id", tenantID)
	return nil
}

// History aggregates a client's booking statistics, the next upcoming
// reservations and a page of past and future reservations, newest first.
func (s *clientService) History(ctx context.Context, tenantID, id string, limit int, offset int64) (*model.ClientHistory, error) {
	client, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)
	filter := model.ReservationFilter{ClientID: id}

	history := &model.ClientHistory{Client: client, Limit: limit, Offset: offset}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history.Statistics.TotalReservations, err = s.reservations.Count(gctx, tenantID, filter)
		return err
	})
	g.Go(func() error {
		var err error
		history.Statistics.TotalSpent, err = s.tabs.SumPaidByClient(gctx, tenantID, id)
		return err
	})
	g.Go(func() error {
		var err error
		history.Upcoming, err = s.reservations.FindUpcomingByClient(gctx, tenantID, id, s.now(), upcomingLimit)
		return err
	})
	g.Go(func() error {
		var err error
		history.History, err = s.reservations.FindAll(gctx, tenantID, filter, limit, offset)
		return err
	})
	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to build client history", "client_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve client history", err)
	}

	history.TotalCount = history.Statistics.TotalReservations
	if history.Upcoming == nil {
		history.Upcoming = []*model.Reservation{}
	}
	if history.History == nil {
		history.History = []*model.Reservation{}
	}
	return history, nil
}

func (s *clientService) sanitizeAndValidate(c *model.Client) error {
	rawPhone := strings.TrimSpace(c.Phone)

	c.FullName = sanitizer.NormalizeName(c.FullName)
	c.Phone = sanitizer.NormalizePhone(rawPhone, s.cfg.DefaultPhoneRegion)
	c.Email = sanitizer.NormalizeEmail(c.Email)
	c.TaxID = sanitizer.NormalizeTaxID(c.TaxID)

	if rawPhone != "" && c.Phone == "" {
		return validator.ValidationErrors{{Field: "phone", Message: "phone must be a valid phone number"}}
	}
	return s.validator.Validate(c)
}

func validationError(message string, err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return apperrors.Validation(message, map[string]any{"errors": errs})
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
