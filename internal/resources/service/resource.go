package service

import (
	"context"
	"errors"
	"time"

	reservationsrepo "agenda/internal/reservations/repository"
	resourceserrors "agenda/internal/resources/errors"
	"agenda/internal/resources/repository"
	"agenda/internal/resources/validator"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"agenda/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type ResourceService interface {
	List(ctx context.Context, tenantID string, limit int, offset int64) ([]*model.Resource, int64, error)
	GetByID(ctx context.Context, tenantID, id string) (*model.Resource, error)
	Create(ctx context.Context, tenantID string, resource *model.Resource) error
	Update(ctx context.Context, tenantID, id string, upd *model.ResourceUpdate) (*model.Resource, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// ReservationStore, GroupStore and TabStore are the dependents removed when a
// resource is deleted.
type ReservationStore interface {
	CountActiveFuture(ctx context.Context, tenantID string, field string, value string, now time.Time) (int64, error)
	IDsBy(ctx context.Context, tenantID string, field string, value string) ([]string, error)
	DeleteBy(ctx context.Context, tenantID string, field string, value string) (int64, error)
}

type GroupStore interface {
	DeleteBy(ctx context.Context, tenantID string, field string, value string) error
}

type TabStore interface {
	DeleteByReservations(ctx context.Context, reservationIDs []string) error
}

type resourceService struct {
	repo         repository.ResourceRepository
	reservations ReservationStore
	groups       GroupStore
	tabs         TabStore
	validator    *validator.ResourceValidator
	cfg          *config.Config
	now          func() time.Time
}

func NewResourceService(
	repo repository.ResourceRepository,
	reservations ReservationStore,
	groups GroupStore,
	tabs TabStore,
	validator *validator.ResourceValidator,
	cfg *config.Config,
) ResourceService {
	return &resourceService{
		repo:         repo,
		reservations: reservations,
		groups:       groups,
		tabs:         tabs,
		validator:    validator,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *resourceService) List(ctx context.Context, tenantID string, limit int, offset int64) ([]*model.Resource, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var resources []*model.Resource

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if count, err = s.repo.Count(gctx, tenantID); err != nil {
			s.cfg.Log.Error("Failed to count resources", "tenant_id", tenantID, "error", err)
			return apperrors.Internal("Failed to count resources", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if resources, err = s.repo.FindAll(gctx, tenantID, limit, offset); err != nil {
			s.cfg.Log.Error("Failed to list resources", "tenant_id", tenantID, "limit", limit, "offset", offset, "error", err)
			return apperrors.Internal("Failed to retrieve resources", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return resources, count, nil
}

func (s *resourceService) GetByID(ctx context.Context, tenantID, id string) (*model.Resource, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	resource, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) || errors.Is(err, resourceserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Resource", id)
		}
		s.cfg.Log.Error("Failed to get resource by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve resource", err)
	}
	return resource, nil
}

func (s *resourceService) Create(ctx context.Context, tenantID string, resource *model.Resource) error {
	resource.TenantID = tenantID
	resource.Name = sanitizer.NormalizeName(resource.Name)
	resource.Description = sanitizer.CollapseWhitespace(resource.Description)
	if resource.Status == "" {
		resource.Status = model.ResourceAvailable
	}

	if err := s.validator.Validate(resource); err != nil {
		s.cfg.Log.Warn("Resource validation failed", "name", resource.Name, "error", err)
		return validationError("Resource validation failed", err)
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		s.cfg.Log.Error("Failed to create resource", "name", resource.Name, "error", err)
		return apperrors.Internal("Failed to create resource", err)
	}

	s.cfg.Log.Info("Resource created successfully",
		"id", resource.ID,
		"tenant_id", tenantID,
		"name", resource.Name,
	)
	return nil
}

func (s *resourceService) Update(ctx context.Context, tenantID, id string, upd *model.ResourceUpdate) (*model.Resource, error) {
	if err := s.validator.ValidateUpdate(upd); err != nil {
		s.cfg.Log.Warn("Resource validation failed", "id", id, "error", err)
		return nil, validationError("Resource validation failed", err)
	}

	existing, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	merged := mergeUpdate(existing, upd)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Resource validation failed", "id", id, "error", err)
		return nil, validationError("Resource validation failed", err)
	}

	if err := s.repo.Update(ctx, merged); err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", id)
		}
		s.cfg.Log.Error("Failed to update resource", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update resource", err)
	}

	s.cfg.Log.Info("Resource updated successfully", "id", id, "name", merged.Name)
	return merged, nil
}

// Delete removes a resource that has no active future reservations, together
// with everything hanging off it.
func (s *resourceService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetByID(ctx, tenantID, id); err != nil {
		return err
	}

	active, err := s.reservations.CountActiveFuture(ctx, tenantID, reservationsrepo.FieldResourceID, id, s.now())
	if err != nil {
		s.cfg.Log.Error("Failed to count active reservations", "resource_id", id, "error", err)
		return apperrors.Internal("Failed to check active reservations", err)
	}
	if active > 0 {
		return apperrors.Conflict("Cannot delete a resource with active future reservations").WithDetails(map[string]any{
			"active_reservations": active,
		})
	}

	var removed int64
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		ids, err := s.reservations.IDsBy(sessCtx, tenantID, reservationsrepo.FieldResourceID, id)
		if err != nil {
			return apperrors.Internal("Failed to list resource reservations", err)
		}
		if err := s.tabs.DeleteByReservations(sessCtx, ids); err != nil {
			return apperrors.Internal("Failed to delete tabs", err)
		}
		if removed, err = s.reservations.DeleteBy(sessCtx, tenantID, reservationsrepo.FieldResourceID, id); err != nil {
			return apperrors.Internal("Failed to delete reservations", err)
		}
		if err := s.groups.DeleteBy(sessCtx, tenantID, reservationsrepo.FieldResourceID, id); err != nil {
			return apperrors.Internal("Failed to delete recurring groups", err)
		}
		if err := s.repo.Delete(sessCtx, tenantID, id); err != nil {
			if errors.Is(err, resourceserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Resource", id)
			}
			return apperrors.Internal("Failed to delete resource", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete resource", "id", id, "tenant_id", tenantID, "error", err)
		return err
	}

	s.cfg.Log.Info("Resource deleted successfully", "id", id, "tenant_id", tenantID, "reservations_removed", removed)
	return nil
}

func mergeUpdate(existing *model.Resource, upd *model.ResourceUpdate) *model.Resource {
	merged := *existing
	if upd.Name != nil {
		merged.Name = sanitizer.NormalizeName(*upd.Name)
	}
	if upd.Description != nil {
		merged.Description = sanitizer.CollapseWhitespace(*upd.Description)
	}
	if upd.PricePerHour != nil {
		merged.PricePerHour = *upd.PricePerHour
	}
	if upd.Status != "" {
		merged.Status = upd.Status
	}
	return &merged
}

func validationError(message string, err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return apperrors.Validation(message, map[string]any{"errors": errs})
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
