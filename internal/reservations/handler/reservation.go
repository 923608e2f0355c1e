package handler

import (
	"net/http"

	"agenda/internal/reservations/service"
	apperrors "agenda/pkg/errors"
	httputil "agenda/pkg/http"
	"agenda/pkg/logger"
	"agenda/pkg/middleware"
	"agenda/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const module = "reservations"

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	reservations, total, err := h.service.List(r.Context(), middleware.TenantID(r.Context()), filter, limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), middleware.TenantID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// Create books a single reservation, or a whole series when is_recurring is
// set.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationCreate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	tenantID := middleware.TenantID(r.Context())

	if req.IsRecurring {
		result, err := h.service.CreateRecurring(r.Context(), tenantID, &req)
		if err != nil {
			h.writeError(w, "Create", err)
			return
		}
		if err := httputil.WriteJSON(w, http.StatusCreated, result); err != nil {
			h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteJSON", "error", err)
		}
		return
	}

	reservation, err := h.service.CreateSingle(r.Context(), tenantID, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var upd model.ReservationUpdate
	if err := httputil.DecodeJSON(r, &upd); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	reservation, err := h.service.Update(r.Context(), middleware.TenantID(r.Context()), ps.ByName("id"), &upd)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	result, err := h.service.Cancel(r.Context(), middleware.TenantID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, result); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Cancel", "operation", "WriteJSON", "error", err)
	}
}

func (h *ReservationHandler) CancelMultiple(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CancelMultipleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "CancelMultiple", apperrors.InvalidInput("Invalid reservation id list"))
		return
	}

	result, err := h.service.CancelMany(r.Context(), middleware.TenantID(r.Context()), &req)
	if err != nil {
		h.writeError(w, "CancelMultiple", err)
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, result); err != nil {
		h.log.Error("failed to write JSON response", "handler", "CancelMultiple", "operation", "WriteJSON", "error", err)
	}
}

func (h *ReservationHandler) CancelRecurringGroup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	result, err := h.service.CancelRecurringGroup(r.Context(), middleware.TenantID(r.Context()), ps.ByName("groupId"))
	if err != nil {
		h.writeError(w, "CancelRecurringGroup", err)
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, result); err != nil {
		h.log.Error("failed to write JSON response", "handler", "CancelRecurringGroup", "operation", "WriteJSON", "error", err)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/reservations", middleware.RequirePermission(module, "view", h.GetAll))
	router.POST("/api/v1/reservations", middleware.RequirePermission(module, "create", h.Create))
	router.GET("/api/v1/reservations/id/:id", middleware.RequirePermission(module, "view", h.GetByID))
	router.PUT("/api/v1/reservations/id/:id", middleware.RequirePermission(module, "edit", h.Update))
	router.DELETE("/api/v1/reservations/id/:id", middleware.RequirePermission(module, "cancel", h.Cancel))
	router.POST("/api/v1/reservations/cancel-multiple", middleware.RequirePermission(module, "cancel", h.CancelMultiple))
	router.DELETE("/api/v1/reservations/recurring-group/:groupId", middleware.RequirePermission(module, "cancel", h.CancelRecurringGroup))
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func parseFilter(r *http.Request) (model.ReservationFilter, error) {
	query := r.URL.Query()
	filter := model.ReservationFilter{
		ResourceID: query.Get("resource_id"),
		ClientID:   query.Get("client_id"),
		Status:     model.ReservationStatus(query.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, apperrors.InvalidInput("invalid status parameter: " + string(filter.Status))
	}

	var err error
	if filter.From, err = httputil.ExtractTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = httputil.ExtractTime(r, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}
