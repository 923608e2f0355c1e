package handler

import (
	"net/http"

	"agenda/internal/clients/service"
	httputil "agenda/pkg/http"
	"agenda/pkg/logger"
	"agenda/pkg/middleware"
	"agenda/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const module = "clients"

type ClientHandler struct {
	service service.ClientService
	log     *logger.Logger
}

func NewClientHandler(service service.ClientService, log *logger.Logger) *ClientHandler {
	return &ClientHandler{
		service: service,
		log:     log,
	}
}

func (h *ClientHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	search := r.URL.Query().Get("search")
	clients, total, err := h.service.List(r.Context(), middleware.TenantID(r.Context()), search, limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, clients, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ClientHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	client, err := h.service.GetByID(r.Context(), middleware.TenantID(r.Context()), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, client); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ClientHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	history, err := h.service.History(r.Context(), middleware.TenantID(r.Context()), ps.ByName("id"), limit, offset)
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, history); err != nil {
		h.log.Error("failed to write JSON response", "handler", "History", "operation", "WriteJSON", "error", err)
	}
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var client model.Client
	if err := httputil.DecodeJSON(r, &client); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := h.service.Create(r.Context(), middleware.TenantID(r.Context()), &client); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, client); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var upd model.ClientUpdate
	if err := httputil.DecodeJSON(r, &upd); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	client, err := h.service.Update(r.Context(), middleware.TenantID(r.Context()), ps.ByName("id"), &upd)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, client); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), middleware.TenantID(r.Context()), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ClientHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/clients", middleware.RequirePermission(module, "view", h.GetAll))
	router.POST("/api/v1/clients", middleware.RequirePermission(module, "create", h.Create))
	router.GET("/api/v1/clients/id/:id", middleware.RequirePermission(module, "view", h.GetByID))
	router.GET("/api/v1/clients/id/:id/history", middleware.RequirePermission(module, "view", h.History))
	router.PUT("/api/v1/clients/id/:id", middleware.RequirePermission(module, "edit", h.Update))
	router.DELETE("/api/v1/clients/id/:id", middleware.RequirePermission(module, "delete", h.Delete))
}

func (h *ClientHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
