package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	syncerrors "agenda/internal/calendarsync/errors"
	"agenda/internal/calendarsync/service"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	httputil "agenda/pkg/http"
	"agenda/pkg/logger"
	"agenda/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

const module = "settings"

type AuthURLResponse struct {
	AuthURL string `json:"auth_url"`
}

type WatchResponse struct {
	ChannelID  string    `json:"channel_id"`
	ResourceID string    `json:"resource_id"`
	Expiration time.Time `json:"expiration"`
}

type CallbackResponse struct {
	Message  string `json:"message"`
	TenantID string `json:"tenant_id"`
}

type CalendarHandler struct {
	service      service.CalendarService
	frontendURL  string
	webhookToken string
	jobTimeout   time.Duration
	log          *logger.Logger

	// background runs webhook processing after the response is written.
	background func(func())
	inFlight   sync.WaitGroup
}

func NewCalendarHandler(service service.CalendarService, cfg *config.Config) *CalendarHandler {
	h := &CalendarHandler{
		service:      service,
		frontendURL:  strings.TrimRight(cfg.FrontendURL, "/"),
		webhookToken: cfg.CalendarWebhookToken,
		jobTimeout:   cfg.SyncJobTimeout,
		log:          cfg.Log,
	}
	h.background = func(fn func()) {
		h.inFlight.Add(1)
		go func() {
			defer h.inFlight.Done()
			fn()
		}()
	}
	return h
}

// Stop waits for notifications still being processed. Each is bounded by the
// job timeout.
func (h *CalendarHandler) Stop() {
	h.inFlight.Wait()
}

func (h *CalendarHandler) AuthURL(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	authURL, err := h.service.AuthURL(r.Context(), middleware.TenantID(r.Context()))
	if err != nil {
		h.writeError(w, "AuthURL", err)
		return
	}

	if err := httputil.WriteSuccess(w, AuthURLResponse{AuthURL: authURL}); err != nil {
		h.log.Error("failed to write success response", "handler", "AuthURL", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CalendarHandler) OAuthCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	var (
		tenantID string
		err      error
	)
	if denied := query.Get("error"); denied != "" {
		h.log.Warn("Google authorization was not granted", "reason", denied)
		err = apperrors.InvalidInput("Google authorization was not granted")
	} else {
		tenantID, err = h.service.CompleteAuth(r.Context(), query.Get("state"), query.Get("code"))
	}

	if h.frontendURL != "" {
		outcome := "success"
		if err != nil {
			outcome = "error"
			h.log.Warn("Google authorization failed", "tenant_id", tenantID, "error", err)
		}
		http.Redirect(w, r, h.frontendURL+"/settings?googleAuth="+url.QueryEscape(outcome), http.StatusFound)
		return
	}

	if err != nil {
		h.writeError(w, "OAuthCallback", err)
		return
	}
	if err := httputil.WriteSuccess(w, CallbackResponse{Message: "Google Calendar connected", TenantID: tenantID}); err != nil {
		h.log.Error("failed to write success response", "handler", "OAuthCallback", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CalendarHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status, err := h.service.Status(r.Context(), middleware.TenantID(r.Context()))
	if err != nil {
		h.writeError(w, "Status", err)
		return
	}

	if err := httputil.WriteSuccess(w, status); err != nil {
		h.log.Error("failed to write success response", "handler", "Status", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CalendarHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	health := h.service.Health(r.Context(), middleware.TenantID(r.Context()))
	if err := httputil.WriteSuccess(w, health); err != nil {
		h.log.Error("failed to write success response", "handler", "Health", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CalendarHandler) Watch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	channel, err := h.service.Watch(r.Context(), middleware.TenantID(r.Context()))
	if err != nil {
		h.writeError(w, "Watch", err)
		return
	}

	resp := WatchResponse{
		ChannelID:  channel.ID,
		ResourceID: channel.ResourceID,
		Expiration: channel.Expiration,
	}
	if err := httputil.WriteSuccess(w, resp); err != nil {
		h.log.Error("failed to write success response", "handler", "Watch", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CalendarHandler) Disconnect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.service.Disconnect(r.Context(), middleware.TenantID(r.Context())); err != nil {
		h.writeError(w, "Disconnect", err)
		return
	}

	httputil.WriteNoContent(w)
}

// Webhook acknowledges every delivery before doing any work; Google retries
// deliveries that are not answered promptly.
func (h *CalendarHandler) Webhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	n := service.Notification{
		ChannelID:     r.Header.Get("X-Goog-Channel-ID"),
		ResourceID:    r.Header.Get("X-Goog-Resource-ID"),
		ResourceState: r.Header.Get("X-Goog-Resource-State"),
		Token:         r.Header.Get(middleware.ChannelTokenHeader),
	}
	requestID := middleware.RequestID(r.Context())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.log.Error("failed to write webhook ack", "handler", "Webhook", "error", err)
	}

	ctx := context.WithoutCancel(r.Context())
	h.background(func() {
		ctx, cancel := context.WithTimeout(ctx, h.jobTimeout)
		defer cancel()

		err := h.service.HandleNotification(ctx, n)
		switch {
		case err == nil:
		case errors.Is(err, syncerrors.ErrChannelNotFound), errors.Is(err, syncerrors.ErrChannelToken):
			h.log.Warn("Dropping calendar notification",
				"request_id", requestID,
				"channel_id", n.ChannelID,
				"resource_id", n.ResourceID,
				"error", err,
			)
		default:
			h.log.Error("Calendar notification processing failed",
				"request_id", requestID,
				"channel_id", n.ChannelID,
				"resource_state", n.ResourceState,
				"error", err,
			)
		}
	})
}

func (h *CalendarHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/calendar/auth", middleware.RequirePermission(module, "edit", h.AuthURL))
	router.GET("/api/v1/calendar/oauth2callback", h.OAuthCallback)
	router.GET("/api/v1/calendar/status", middleware.RequirePermission(module, "view", h.Status))
	router.GET("/api/v1/calendar/health", middleware.RequirePermission(module, "view", h.Health))
	router.POST("/api/v1/calendar/watch", middleware.RequirePermission(module, "edit", h.Watch))
	router.DELETE("/api/v1/calendar/integration", middleware.RequirePermission(module, "edit", h.Disconnect))
	router.POST("/api/v1/calendar/webhook", middleware.ChannelTokenVerification(h.webhookToken, h.log)(h.Webhook))
}

func (h *CalendarHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
