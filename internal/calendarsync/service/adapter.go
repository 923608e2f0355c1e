package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"agenda/internal/calendarsync/repository"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/timerange"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

const (
	// PropReservationID tags mirrored events with the local reservation id.
	PropReservationID = "agendaReservationId"

	eventCancelled = "cancelled"
	channelType    = "web_hook"
)

// Reservations is what the adapter needs from the reservation lifecycle.
type Reservations interface {
	GetByID(ctx context.Context, tenantID, id string) (*model.ReservationDetails, error)
	FindByExternalEvent(ctx context.Context, tenantID, eventID string) (*model.Reservation, error)
	AttachExternalEvent(ctx context.Context, tenantID, id, eventID string) error
	ApplyExternalCancellation(ctx context.Context, tenantID, id string) error
	ApplyExternalReschedule(ctx context.Context, tenantID, id string, interval timerange.Interval) error
}

// ClientProvider resolves a tenant's calendar client; nil means the tenant
// is not connected and the call should be skipped.
type ClientProvider interface {
	GetClient(ctx context.Context, tenantID string) (EventsAPI, error)
	Invalidate(ctx context.Context, tenantID string)
}

// Adapter mirrors reservations to Google Calendar and folds calendar-side
// changes back. Local state is authoritative: every failure here is logged
// and swallowed by the callers that mutate reservations.
type Adapter struct {
	clients      ClientProvider
	channels     repository.ChannelRepository
	policy       RetryPolicy
	calendarID   string
	location     *time.Location
	timezone     string
	webhookURL   string
	webhookToken string
	log          *logger.Logger
	now          func() time.Time

	mu           sync.RWMutex
	reservations Reservations
}

func NewAdapter(clients ClientProvider, channels repository.ChannelRepository, cfg *config.Config) *Adapter {
	location, err := time.LoadLocation(cfg.CalendarTimezone)
	if err != nil {
		location = time.UTC
	}
	return &Adapter{
		clients:      clients,
		channels:     channels,
		policy:       PolicyFromConfig(cfg),
		calendarID:   cfg.CalendarID,
		location:     location,
		timezone:     location.String(),
		webhookURL:   cfg.CalendarWebhookURL,
		webhookToken: cfg.CalendarWebhookToken,
		log:          cfg.Log,
		now:          time.Now,
	}
}

// Bind sets the reservation lifecycle. It is separate from NewAdapter
// because the lifecycle itself is built with this adapter's dispatcher.
func (a *Adapter) Bind(reservations Reservations) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reservations = reservations
}

func (a *Adapter) lifecycle() (Reservations, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.reservations == nil {
		return nil, errors.New("calendar adapter is not bound to reservations")
	}
	return a.reservations, nil
}

// CreateEvent mirrors r and returns the calendar event id, or "" when the
// tenant is not connected or the call failed.
func (a *Adapter) CreateEvent(ctx context.Context, tenantID string, r *model.ReservationDetails) string {
	client := a.client(ctx, tenantID)
	if client == nil {
		return ""
	}

	event := a.buildEvent(r)
	var created *calendar.Event
	attempts, err := a.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		created, err = client.Insert(ctx, a.calendarID, event)
		return err
	})
	if err != nil {
		a.handleFailure(ctx, "create_event", tenantID, r.ID, attempts, err)
		return ""
	}

	a.log.Info("Calendar event created", "tenant_id", tenantID, "reservation_id", r.ID, "event_id", created.Id)
	return created.Id
}

func (a *Adapter) UpdateEvent(ctx context.Context, tenantID string, r *model.ReservationDetails) bool {
	if r.ExternalCalendarEventID == "" {
		return false
	}
	client := a.client(ctx, tenantID)
	if client == nil {
		return false
	}

	event := a.buildEvent(r)
	attempts, err := a.policy.Do(ctx, func(ctx context.Context) error {
		_, err := client.Update(ctx, a.calendarID, r.ExternalCalendarEventID, event)
		return err
	})
	if err != nil {
		a.handleFailure(ctx, "update_event", tenantID, r.ID, attempts, err)
		return false
	}
	return true
}

// DeleteEvent removes a mirrored event. An event that is already gone
// counts as deleted.
func (a *Adapter) DeleteEvent(ctx context.Context, tenantID, eventID string) bool {
	if eventID == "" {
		return false
	}
	client := a.client(ctx, tenantID)
	if client == nil {
		return false
	}

	attempts, err := a.policy.Do(ctx, func(ctx context.Context) error {
		return client.Delete(ctx, a.calendarID, eventID)
	})
	if err != nil {
		if code := StatusCode(err); code == http.StatusNotFound || code == http.StatusGone {
			return true
		}
		a.handleFailure(ctx, "delete_event", tenantID, eventID, attempts, err)
		return false
	}
	return true
}

// ReconcileInbound fetches one event and applies it to its reservation.
func (a *Adapter) ReconcileInbound(ctx context.Context, tenantID, eventID string) error {
	client := a.client(ctx, tenantID)
	if client == nil {
		return nil
	}

	var event *calendar.Event
	attempts, err := a.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		event, err = client.Get(ctx, a.calendarID, eventID)
		return err
	})
	if err != nil {
		a.handleFailure(ctx, "get_event", tenantID, eventID, attempts, err)
		return err
	}
	return a.reconcileEvent(ctx, tenantID, event)
}

// reconcileEvent cancels or moves the reservation an event mirrors. Events
// that cannot be traced to a reservation were not created here and are
// ignored; client and resource are never changed from the calendar side.
func (a *Adapter) reconcileEvent(ctx context.Context, tenantID string, event *calendar.Event) error {
	reservations, err := a.lifecycle()
	if err != nil {
		return err
	}

	reservationID, err := a.reservationIDFor(ctx, reservations, tenantID, event)
	if err != nil {
		return err
	}
	if reservationID == "" {
		a.log.Debug("Ignoring calendar event not created by this system", "tenant_id", tenantID, "event_id", event.Id)
		return nil
	}

	if event.Status == eventCancelled {
		err = reservations.ApplyExternalCancellation(ctx, tenantID, reservationID)
	} else {
		interval, ok := eventInterval(event)
		if !ok {
			a.log.Debug("Ignoring calendar event without a timed interval", "tenant_id", tenantID, "event_id", event.Id)
			return nil
		}
		err = reservations.ApplyExternalReschedule(ctx, tenantID, reservationID, interval)
	}

	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		a.log.Info("Calendar event refers to a missing reservation", "tenant_id", tenantID, "event_id", event.Id, "reservation_id", reservationID)
		return nil
	}
	return err
}

// reservationIDFor prefers the id tag. Deleted events come back from
// incremental listings without their properties, so those fall back to the
// stored external id.
func (a *Adapter) reservationIDFor(ctx context.Context, reservations Reservations, tenantID string, event *calendar.Event) (string, error) {
	if event.ExtendedProperties != nil {
		if id := event.ExtendedProperties.Private[PropReservationID]; id != "" {
			return id, nil
		}
	}
	if event.Status != eventCancelled || event.Id == "" {
		return "", nil
	}

	reservation, err := reservations.FindByExternalEvent(ctx, tenantID, event.Id)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return "", nil
		}
		return "", err
	}
	return reservation.ID, nil
}

func eventInterval(event *calendar.Event) (timerange.Interval, bool) {
	if event.Start == nil || event.End == nil || event.Start.DateTime == "" || event.End.DateTime == "" {
		return timerange.Interval{}, false
	}
	start, err := time.Parse(time.RFC3339, event.Start.DateTime)
	if err != nil {
		return timerange.Interval{}, false
	}
	end, err := time.Parse(time.RFC3339, event.End.DateTime)
	if err != nil {
		return timerange.Interval{}, false
	}
	interval, err := timerange.New(start.UTC(), end.UTC())
	if err != nil {
		return timerange.Interval{}, false
	}
	return interval, true
}

// SyncChannel pulls every change since the channel's last sync token and
// reconciles it. A token the calendar no longer accepts (410) is dropped
// and the listing restarts from scratch, which also yields a fresh token.
func (a *Adapter) SyncChannel(ctx context.Context, channelID string) error {
	channel, err := a.channels.FindByID(ctx, channelID)
	if err != nil {
		return err
	}
	return a.syncChannel(ctx, channel)
}

func (a *Adapter) syncChannel(ctx context.Context, channel *model.CalendarChannel) error {
	client := a.client(ctx, channel.TenantID)
	if client == nil {
		return nil
	}

	syncToken := channel.SyncToken
	pageToken := ""
	reseeded := false
	changes := 0

	for {
		var page *calendar.Events
		attempts, err := a.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			page, err = client.List(ctx, a.calendarID, ListOptions{SyncToken: syncToken, PageToken: pageToken})
			return err
		})
		if err != nil {
			if StatusCode(err) == http.StatusGone && !reseeded {
				a.log.Warn("Calendar sync token expired, running a full sync",
					"tenant_id", channel.TenantID,
					"channel_id", channel.ID,
				)
				syncToken, pageToken, reseeded = "", "", true
				continue
			}
			a.handleFailure(ctx, "list_events", channel.TenantID, channel.ID, attempts, err)
			return err
		}

		for _, event := range page.Items {
			changes++
			if err := a.reconcileEvent(ctx, channel.TenantID, event); err != nil {
				a.log.Warn("Failed to reconcile calendar event",
					"tenant_id", channel.TenantID,
					"event_id", event.Id,
					"error", err,
				)
			}
		}

		if page.NextPageToken != "" {
			pageToken = page.NextPageToken
			continue
		}

		if page.NextSyncToken != "" {
			if err := a.channels.UpdateSyncToken(ctx, channel.ID, page.NextSyncToken); err != nil {
				return fmt.Errorf("store sync token: %w", err)
			}
		}
		a.log.Info("Calendar channel synced",
			"tenant_id", channel.TenantID,
			"channel_id", channel.ID,
			"changes", changes,
			"full_sync", reseeded || channel.SyncToken == "",
		)
		return nil
	}
}

// seedSyncToken pages through the whole calendar only to obtain a sync
// token, so the first notification reports changes made after Watch.
func (a *Adapter) seedSyncToken(ctx context.Context, client EventsAPI, channel *model.CalendarChannel) error {
	pageToken := ""
	for {
		var page *calendar.Events
		_, err := a.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			page, err = client.List(ctx, a.calendarID, ListOptions{PageToken: pageToken})
			return err
		})
		if err != nil {
			return err
		}
		if page.NextPageToken != "" {
			pageToken = page.NextPageToken
			continue
		}
		channel.SyncToken = page.NextSyncToken
		return a.channels.UpdateSyncToken(ctx, channel.ID, page.NextSyncToken)
	}
}

// Watch registers a push channel for the tenant's calendar and stores the
// mapping the webhook needs to find the tenant again.
func (a *Adapter) Watch(ctx context.Context, tenantID string) (*model.CalendarChannel, error) {
	if a.webhookURL == "" {
		return nil, apperrors.Unavailable("Calendar webhook")
	}

	client, err := a.clients.GetClient(ctx, tenantID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load calendar credentials", err)
	}
	if client == nil {
		return nil, apperrors.PreconditionFailed("Google Calendar integration is not configured", "not_integrated")
	}

	token := a.webhookToken
	if token == "" {
		if token, err = randomToken(); err != nil {
			return nil, apperrors.Internal("Failed to generate channel token", err)
		}
	}

	request := &calendar.Channel{
		Id:      uuid.NewString(),
		Type:    channelType,
		Address: a.webhookURL,
		Token:   token,
	}

	var registered *calendar.Channel
	attempts, err := a.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		registered, err = client.Watch(ctx, a.calendarID, request)
		return err
	})
	if err != nil {
		a.handleFailure(ctx, "watch", tenantID, request.Id, attempts, err)
		return nil, apperrors.Unavailable("Google Calendar")
	}

	channel := &model.CalendarChannel{
		ID:         registered.Id,
		TenantID:   tenantID,
		ResourceID: registered.ResourceId,
		Token:      token,
		CreatedAt:  a.now().UTC(),
	}
	if registered.Expiration > 0 {
		channel.Expiration = time.UnixMilli(registered.Expiration).UTC()
	}
	if err := a.channels.Create(ctx, channel); err != nil {
		return nil, apperrors.Internal("Failed to store calendar channel", err)
	}

	if err := a.seedSyncToken(ctx, client, channel); err != nil {
		a.log.Warn("Failed to seed calendar sync token", "tenant_id", tenantID, "channel_id", channel.ID, "error", err)
	}

	a.log.Info("Calendar watch started",
		"tenant_id", tenantID,
		"channel_id", channel.ID,
		"resource_id", channel.ResourceID,
		"expiration", channel.Expiration,
	)
	return channel, nil
}

// Disconnect stops the tenant's channels and forgets its grant. Stopping is
// best effort; the local records are removed regardless.
func (a *Adapter) Disconnect(ctx context.Context, tenantID string) error {
	channels, err := a.channels.FindByTenant(ctx, tenantID)
	if err != nil {
		return apperrors.Internal("Failed to list calendar channels", err)
	}

	if len(channels) > 0 {
		if client := a.client(ctx, tenantID); client != nil {
			for _, ch := range channels {
				stop := &calendar.Channel{Id: ch.ID, ResourceId: ch.ResourceID}
				if _, err := a.policy.Do(ctx, func(ctx context.Context) error { return client.Stop(ctx, stop) }); err != nil {
					a.log.Warn("Failed to stop calendar channel", "tenant_id", tenantID, "channel_id", ch.ID, "error", err)
				}
			}
		}
	}

	if err := a.channels.DeleteByTenant(ctx, tenantID); err != nil {
		return apperrors.Internal("Failed to delete calendar channels", err)
	}
	a.clients.Invalidate(ctx, tenantID)
	return nil
}

// Health makes one read call and reports the outcome without changing any
// stored state.
func (a *Adapter) Health(ctx context.Context, tenantID string) model.HealthStatus {
	client, err := a.clients.GetClient(ctx, tenantID)
	if err != nil {
		return model.HealthStatus{Status: model.HealthError, Message: err.Error()}
	}
	if client == nil {
		return model.HealthStatus{Status: model.HealthDisconnected, Message: "Google Calendar is not connected"}
	}

	if _, err := client.Calendar(ctx, a.calendarID); err != nil {
		if Classify(err) == Auth {
			return model.HealthStatus{Status: model.HealthDisconnected, Message: "Google Calendar authorization was revoked"}
		}
		return model.HealthStatus{Status: model.HealthError, Message: err.Error()}
	}
	return model.HealthStatus{Status: model.HealthConnected}
}

func (a *Adapter) client(ctx context.Context, tenantID string) EventsAPI {
	client, err := a.clients.GetClient(ctx, tenantID)
	if err != nil {
		a.log.Error("Failed to load calendar client", "tenant_id", tenantID, "error", err)
		return nil
	}
	return client
}

func (a *Adapter) handleFailure(ctx context.Context, operation, tenantID, subject string, attempts int, err error) {
	class := Classify(err)
	a.log.Error("Calendar sync failed",
		"operation", operation,
		"tenant_id", tenantID,
		"subject", subject,
		"attempts", attempts,
		"status_code", StatusCode(err),
		"class", class.String(),
		"error", err,
	)
	if class == Auth {
		a.clients.Invalidate(ctx, tenantID)
	}
}

func (a *Adapter) buildEvent(r *model.ReservationDetails) *calendar.Event {
	clientName, resourceName := r.ClientID, r.ResourceID
	if r.Client != nil && r.Client.FullName != "" {
		clientName = r.Client.FullName
	}
	if r.Resource != nil && r.Resource.Name != "" {
		resourceName = r.Resource.Name
	}

	status := "confirmed"
	if r.Status == model.StatusPending {
		status = "tentative"
	}

	return &calendar.Event{
		Summary:     "Agendamento: " + clientName,
		Location:    resourceName,
		Description: fmt.Sprintf("Cliente: %s\nRecurso: %s\nStatus: %s", clientName, resourceName, r.Status),
		Status:      status,
		Start: &calendar.EventDateTime{
			DateTime: r.StartTime.In(a.location).Format(time.RFC3339),
			TimeZone: a.timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: r.EndTime.In(a.location).Format(time.RFC3339),
			TimeZone: a.timezone,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{PropReservationID: r.ID},
		},
	}
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
