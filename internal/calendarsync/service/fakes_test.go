package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	syncerrors "agenda/internal/calendarsync/errors"
	"agenda/pkg/client"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/timerange"

	"google.golang.org/api/calendar/v3"
)

func testConfig() *config.Config {
	return &config.Config{
		CalendarID:          "primary",
		CalendarTimezone:    "UTC",
		CalendarWebhookURL:  "https://agenda.example.com/api/v1/calendar/webhook",
		SyncMaxAttempts:     3,
		SyncBaseDelay:       time.Millisecond,
		SyncMaxDelay:        2 * time.Millisecond,
		SyncMultiplier:      2,
		SyncJobTimeout:      time.Second,
		CalendarStateSecret: "0123456789abcdef0123456789abcdef",
		Log:                 logger.Discard(),
		Client:              &client.Client{HTTP: http.DefaultClient},
	}
}

type fakeEvents struct {
	insertFunc   func(event *calendar.Event) (*calendar.Event, error)
	updateFunc   func(eventID string, event *calendar.Event) (*calendar.Event, error)
	deleteFunc   func(eventID string) error
	getFunc      func(eventID string) (*calendar.Event, error)
	listFunc     func(opts ListOptions) (*calendar.Events, error)
	watchFunc    func(channel *calendar.Channel) (*calendar.Channel, error)
	stopFunc     func(channel *calendar.Channel) error
	calendarFunc func(calendarID string) (*calendar.Calendar, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeEvents) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEvents) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeEvents) Insert(_ context.Context, _ string, event *calendar.Event) (*calendar.Event, error) {
	f.record("insert")
	if f.insertFunc != nil {
		return f.insertFunc(event)
	}
	return &calendar.Event{Id: "evt-1"}, nil
}

func (f *fakeEvents) Update(_ context.Context, _, eventID string, event *calendar.Event) (*calendar.Event, error) {
	f.record("update")
	if f.updateFunc != nil {
		return f.updateFunc(eventID, event)
	}
	return event, nil
}

func (f *fakeEvents) Delete(_ context.Context, _, eventID string) error {
	f.record("delete")
	if f.deleteFunc != nil {
		return f.deleteFunc(eventID)
	}
	return nil
}

func (f *fakeEvents) Get(_ context.Context, _, eventID string) (*calendar.Event, error) {
	f.record("get")
	if f.getFunc != nil {
		return f.getFunc(eventID)
	}
	return &calendar.Event{Id: eventID}, nil
}

func (f *fakeEvents) List(_ context.Context, _ string, opts ListOptions) (*calendar.Events, error) {
	f.record("list")
	if f.listFunc != nil {
		return f.listFunc(opts)
	}
	return &calendar.Events{NextSyncToken: "sync-1"}, nil
}

func (f *fakeEvents) Watch(_ context.Context, _ string, channel *calendar.Channel) (*calendar.Channel, error) {
	f.record("watch")
	if f.watchFunc != nil {
		return f.watchFunc(channel)
	}
	return &calendar.Channel{Id: channel.Id, ResourceId: "res-1", Expiration: 1767225600000}, nil
}

func (f *fakeEvents) Stop(_ context.Context, channel *calendar.Channel) error {
	f.record("stop")
	if f.stopFunc != nil {
		return f.stopFunc(channel)
	}
	return nil
}

func (f *fakeEvents) Calendar(_ context.Context, calendarID string) (*calendar.Calendar, error) {
	f.record("calendar")
	if f.calendarFunc != nil {
		return f.calendarFunc(calendarID)
	}
	return &calendar.Calendar{Id: calendarID}, nil
}

// fakeClients hands out one events client until the tenant is invalidated.
type fakeClients struct {
	events EventsAPI
	err    error

	mu          sync.Mutex
	invalidated []string
}

func (f *fakeClients) GetClient(_ context.Context, tenantID string) (EventsAPI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.invalidated {
		if t == tenantID {
			return nil, nil
		}
	}
	return f.events, nil
}

func (f *fakeClients) Invalidate(_ context.Context, tenantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, tenantID)
}

func (f *fakeClients) invalidations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.invalidated)
}

type fakeChannels struct {
	mu       sync.Mutex
	channels map[string]*model.CalendarChannel
}

func newFakeChannels(channels ...*model.CalendarChannel) *fakeChannels {
	f := &fakeChannels{channels: make(map[string]*model.CalendarChannel)}
	for _, ch := range channels {
		f.channels[ch.ID] = ch
	}
	return f
}

func (f *fakeChannels) Create(_ context.Context, channel *model.CalendarChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *channel
	f.channels[channel.ID] = &stored
	return nil
}

func (f *fakeChannels) FindByID(_ context.Context, id string) (*model.CalendarChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok {
		return nil, syncerrors.ErrChannelNotFound
	}
	copied := *ch
	return &copied, nil
}

func (f *fakeChannels) FindByTenant(_ context.Context, tenantID string) ([]*model.CalendarChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.CalendarChannel
	for _, ch := range f.channels {
		if ch.TenantID == tenantID {
			copied := *ch
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeChannels) UpdateSyncToken(_ context.Context, id, syncToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok {
		return syncerrors.ErrChannelNotFound
	}
	ch.SyncToken = syncToken
	return nil
}

func (f *fakeChannels) DeleteByTenant(_ context.Context, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.channels {
		if ch.TenantID == tenantID {
			delete(f.channels, id)
		}
	}
	return nil
}

func (f *fakeChannels) syncToken(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[id]; ok {
		return ch.SyncToken
	}
	return ""
}

// fakeReservations records what the adapter asks the lifecycle to do.
type fakeReservations struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation

	attached    map[string]string
	cancelled   []string
	rescheduled map[string]timerange.Interval
}

func newFakeReservations(reservations ...*model.Reservation) *fakeReservations {
	f := &fakeReservations{
		reservations: make(map[string]*model.Reservation),
		attached:     make(map[string]string),
		rescheduled:  make(map[string]timerange.Interval),
	}
	for _, r := range reservations {
		f.reservations[r.ID] = r
	}
	return f
}

func (f *fakeReservations) GetByID(_ context.Context, _, id string) (*model.ReservationDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, apperrors.NotFoundWithID("Reservation", id)
	}
	copied := *r
	return &model.ReservationDetails{
		Reservation: &copied,
		Resource:    &model.ResourceSummary{ID: r.ResourceID, Name: "Quadra 1"},
		Client:      &model.ClientSummary{ID: r.ClientID, FullName: "Jane Doe"},
	}, nil
}

func (f *fakeReservations) FindByExternalEvent(_ context.Context, _, eventID string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.ExternalCalendarEventID == eventID {
			copied := *r
			return &copied, nil
		}
	}
	return nil, apperrors.NotFoundWithID("Reservation", eventID)
}

func (f *fakeReservations) AttachExternalEvent(_ context.Context, _, id, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	r.ExternalCalendarEventID = eventID
	f.attached[id] = eventID
	return nil
}

func (f *fakeReservations) ApplyExternalCancellation(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[id]; !ok {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeReservations) ApplyExternalReschedule(_ context.Context, _, id string, interval timerange.Interval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[id]; !ok {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	f.rescheduled[id] = interval
	return nil
}

func newTestAdapter(events EventsAPI, channels *fakeChannels, reservations *fakeReservations) (*Adapter, *fakeClients) {
	clients := &fakeClients{events: events}
	adapter := NewAdapter(clients, channels, testConfig())
	adapter.Bind(reservations)
	return adapter, clients
}

func taggedEvent(id, reservationID string) *calendar.Event {
	return &calendar.Event{
		Id:     id,
		Status: "confirmed",
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{PropReservationID: reservationID},
		},
	}
}
