package service

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const listPageSize = 250

// EventsAPI is the slice of the Google Calendar API the adapter uses. One
// value is bound to one tenant's credentials.
type EventsAPI interface {
	Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	Update(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, calendarID, eventID string) error
	Get(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
	List(ctx context.Context, calendarID string, opts ListOptions) (*calendar.Events, error)
	Watch(ctx context.Context, calendarID string, channel *calendar.Channel) (*calendar.Channel, error)
	Stop(ctx context.Context, channel *calendar.Channel) error
	Calendar(ctx context.Context, calendarID string) (*calendar.Calendar, error)
}

// ListOptions selects an incremental listing when SyncToken is set and a full
// listing otherwise.
type ListOptions struct {
	SyncToken string
	PageToken string
}

// ClientFactory builds an EventsAPI on top of an authorized HTTP client.
type ClientFactory func(ctx context.Context, httpClient *http.Client) (EventsAPI, error)

func NewGoogleClient(ctx context.Context, httpClient *http.Client) (EventsAPI, error) {
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &googleEvents{svc: svc}, nil
}

type googleEvents struct {
	svc *calendar.Service
}

func (g *googleEvents) Insert(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return g.svc.Events.Insert(calendarID, event).Context(ctx).Do()
}

func (g *googleEvents) Update(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	return g.svc.Events.Update(calendarID, eventID, event).Context(ctx).Do()
}

func (g *googleEvents) Delete(ctx context.Context, calendarID, eventID string) error {
	return g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
}

func (g *googleEvents) Get(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	return g.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
}

func (g *googleEvents) List(ctx context.Context, calendarID string, opts ListOptions) (*calendar.Events, error) {
	call := g.svc.Events.List(calendarID).
		ShowDeleted(true).
		SingleEvents(true).
		MaxResults(listPageSize).
		Context(ctx)
	if opts.SyncToken != "" {
		call = call.SyncToken(opts.SyncToken)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	return call.Do()
}

func (g *googleEvents) Watch(ctx context.Context, calendarID string, channel *calendar.Channel) (*calendar.Channel, error) {
	return g.svc.Events.Watch(calendarID, channel).Context(ctx).Do()
}

func (g *googleEvents) Stop(ctx context.Context, channel *calendar.Channel) error {
	return g.svc.Channels.Stop(channel).Context(ctx).Do()
}

func (g *googleEvents) Calendar(ctx context.Context, calendarID string) (*calendar.Calendar, error) {
	return g.svc.Calendars.Get(calendarID).Context(ctx).Do()
}
