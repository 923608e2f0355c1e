package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	syncerrors "agenda/internal/calendarsync/errors"
	"agenda/pkg/kafka"
	"agenda/pkg/model"
)

func newTestProcessor(events *fakeEvents, reservations *fakeReservations) *Processor {
	adapter, _ := newTestAdapter(events, newFakeChannels(), reservations)
	return NewProcessor(adapter, testConfig().Log)
}

func TestProcess_CreateStoresEventID(t *testing.T) {
	events := &fakeEvents{}
	reservations := newFakeReservations(reservation("r1", model.StatusConfirmed))
	processor := newTestProcessor(events, reservations)

	job := &model.SyncJob{ID: "j1", Operation: model.SyncCreate, TenantID: tenant, ReservationID: "r1"}
	if err := processor.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := reservations.attached["r1"]; got != "evt-1" {
		t.Errorf("attached event = %q, want evt-1", got)
	}
}

func TestProcess_CreateSkips(t *testing.T) {
	synced := reservation("synced", model.StatusConfirmed)
	synced.ExternalCalendarEventID = "evt-0"
	recurring := reservation("recurring", model.StatusConfirmed)
	recurring.IsRecurring = true
	cancelled := reservation("cancelled", model.StatusCancelled)

	for _, id := range []string{"synced", "recurring", "cancelled", "missing"} {
		t.Run(id, func(t *testing.T) {
			events := &fakeEvents{}
			processor := newTestProcessor(events, newFakeReservations(synced, recurring, cancelled))

			job := &model.SyncJob{ID: "j1", Operation: model.SyncCreate, TenantID: tenant, ReservationID: id}
			if err := processor.Process(context.Background(), job); err != nil {
				t.Fatalf("Process: %v", err)
			}
			if events.count("insert") != 0 {
				t.Errorf("insert calls = %d, want 0", events.count("insert"))
			}
		})
	}
}

func TestProcess_UpdateAndDelete(t *testing.T) {
	synced := reservation("r1", model.StatusConfirmed)
	synced.ExternalCalendarEventID = "evt-1"
	events := &fakeEvents{}
	processor := newTestProcessor(events, newFakeReservations(synced))

	update := &model.SyncJob{ID: "j1", Operation: model.SyncUpdate, TenantID: tenant, ReservationID: "r1"}
	if err := processor.Process(context.Background(), update); err != nil {
		t.Fatalf("update: %v", err)
	}
	remove := &model.SyncJob{ID: "j2", Operation: model.SyncDelete, TenantID: tenant, ReservationID: "r1", ExternalEventID: "evt-1"}
	if err := processor.Process(context.Background(), remove); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if events.count("update") != 1 || events.count("delete") != 1 {
		t.Errorf("calls = %v", events.calls)
	}
}

func TestProcess_UnknownOperation(t *testing.T) {
	processor := newTestProcessor(&fakeEvents{}, newFakeReservations())
	err := processor.Process(context.Background(), &model.SyncJob{Operation: "archive", TenantID: tenant})
	if !errors.Is(err, syncerrors.ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}

type processorFunc func(ctx context.Context, job *model.SyncJob) error

func (f processorFunc) Process(ctx context.Context, job *model.SyncJob) error { return f(ctx, job) }

func TestInlineDispatcher_DetachesFromRequest(t *testing.T) {
	var (
		mu          sync.Mutex
		ctxErr      error
		hasDeadline bool
	)
	dispatcher := NewInlineDispatcher(processorFunc(func(ctx context.Context, _ *model.SyncJob) error {
		mu.Lock()
		defer mu.Unlock()
		ctxErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
		return nil
	}), testConfig())

	requestCtx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := dispatcher.Dispatch(requestCtx, &model.SyncJob{ID: "j1"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	dispatcher.Stop()

	mu.Lock()
	defer mu.Unlock()
	if ctxErr != nil {
		t.Errorf("job context inherited the request cancellation: %v", ctxErr)
	}
	if !hasDeadline {
		t.Error("job context should be bounded by the job timeout")
	}
}

type capturePublisher struct {
	messages []kafka.Message
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, msg kafka.Message) error {
	p.messages = append(p.messages, msg)
	return p.err
}

func TestKafkaDispatcher_KeysByReservation(t *testing.T) {
	publisher := &capturePublisher{}
	dispatcher := NewKafkaDispatcher(publisher)

	job := &model.SyncJob{
		ID:            "job-1",
		Operation:     model.SyncUpdate,
		TenantID:      tenant,
		ReservationID: "r1",
		EnqueuedAt:    time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	if err := dispatcher.Dispatch(context.Background(), job); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(publisher.messages))
	}
	msg := publisher.messages[0]
	if msg.Key != "r1" {
		t.Errorf("key = %q, want r1", msg.Key)
	}
	if msg.EventID() != "job-1" || msg.EventType() != "calendar.sync.update" {
		t.Errorf("headers = %v", msg.Headers)
	}

	var decoded model.SyncJob
	if err := msg.DecodeValue(&decoded); err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if decoded.Operation != model.SyncUpdate || decoded.TenantID != tenant || !decoded.EnqueuedAt.Equal(job.EnqueuedAt) {
		t.Errorf("decoded job = %+v", decoded)
	}
}

func TestJobHandler_Classification(t *testing.T) {
	valid, err := kafka.Encode(kafka.Envelope{Key: "r1"},
		model.SyncJob{ID: "j1", Operation: model.SyncCreate, TenantID: tenant, ReservationID: "r1"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := []struct {
		name    string
		msg     kafka.Message
		result  error
		want    kafka.ErrorType
		wantNil bool
	}{
		{name: "success", msg: valid, wantNil: true},
		{name: "bad payload", msg: kafka.Message{Key: "r1", Value: []byte("{not json")}, want: kafka.ErrorTypePermanent},
		{name: "no target", msg: kafka.Message{Key: "r1", Value: []byte(`{"operation":"create"}`)}, want: kafka.ErrorTypePermanent},
		{name: "unknown operation", msg: valid, result: syncerrors.ErrUnknownOperation, want: kafka.ErrorTypePermanent},
		{name: "store failure", msg: valid, result: errors.New("mongo unavailable"), want: kafka.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewJobHandler(processorFunc(func(context.Context, *model.SyncJob) error {
				return tt.result
			}), time.Second)

			err := handler(context.Background(), tt.msg)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := kafka.ClassifyError(err); got != tt.want {
				t.Errorf("class = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}
