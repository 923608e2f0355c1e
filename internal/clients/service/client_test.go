package service

import (
	"context"
	"testing"
	"time"

	clientserrors "agenda/internal/clients/errors"
	"agenda/internal/clients/validator"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockClientRepository struct {
	stored  *model.Client
	created *model.Client
	calls   *[]string
}

func (m *mockClientRepository) Create(ctx context.Context, c *model.Client) error {
	c.ID = "64b7f0f0f0f0f0f0f0f0f0f2"
	m.created = c
	return nil
}

func (m *mockClientRepository) FindByID(ctx context.Context, tenantID, id string) (*model.Client, error) {
	if m.stored == nil || m.stored.TenantID != tenantID || m.stored.ID != id {
		return nil, clientserrors.ErrNotFound
	}
	c := *m.stored
	return &c, nil
}

func (m *mockClientRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Client, error) {
	return nil, nil
}

func (m *mockClientRepository) FindAll(ctx context.Context, tenantID, search string, limit int, offset int64) ([]*model.Client, error) {
	return nil, nil
}

func (m *mockClientRepository) Count(ctx context.Context, tenantID, search string) (int64, error) {
	return 0, nil
}

func (m *mockClientRepository) Update(ctx context.Context, c *model.Client) error {
	m.stored = c
	return nil
}

func (m *mockClientRepository) Delete(ctx context.Context, tenantID, id string) error {
	*m.calls = append(*m.calls, "client")
	return nil
}

func (m *mockClientRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockReservations struct {
	active        int64
	total         int64
	upcoming      []*model.Reservation
	upcomingLimit int
	page          []*model.Reservation
	filter        model.ReservationFilter
	calls         *[]string
}

func (m *mockReservations) FindAll(ctx context.Context, tenantID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error) {
	m.filter = filter
	return m.page, nil
}

func (m *mockReservations) Count(ctx context.Context, tenantID string, filter model.ReservationFilter) (int64, error) {
	return m.total, nil
}

func (m *mockReservations) FindUpcomingByClient(ctx context.Context, tenantID, clientID string, now time.Time, limit int) ([]*model.Reservation, error) {
	m.upcomingLimit = limit
	return m.upcoming, nil
}

func (m *mockReservations) CountActiveFuture(ctx context.Context, tenantID, field, value string, now time.Time) (int64, error) {
	return m.active, nil
}

func (m *mockReservations) DeleteBy(ctx context.Context, tenantID, field, value string) (int64, error) {
	*m.calls = append(*m.calls, "reservations")
	return 0, nil
}

type mockGroups struct{ calls *[]string }

func (m *mockGroups) DeleteBy(ctx context.Context, tenantID, field, value string) error {
	*m.calls = append(*m.calls, "groups")
	return nil
}

type mockTabs struct {
	open  int64
	paid  float64
	calls *[]string
}

func (m *mockTabs) CountOpenByClient(ctx context.Context, tenantID, clientID string) (int64, error) {
	return m.open, nil
}

func (m *mockTabs) SumPaidByClient(ctx context.Context, tenantID, clientID string) (float64, error) {
	return m.paid, nil
}

func (m *mockTabs) DeleteByClient(ctx context.Context, tenantID, clientID string) error {
	*m.calls = append(*m.calls, "tabs")
	return nil
}

const (
	tenantID = "tenant-1"
	clientID = "64b7f0f0f0f0f0f0f0f0f0f2"
)

type fixture struct {
	svc   ClientService
	repo  *mockClientRepository
	res   *mockReservations
	tabs  *mockTabs
	calls *[]string
}

func newFixture() *fixture {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{
		Log:                log,
		ReadTimeout:        5 * time.Second,
		DefaultPhoneRegion: "BR",
	}

	calls := &[]string{}
	f := &fixture{
		repo: &mockClientRepository{
			calls: calls,
			stored: &model.Client{
				ID:       clientID,
				TenantID: tenantID,
				FullName: "Jane Doe",
				Phone:    "+5511987654321",
			},
		},
		res:   &mockReservations{calls: calls},
		tabs:  &mockTabs{calls: calls},
		calls: calls,
	}
	f.svc = NewClientService(f.repo, f.res, &mockGroups{calls: calls}, f.tabs, validator.NewClientValidator(log), cfg)
	return f
}

// ────────────────────────────────────────────────
// Create / Update
// ────────────────────────────────────────────────

func TestCreate_NormalizesFields(t *testing.T) {
	f := newFixture()

	client := &model.Client{
		FullName: "  Jane   Doe ",
		Phone:    "(11) 98765-4321",
		Email:    " Jane@Example.com ",
		TaxID:    "123.456.789-09",
	}
	if err := f.svc.Create(context.Background(), tenantID, client); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.FullName != "Jane Doe" {
		t.Errorf("full_name = %q", client.FullName)
	}
	if client.Phone != "+5511987654321" {
		t.Errorf("phone = %q, want E.164", client.Phone)
	}
	if client.Email != "jane@example.com" {
		t.Errorf("email = %q", client.Email)
	}
	if client.TaxID != "12345678909" {
		t.Errorf("tax_id = %q", client.TaxID)
	}
	if client.TenantID != tenantID {
		t.Errorf("tenant = %q", client.TenantID)
	}
}

func TestCreate_RejectsUnparseablePhone(t *testing.T) {
	f := newFixture()

	err := f.svc.Create(context.Background(), tenantID, &model.Client{FullName: "Jane Doe", Phone: "12345"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if f.repo.created != nil {
		t.Error("invalid client must not be stored")
	}
}

func TestUpdate_ForeignTenantIsNotFound(t *testing.T) {
	f := newFixture()

	name := "Other"
	_, err := f.svc.Update(context.Background(), "tenant-2", clientID, &model.ClientUpdate{FullName: &name})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestUpdate_KeepsUntouchedFields(t *testing.T) {
	f := newFixture()

	email := "jane@example.com"
	updated, err := f.svc.Update(context.Background(), tenantID, clientID, &model.ClientUpdate{Email: &email})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Phone != "+5511987654321" || updated.FullName != "Jane Doe" {
		t.Errorf("update changed untouched fields: %+v", updated)
	}
}

// ────────────────────────────────────────────────
// Delete
// ────────────────────────────────────────────────

func TestDelete_Preconditions(t *testing.T) {
	tests := []struct {
		name       string
		active     int64
		open       int64
		wantReason string
	}{
		{"active reservations", 1, 0, "active_reservations"},
		{"open tabs", 0, 2, "open_tabs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.res.active = tt.active
			f.tabs.open = tt.open

			err := f.svc.Delete(context.Background(), tenantID, clientID)
			if !apperrors.HasCode(err, apperrors.CodePreconditionFailed) {
				t.Fatalf("expected PRECONDITION_FAILED, got %v", err)
			}
			if reason := apperrors.AsAppError(err).Details["reason"]; reason != tt.wantReason {
				t.Errorf("reason = %v, want %s", reason, tt.wantReason)
			}
			if len(*f.calls) != 0 {
				t.Errorf("nothing may be deleted, got %v", *f.calls)
			}
		})
	}
}

func TestDelete_CascadesInOrder(t *testing.T) {
	f := newFixture()

	if err := f.svc.Delete(context.Background(), tenantID, clientID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"tabs", "reservations", "groups", "client"}
	got := *f.calls
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

// ────────────────────────────────────────────────
// History
// ────────────────────────────────────────────────

func TestHistory_AggregatesStatistics(t *testing.T) {
	f := newFixture()
	f.res.total = 7
	f.res.upcoming = []*model.Reservation{{ID: "u1"}}
	f.res.page = []*model.Reservation{{ID: "h1"}, {ID: "h2"}}
	f.tabs.paid = 350.5

	history, err := f.svc.History(context.Background(), tenantID, clientID, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if history.Statistics.TotalReservations != 7 || history.TotalCount != 7 {
		t.Errorf("totals = %d/%d, want 7", history.Statistics.TotalReservations, history.TotalCount)
	}
	if history.Statistics.TotalSpent != 350.5 {
		t.Errorf("total_spent = %v, want 350.5", history.Statistics.TotalSpent)
	}
	if len(history.Upcoming) != 1 || len(history.History) != 2 {
		t.Errorf("upcoming=%d history=%d", len(history.Upcoming), len(history.History))
	}
	if f.res.filter.ClientID != clientID {
		t.Errorf("history must filter by client, got %+v", f.res.filter)
	}
	if f.res.upcomingLimit != 3 {
		t.Errorf("upcoming limit = %d, want 3", f.res.upcomingLimit)
	}
	if history.Limit != 2 {
		t.Errorf("limit = %d, want 2", history.Limit)
	}
}

func TestHistory_EmptyListsAreNotNull(t *testing.T) {
	f := newFixture()

	history, err := f.svc.History(context.Background(), tenantID, clientID, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if history.Upcoming == nil || history.History == nil {
		t.Error("empty lists should serialize as []")
	}
}
