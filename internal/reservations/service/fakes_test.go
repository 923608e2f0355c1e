package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	clientserrors "agenda/internal/clients/errors"
	reservationserrors "agenda/internal/reservations/errors"
	"agenda/internal/reservations/validator"
	resourceserrors "agenda/internal/resources/errors"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/timerange"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const tenant = "tenant-1"

var (
	resourceID = "64b7f0f0f0f0f0f0f0f0f0a1"
	clientID   = "64b7f0f0f0f0f0f0f0f0f0c1"
	fixedNow   = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
)

// ────────────────────────────────────────────────
// In-memory stores
// ────────────────────────────────────────────────

type memoryReservations struct {
	mu   sync.Mutex
	rows map[string]*model.Reservation
}

func newMemoryReservations() *memoryReservations {
	return &memoryReservations{rows: make(map[string]*model.Reservation)}
}

func (m *memoryReservations) put(r *model.Reservation) {
	if r.ID == "" {
		r.ID = primitive.NewObjectID().Hex()
	}
	stored := *r
	m.rows[r.ID] = &stored
}

func (m *memoryReservations) get(id string) *model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *memoryReservations) all() []*model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Reservation, 0, len(m.rows))
	for _, r := range m.rows {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

func (m *memoryReservations) Create(ctx context.Context, r *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(r)
	return nil
}

func (m *memoryReservations) CreateMany(ctx context.Context, rs []*model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rs {
		m.put(r)
	}
	return nil
}

func (m *memoryReservations) FindByID(ctx context.Context, tenantID, id string) (*model.Reservation, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, reservationserrors.ErrInvalidID
	}
	r := m.get(id)
	if r == nil || r.TenantID != tenantID {
		return nil, reservationserrors.ErrNotFound
	}
	return r, nil
}

func (m *memoryReservations) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, id := range ids {
		if r := m.get(id); r != nil && r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryReservations) FindAll(ctx context.Context, tenantID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range m.all() {
		if r.TenantID == tenantID && (filter.ResourceID == "" || r.ResourceID == filter.ResourceID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryReservations) Count(ctx context.Context, tenantID string, filter model.ReservationFilter) (int64, error) {
	rows, _ := m.FindAll(ctx, tenantID, filter, 0, 0)
	return int64(len(rows)), nil
}

func (m *memoryReservations) FindOverlapping(ctx context.Context, resourceID string, interval timerange.Interval, excludeID string) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range m.all() {
		if r.ResourceID != resourceID || r.ID == excludeID || r.Status == model.StatusCancelled {
			continue
		}
		if r.Interval().Overlaps(interval) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryReservations) FindByGroup(ctx context.Context, groupID string) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range m.all() {
		if r.RecurringGroupID == groupID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryReservations) FindUpcomingByClient(ctx context.Context, tenantID, clientID string, now time.Time, limit int) ([]*model.Reservation, error) {
	return nil, nil
}

func (m *memoryReservations) Update(ctx context.Context, r *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[r.ID]
	if !ok || stored.Status == model.StatusCancelled {
		return reservationserrors.ErrNotFound
	}
	m.put(r)
	return nil
}

func (m *memoryReservations) UpdateStatusMany(ctx context.Context, ids []string, status model.ReservationStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for _, id := range ids {
		if r, ok := m.rows[id]; ok && r.Status != status {
			r.Status = status
			changed++
		}
	}
	return changed, nil
}

func (m *memoryReservations) SetExternalEventID(ctx context.Context, tenantID, id, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.TenantID != tenantID {
		return reservationserrors.ErrNotFound
	}
	r.ExternalCalendarEventID = eventID
	return nil
}

func (m *memoryReservations) FindByExternalEventID(ctx context.Context, tenantID, eventID string) (*model.Reservation, error) {
	for _, r := range m.all() {
		if r.TenantID == tenantID && r.ExternalCalendarEventID == eventID {
			return r, nil
		}
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *memoryReservations) CountActiveFuture(ctx context.Context, tenantID, field, value string, now time.Time) (int64, error) {
	return 0, nil
}

func (m *memoryReservations) IDsBy(ctx context.Context, tenantID, field, value string) ([]string, error) {
	return nil, nil
}

func (m *memoryReservations) DeleteBy(ctx context.Context, tenantID, field, value string) (int64, error) {
	return 0, nil
}

func (m *memoryReservations) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type memoryGroups struct {
	mu     sync.Mutex
	groups map[string]*model.RecurringGroup
}

func newMemoryGroups() *memoryGroups {
	return &memoryGroups{groups: make(map[string]*model.RecurringGroup)}
}

func (m *memoryGroups) Create(ctx context.Context, g *model.RecurringGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = primitive.NewObjectID().Hex()
	m.groups[g.ID] = g
	return nil
}

func (m *memoryGroups) FindByID(ctx context.Context, id string) (*model.RecurringGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, reservationserrors.ErrGroupNotFound
	}
	return g, nil
}

func (m *memoryGroups) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, id)
	return nil
}

func (m *memoryGroups) DeleteBy(ctx context.Context, tenantID, field, value string) error {
	return nil
}

func (m *memoryGroups) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups)
}

type memoryLocks struct {
	mu    sync.Mutex
	locks map[string]model.ReservationLock
	// beforeConfirm runs ahead of Confirm, while nothing is locked.
	beforeConfirm func()
}

func newMemoryLocks() *memoryLocks {
	return &memoryLocks{locks: make(map[string]model.ReservationLock)}
}

func (m *memoryLocks) Acquire(ctx context.Context, lock *model.ReservationLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[lock.ID]; held {
		return reservationserrors.ErrLockHeld
	}
	m.locks[lock.ID] = *lock
	return nil
}

func (m *memoryLocks) TakeOverExpired(ctx context.Context, lock *model.ReservationLock, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, held := m.locks[lock.ID]
	if held && current.ExpiresAt.After(now) {
		return false, nil
	}
	m.locks[lock.ID] = *lock
	return true, nil
}

func (m *memoryLocks) Confirm(ctx context.Context, lockID, owner string, now time.Time) error {
	if m.beforeConfirm != nil {
		m.beforeConfirm()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.locks[lockID]
	if !ok || current.Owner != owner {
		return reservationserrors.ErrLockLost
	}
	current.ConfirmedAt = now
	m.locks[lockID] = current
	return nil
}

func (m *memoryLocks) Release(ctx context.Context, lockID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.locks[lockID]; ok && current.Owner == owner {
		delete(m.locks, lockID)
	}
	return nil
}

func (m *memoryLocks) held(lockID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[lockID]
	return ok
}

type memoryTabs struct {
	open map[string]int64
}

func (m *memoryTabs) CountOpenByReservations(ctx context.Context, ids []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, id := range ids {
		if n := m.open[id]; n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (m *memoryTabs) CountOpenByClient(ctx context.Context, tenantID, clientID string) (int64, error) {
	return 0, nil
}

func (m *memoryTabs) SumPaidByClient(ctx context.Context, tenantID, clientID string) (float64, error) {
	return 0, nil
}

func (m *memoryTabs) DeleteByReservations(ctx context.Context, ids []string) error { return nil }

func (m *memoryTabs) DeleteByClient(ctx context.Context, tenantID, clientID string) error {
	return nil
}

type lookups struct {
	resources map[string]*model.Resource
	clients   map[string]*model.Client
}

func (l *lookups) resourceLookup() ResourceLookup { return resourceLookup{l} }
func (l *lookups) clientLookup() ClientLookup     { return clientLookup{l} }

type resourceLookup struct{ l *lookups }

func (r resourceLookup) FindByID(ctx context.Context, tenantID, id string) (*model.Resource, error) {
	res, ok := r.l.resources[id]
	if !ok || res.TenantID != tenantID {
		return nil, resourceserrors.ErrNotFound
	}
	return res, nil
}

func (r resourceLookup) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Resource, error) {
	var out []*model.Resource
	for _, id := range ids {
		if res, err := r.FindByID(ctx, tenantID, id); err == nil {
			out = append(out, res)
		}
	}
	return out, nil
}

type clientLookup struct{ l *lookups }

func (c clientLookup) FindByID(ctx context.Context, tenantID, id string) (*model.Client, error) {
	cl, ok := c.l.clients[id]
	if !ok || cl.TenantID != tenantID {
		return nil, clientserrors.ErrNotFound
	}
	return cl, nil
}

func (c clientLookup) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*model.Client, error) {
	var out []*model.Client
	for _, id := range ids {
		if cl, err := c.FindByID(ctx, tenantID, id); err == nil {
			out = append(out, cl)
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []*model.SyncJob
	err  error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, job *model.SyncJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return d.err
}

func (d *recordingDispatcher) operations() []model.SyncOperation {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := make([]model.SyncOperation, 0, len(d.jobs))
	for _, j := range d.jobs {
		ops = append(ops, j.Operation)
	}
	slices.Sort(ops)
	return ops
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type fixture struct {
	service      *reservationService
	reservations *memoryReservations
	groups       *memoryGroups
	locks        *memoryLocks
	tabs         *memoryTabs
	sync         *recordingDispatcher
}

func testConfig() *config.Config {
	return &config.Config{
		Log:                       logger.Discard(),
		ReservationLockTTL:        30 * time.Second,
		ReservationLockAttempts:   3,
		ReservationLockRetryDelay: time.Millisecond,
		MaxRecurringOccurrences:   52,
	}
}

func newFixture(t *testing.T, configure ...func(*config.Config)) *fixture {
	t.Helper()

	f := &fixture{
		reservations: newMemoryReservations(),
		groups:       newMemoryGroups(),
		locks:        newMemoryLocks(),
		tabs:         &memoryTabs{open: map[string]int64{}},
		sync:         &recordingDispatcher{},
	}
	refs := &lookups{
		resources: map[string]*model.Resource{
			resourceID: {ID: resourceID, TenantID: tenant, Name: "Quadra 1", PricePerHour: 100},
		},
		clients: map[string]*model.Client{
			clientID: {ID: clientID, TenantID: tenant, FullName: "Jane Doe", Phone: "+5511999990000"},
		},
	}

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}
	svc := NewReservationService(Repositories{
		Reservations: f.reservations,
		Groups:       f.groups,
		Locks:        f.locks,
		Tabs:         f.tabs,
		Resources:    refs.resourceLookup(),
		Clients:      refs.clientLookup(),
	}, validator.NewReservationValidator(cfg.Log), f.sync, cfg)

	f.service = svc.(*reservationService)
	f.service.now = func() time.Time { return fixedNow }
	return f
}

// seed stores a confirmed reservation on the test resource directly.
func (f *fixture) seed(start time.Time, hours float64) *model.Reservation {
	r := &model.Reservation{
		TenantID:   tenant,
		ResourceID: resourceID,
		ClientID:   clientID,
		StartTime:  start,
		EndTime:    start.Add(timerange.HoursToDuration(hours)),
		Status:     model.StatusConfirmed,
	}
	_ = f.reservations.Create(context.Background(), r)
	return r
}
