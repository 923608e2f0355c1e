package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agenda/pkg/logger"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

func testLogger() *logger.Logger {
	return logger.Discard()
}

// ────────────────────────────────────────────────
// Identity and permissions
// ────────────────────────────────────────────────

func TestRequirePermission(t *testing.T) {
	log := testLogger()
	ok := func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if TenantID(r.Context()) != "tenant-1" {
			t.Errorf("tenant not propagated, got %q", TenantID(r.Context()))
		}
		w.WriteHeader(http.StatusOK)
	}

	router := httprouter.New()
	router.GET("/r", RequirePermission("reservations", "view", ok))
	handler := Identify(log)(router)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{"no tenant", map[string]string{}, http.StatusUnauthorized},
		{"blank tenant", map[string]string{TenantHeader: "  "}, http.StatusUnauthorized},
		{"admin bypass", map[string]string{TenantHeader: "tenant-1", RoleHeader: "ADMIN"}, http.StatusOK},
		{"granted", map[string]string{TenantHeader: "tenant-1", PermissionsHeader: "clients:view, reservations:view"}, http.StatusOK},
		{"granted mixed case", map[string]string{TenantHeader: "tenant-1", PermissionsHeader: "Reservations:View"}, http.StatusOK},
		{"denied", map[string]string{TenantHeader: "tenant-1", PermissionsHeader: "reservations:create"}, http.StatusForbidden},
		{"no permissions", map[string]string{TenantHeader: "tenant-1", RoleHeader: "STAFF"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/r", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

// ────────────────────────────────────────────────
// Channel token
// ────────────────────────────────────────────────

func TestChannelTokenVerification(t *testing.T) {
	log := testLogger()
	called := false
	next := func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		called = true
		w.WriteHeader(http.StatusOK)
	}

	guarded := ChannelTokenVerification("secret-token", log)(next)

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set(ChannelTokenHeader, "wrong")
	rec := httptest.NewRecorder()
	guarded(rec, req, nil)
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("mismatched token must be rejected, got %d called=%v", rec.Code, called)
	}

	req.Header.Set(ChannelTokenHeader, "secret-token")
	rec = httptest.NewRecorder()
	guarded(rec, req, nil)
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("matching token must pass, got %d", rec.Code)
	}

	called = false
	open := ChannelTokenVerification("", log)(next)
	rec = httptest.NewRecorder()
	open(rec, httptest.NewRequest(http.MethodPost, "/webhook", nil), nil)
	if !called {
		t.Error("empty configured token disables the check")
	}
}

// ────────────────────────────────────────────────
// Content type and body size
// ────────────────────────────────────────────────

func TestContentTypeValidation(t *testing.T) {
	handler := ContentTypeValidation(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusOK},
		{"form post", http.MethodPost, `a=b`, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"empty post", http.MethodPost, "", "", http.StatusOK},
		{"get", http.MethodGet, "", "", http.StatusOK},
		{"put without type", http.MethodPut, `{}`, "", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	handler := MaxRequestSize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 64))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// ────────────────────────────────────────────────
// Idempotency
// ────────────────────────────────────────────────

func TestIdempotency_ReplaysPerTenant(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	handler := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"n":1}`))
	}))

	send := func(tenant, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
		req.Header.Set(IdempotencyHeader, "key-1")
		req.Header.Set(TenantHeader, tenant)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("tenant-a", "{}")
	second := send("tenant-a", "{}")
	if calls != 1 {
		t.Fatalf("expected one execution, got %d", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay mismatch: %d %q", second.Code, second.Body.String())
	}
	if second.Header().Get(ReplayedHeader) != "true" {
		t.Error("replayed response should be marked")
	}

	if rec := send("tenant-a", `{"other":true}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("reused key with another body: status = %d, want 422", rec.Code)
	}

	send("tenant-b", "{}")
	if calls != 2 {
		t.Errorf("a different tenant must not share the cached response, calls=%d", calls)
	}
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	calls := 0
	handler := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(IdempotencyHeader, "k")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Errorf("failed responses must not be replayed, calls=%d", calls)
	}
}

func TestIdempotency_RejectsConcurrentRetry(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	entered := make(chan struct{})
	release := make(chan struct{})
	handler := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader("{}"))
		req.Header.Set(IdempotencyHeader, "k")
		return req
	}

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newReq())
		done <- rec.Code
	}()
	<-entered

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq())
	if rec.Code != http.StatusConflict {
		t.Errorf("retry while in flight: status = %d, want 409", rec.Code)
	}

	close(release)
	if code := <-done; code != http.StatusCreated {
		t.Errorf("first request status = %d, want 201", code)
	}
}

func TestInMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if _, ok := store.Reserve("k"); !ok {
		t.Fatal("fresh key should be reservable")
	}
	store.Complete("k", &CachedResponse{StatusCode: http.StatusCreated})

	if cached, _ := store.Reserve("k"); cached == nil {
		t.Fatal("expected the stored response")
	}

	now = now.Add(2 * time.Minute)
	if cached, ok := store.Reserve("k"); cached != nil || !ok {
		t.Errorf("expired entry should be dropped and the key reservable, got %v %v", cached, ok)
	}
}

// ────────────────────────────────────────────────
// Timeout and recovery
// ────────────────────────────────────────────────

func TestRequestTimeout(t *testing.T) {
	handler := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"TIMEOUT"`) {
		t.Errorf("body should carry the TIMEOUT code: %s", rec.Body.String())
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRecovery_PassesAbortHandlerThrough(t *testing.T) {
	handler := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if p := recover(); p != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", p)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRequestLogging_AssignsRequestID(t *testing.T) {
	var seen string
	handler := RequestLogging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("expected a UUID request id, got %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Error("request id should be echoed in the response")
	}
}

func TestRequestLogging_RequestIDFromUpstream(t *testing.T) {
	upstream := uuid.NewString()
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"uuid kept", upstream, true},
		{"garbage replaced", "<script>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := RequestLogging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
				w.WriteHeader(http.StatusConflict)
			}))

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set(RequestIDHeader, tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if (seen == tt.header) != tt.keep {
				t.Errorf("request id = %q, keep upstream %v", seen, tt.keep)
			}
			if rec.Code != http.StatusConflict {
				t.Errorf("status = %d, want 409 passed through", rec.Code)
			}
		})
	}
}

func TestLevelFor(t *testing.T) {
	if levelFor(http.StatusCreated) != slog.LevelInfo || levelFor(http.StatusConflict) != slog.LevelWarn || levelFor(http.StatusBadGateway) != slog.LevelError {
		t.Error("unexpected level mapping")
	}
}
