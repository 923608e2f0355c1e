package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	syncerrors "agenda/internal/calendarsync/errors"
	"agenda/pkg/model"

	"golang.org/x/oauth2"
)

type memoryCredentials struct {
	mu    sync.Mutex
	creds map[string]model.CalendarCredential
}

func newMemoryCredentials(creds ...model.CalendarCredential) *memoryCredentials {
	m := &memoryCredentials{creds: make(map[string]model.CalendarCredential)}
	for _, c := range creds {
		m.creds[c.TenantID] = c
	}
	return m
}

func (m *memoryCredentials) Find(_ context.Context, tenantID string) (*model.CalendarCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[tenantID]
	if !ok {
		return nil, syncerrors.ErrCredentialsNotFound
	}
	return &c, nil
}

func (m *memoryCredentials) Upsert(_ context.Context, cred *model.CalendarCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.TenantID] = *cred
	return nil
}

func (m *memoryCredentials) Delete(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, tenantID)
	return nil
}

func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestProvider(store *memoryCredentials, srv *httptest.Server) (*CredentialProvider, *int) {
	cfg := testConfig()
	cfg.Client.HTTP = srv.Client()
	oauth := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
	}

	built := 0
	provider := NewCredentialProvider(store, oauth, cfg)
	provider.newClient = func(context.Context, *http.Client) (EventsAPI, error) {
		built++
		return &fakeEvents{}, nil
	}
	return provider, &built
}

func TestGetClient_NoCredentials(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{}`)
	provider, built := newTestProvider(newMemoryCredentials(), srv)

	client, err := provider.GetClient(context.Background(), tenant)
	if err != nil || client != nil {
		t.Fatalf("GetClient = (%v, %v), want (nil, nil)", client, err)
	}
	if *built != 0 || hits.Load() != 0 {
		t.Error("nothing should be built or refreshed without credentials")
	}
}

func TestGetClient_ValidTokenIsNotRefreshed(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{}`)
	store := newMemoryCredentials(model.CalendarCredential{
		TenantID:     tenant,
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	})
	provider, built := newTestProvider(store, srv)

	client, err := provider.GetClient(context.Background(), tenant)
	if err != nil || client == nil {
		t.Fatalf("GetClient = (%v, %v)", client, err)
	}
	if hits.Load() != 0 {
		t.Errorf("token endpoint hits = %d, want 0", hits.Load())
	}
	if *built != 1 {
		t.Errorf("clients built = %d, want 1", *built)
	}
}

func TestGetClient_RefreshesAndPersistsExpiredToken(t *testing.T) {
	srv, hits := tokenServer(t, http.StatusOK, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
	store := newMemoryCredentials(model.CalendarCredential{
		TenantID:     tenant,
		AccessToken:  "old",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	})
	provider, _ := newTestProvider(store, srv)

	client, err := provider.GetClient(context.Background(), tenant)
	if err != nil || client == nil {
		t.Fatalf("GetClient = (%v, %v)", client, err)
	}
	if hits.Load() != 1 {
		t.Errorf("token endpoint hits = %d, want 1", hits.Load())
	}

	stored, err := store.Find(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if stored.AccessToken != "fresh" {
		t.Errorf("stored access token = %q, want fresh", stored.AccessToken)
	}
	if stored.RefreshToken != "refresh" {
		t.Errorf("refresh token must be kept when none is returned, got %q", stored.RefreshToken)
	}
	if !stored.Expiry.After(time.Now()) {
		t.Errorf("stored expiry %s is not in the future", stored.Expiry)
	}
}

func TestGetClient_RejectedRefreshDropsCredentials(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Token has been revoked."}`)
	store := newMemoryCredentials(model.CalendarCredential{
		TenantID:     tenant,
		AccessToken:  "old",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Minute),
	})
	provider, built := newTestProvider(store, srv)

	client, err := provider.GetClient(context.Background(), tenant)
	if err != nil || client != nil {
		t.Fatalf("GetClient = (%v, %v), want (nil, nil)", client, err)
	}
	if *built != 0 {
		t.Error("no client should be built after a rejected refresh")
	}
	if _, err := store.Find(context.Background(), tenant); !errors.Is(err, syncerrors.ErrCredentialsNotFound) {
		t.Errorf("credentials should be deleted, Find returned %v", err)
	}
}

func TestAuthCodeURL_RequestsOfflineConsent(t *testing.T) {
	cfg := testConfig()
	cfg.GoogleClientID = "client"
	cfg.GoogleRedirectURL = "https://agenda.example.com/api/v1/calendar/oauth2callback"
	provider := NewCredentialProvider(newMemoryCredentials(), NewOAuthConfig(cfg), cfg)

	raw := provider.AuthCodeURL("state-123")
	for _, want := range []string{"access_type=offline", "prompt=consent", "state=state-123", "calendar"} {
		if !strings.Contains(raw, want) {
			t.Errorf("auth url %q does not contain %q", raw, want)
		}
	}
}
