package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	syncerrors "agenda/internal/calendarsync/errors"
	"agenda/internal/calendarsync/repository"
	"agenda/pkg/config"
	"agenda/pkg/logger"
	"agenda/pkg/model"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// NewOAuthConfig returns the Google OAuth client for the calendar scope.
func NewOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{calendar.CalendarScope},
		Endpoint:     google.Endpoint,
	}
}

// CredentialProvider hands out tenant-bound calendar clients. Nothing is
// shared between calls: each GetClient builds its own token source and HTTP
// client from the stored grant.
type CredentialProvider struct {
	store      repository.CredentialRepository
	oauth      *oauth2.Config
	httpClient *http.Client
	newClient  ClientFactory
	log        *logger.Logger
	now        func() time.Time
}

func NewCredentialProvider(store repository.CredentialRepository, oauth *oauth2.Config, cfg *config.Config) *CredentialProvider {
	return &CredentialProvider{
		store:      store,
		oauth:      oauth,
		httpClient: cfg.Client.HTTP,
		newClient:  NewGoogleClient,
		log:        cfg.Log,
		now:        time.Now,
	}
}

// GetClient returns nil without error when the tenant has no usable grant:
// either it never connected, or the refresh token was rejected and the
// stored credentials were dropped.
func (p *CredentialProvider) GetClient(ctx context.Context, tenantID string) (EventsAPI, error) {
	cred, err := p.store.Find(ctx, tenantID)
	if err != nil {
		if errors.Is(err, syncerrors.ErrCredentialsNotFound) {
			return nil, nil
		}
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Expiry:       cred.Expiry,
	}

	oauthCtx := p.oauthContext(ctx)
	if cred.Expired(p.now()) {
		refreshed, err := p.oauth.TokenSource(oauthCtx, token).Token()
		if err != nil {
			p.log.Warn("Calendar token refresh failed, dropping credentials",
				"tenant_id", tenantID,
				"error", err,
			)
			p.Invalidate(ctx, tenantID)
			return nil, nil
		}

		cred.AccessToken = refreshed.AccessToken
		if refreshed.RefreshToken != "" {
			cred.RefreshToken = refreshed.RefreshToken
		}
		if refreshed.TokenType != "" {
			cred.TokenType = refreshed.TokenType
		}
		cred.Expiry = refreshed.Expiry
		if err := p.store.Upsert(ctx, cred); err != nil {
			p.log.Warn("Failed to persist refreshed calendar token", "tenant_id", tenantID, "error", err)
		}
		token = refreshed
	}

	return p.newClient(ctx, p.oauth.Client(oauthCtx, token))
}

// Invalidate drops a tenant's grant so later calls fail fast until the
// tenant authorizes again.
func (p *CredentialProvider) Invalidate(ctx context.Context, tenantID string) {
	if err := p.store.Delete(context.WithoutCancel(ctx), tenantID); err != nil {
		p.log.Error("Failed to delete calendar credentials", "tenant_id", tenantID, "error", err)
		return
	}
	p.log.Info("Calendar credentials invalidated", "tenant_id", tenantID)
}

// Exchange trades an authorization code for a token.
func (p *CredentialProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth.Exchange(p.oauthContext(ctx), code)
}

func (p *CredentialProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *CredentialProvider) Find(ctx context.Context, tenantID string) (*model.CalendarCredential, error) {
	return p.store.Find(ctx, tenantID)
}

func (p *CredentialProvider) Save(ctx context.Context, cred *model.CalendarCredential) error {
	return p.store.Upsert(ctx, cred)
}

func (p *CredentialProvider) oauthContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}
