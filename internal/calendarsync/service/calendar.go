package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	syncerrors "agenda/internal/calendarsync/errors"
	"agenda/internal/calendarsync/repository"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/sealer"

	"golang.org/x/oauth2"
)

const (
	statePurpose = "calendar-oauth-state"
	stateTTL     = 10 * time.Minute

	resourceStateSync = "sync"
)

// Notification carries the X-Goog-* headers of one push delivery.
type Notification struct {
	ChannelID     string
	ResourceID    string
	ResourceState string
	Token         string
}

type CalendarService interface {
	AuthURL(ctx context.Context, tenantID string) (string, error)
	CompleteAuth(ctx context.Context, state, code string) (string, error)
	Status(ctx context.Context, tenantID string) (*model.IntegrationStatus, error)
	Health(ctx context.Context, tenantID string) model.HealthStatus
	Watch(ctx context.Context, tenantID string) (*model.CalendarChannel, error)
	Disconnect(ctx context.Context, tenantID string) error
	HandleNotification(ctx context.Context, n Notification) error
}

// Credentials is the OAuth side of the credential provider.
type Credentials interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Find(ctx context.Context, tenantID string) (*model.CalendarCredential, error)
	Save(ctx context.Context, cred *model.CalendarCredential) error
}

// Calendar is the part of the adapter the integration routes drive.
type Calendar interface {
	Watch(ctx context.Context, tenantID string) (*model.CalendarChannel, error)
	Disconnect(ctx context.Context, tenantID string) error
	Health(ctx context.Context, tenantID string) model.HealthStatus
	SyncChannel(ctx context.Context, channelID string) error
}

type calendarService struct {
	credentials Credentials
	calendar    Calendar
	channels    repository.ChannelRepository
	state       *sealer.Sealer
	log         *logger.Logger
	now         func() time.Time
}

func NewCalendarService(
	credentials Credentials,
	calendar Calendar,
	channels repository.ChannelRepository,
	cfg *config.Config,
) (CalendarService, error) {
	state, err := sealer.New(cfg.CalendarStateSecret, statePurpose)
	if err != nil {
		return nil, err
	}
	return &calendarService{
		credentials: credentials,
		calendar:    calendar,
		channels:    channels,
		state:       state,
		log:         cfg.Log,
		now:         time.Now,
	}, nil
}

func (s *calendarService) AuthURL(_ context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return "", apperrors.Unauthorized("Missing tenant")
	}
	state, err := s.state.Seal(tenantID, stateTTL)
	if err != nil {
		return "", apperrors.Internal("Failed to build OAuth state", err)
	}
	return s.credentials.AuthCodeURL(state), nil
}

// CompleteAuth finishes the consent flow and returns the tenant the grant
// belongs to.
func (s *calendarService) CompleteAuth(ctx context.Context, state, code string) (string, error) {
	if state == "" || code == "" {
		return "", apperrors.InvalidInput("Missing OAuth state or code")
	}

	tenantID, err := s.state.Open(state)
	if err != nil {
		if errors.Is(err, sealer.ErrExpiredToken) {
			return "", apperrors.InvalidInput("OAuth state expired, start the authorization again")
		}
		return "", apperrors.InvalidInput("Invalid OAuth state")
	}

	token, err := s.credentials.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("OAuth code exchange failed", "tenant_id", tenantID, "error", err)
		return tenantID, apperrors.InvalidInput("Failed to exchange authorization code")
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		// Google only sends a refresh token on the first consent.
		existing, err := s.credentials.Find(ctx, tenantID)
		switch {
		case err == nil:
			refreshToken = existing.RefreshToken
		case !errors.Is(err, syncerrors.ErrCredentialsNotFound):
			return tenantID, apperrors.Internal("Failed to load calendar credentials", err)
		}
	}
	if refreshToken == "" {
		return tenantID, apperrors.PreconditionFailed("Google did not return a refresh token", "missing_refresh_token")
	}

	cred := &model.CalendarCredential{
		TenantID:     tenantID,
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry.UTC(),
	}
	if scope, ok := token.Extra("scope").(string); ok {
		cred.Scope = scope
	}

	if err := s.credentials.Save(ctx, cred); err != nil {
		return tenantID, apperrors.Internal("Failed to store calendar credentials", err)
	}

	s.log.Info("Google Calendar connected", "tenant_id", tenantID)
	return tenantID, nil
}

func (s *calendarService) Status(ctx context.Context, tenantID string) (*model.IntegrationStatus, error) {
	cred, err := s.credentials.Find(ctx, tenantID)
	if err != nil {
		if errors.Is(err, syncerrors.ErrCredentialsNotFound) {
			return &model.IntegrationStatus{Status: model.IntegrationInactive}, nil
		}
		return nil, apperrors.Internal("Failed to load calendar credentials", err)
	}

	expired := cred.Expired(s.now())
	status := &model.IntegrationStatus{
		Status:    model.IntegrationActive,
		IsExpired: &expired,
	}
	if !cred.Expiry.IsZero() {
		expiry := cred.Expiry
		status.Expiry = &expiry
	}
	return status, nil
}

func (s *calendarService) Health(ctx context.Context, tenantID string) model.HealthStatus {
	return s.calendar.Health(ctx, tenantID)
}

func (s *calendarService) Watch(ctx context.Context, tenantID string) (*model.CalendarChannel, error) {
	return s.calendar.Watch(ctx, tenantID)
}

func (s *calendarService) Disconnect(ctx context.Context, tenantID string) error {
	if err := s.calendar.Disconnect(ctx, tenantID); err != nil {
		return err
	}
	s.log.Info("Google Calendar disconnected", "tenant_id", tenantID)
	return nil
}

// HandleNotification resolves the channel a push delivery belongs to and
// pulls the changes it announces. The delivery itself carries no event data.
func (s *calendarService) HandleNotification(ctx context.Context, n Notification) error {
	if n.ResourceState == resourceStateSync {
		return nil
	}

	channel, err := s.channels.FindByID(ctx, n.ChannelID)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(channel.Token), []byte(n.Token)) != 1 {
		return syncerrors.ErrChannelToken
	}

	return s.calendar.SyncChannel(ctx, channel.ID)
}
