package service

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"agenda/pkg/config"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

type ErrorClass int

const (
	Permanent ErrorClass = iota
	Transient
	Auth
)

func (c ErrorClass) String() string {
	switch c {
	case Transient:
		return "transient"
	case Auth:
		return "auth"
	default:
		return "permanent"
	}
}

// Classify sorts a calendar call failure into retry buckets. Only Transient
// errors are retried; Auth errors additionally invalidate the grant.
func Classify(err error) ErrorClass {
	if err == nil {
		return Permanent
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) || strings.Contains(err.Error(), "invalid_grant") {
		return Auth
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return Auth
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
			return Transient
		case apiErr.Code == http.StatusForbidden && isRateLimited(apiErr):
			return Transient
		default:
			return Permanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return Transient
	}
	return Permanent
}

// Google reports per-user quota exhaustion as 403.
func isRateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

// StatusCode extracts the HTTP status of a Google API error, or 0.
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// RetryPolicy bounds attempts at MaxAttempts with delays of
// BaseDelay * Multiplier^n, never longer than MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.SyncMaxAttempts,
		BaseDelay:   cfg.SyncBaseDelay,
		Multiplier:  cfg.SyncMultiplier,
		MaxDelay:    cfg.SyncMaxDelay,
	}
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempt := 0
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
		attempt++
		// Clamp before converting; a large exponent overflows Duration.
		if delay > float64(p.MaxDelay) {
			delay = float64(p.MaxDelay)
		}
		return time.Duration(delay), false
	})

	retries := uint64(max(p.MaxAttempts-1, 0))
	return retry.WithMaxRetries(retries, retry.WithCappedDuration(p.MaxDelay, next))
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out. It reports how many attempts were made.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	attempts := 0
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempts++
		err := fn(ctx)
		if err != nil && Classify(err) == Transient {
			return retry.RetryableError(err)
		}
		return err
	})
	return attempts, err
}
