package sealer

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func newTestSealer(t *testing.T, purpose string) *Sealer {
	t.Helper()
	s, err := New("a-long-enough-test-secret", purpose)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSealOpen_RoundTrip(t *testing.T) {
	s := newTestSealer(t, "oauth-state")

	token, err := s.Seal("tenant-42", 10*time.Minute)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := s.Open(token)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "tenant-42" {
		t.Errorf("subject = %q, want tenant-42", got)
	}
}

func TestOpen_RejectsExpired(t *testing.T) {
	s := newTestSealer(t, "oauth-state")
	issued := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	token, err := s.Seal("tenant-42", 10*time.Minute)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	s.now = func() time.Time { return issued.Add(11 * time.Minute) }
	if _, err := s.Open(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestOpen_RejectsTampering(t *testing.T) {
	s := newTestSealer(t, "oauth-state")
	token, err := s.Seal("tenant-42", time.Minute)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)/2] ^= 0x01
	flipped := base64.RawURLEncoding.EncodeToString(raw)

	for name, bad := range map[string]string{
		"flipped":    flipped,
		"truncated":  token[:10],
		"not base64": "%%%",
		"empty":      "",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Open(bad); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestOpen_KeysArePerPurpose(t *testing.T) {
	token, err := newTestSealer(t, "oauth-state").Seal("tenant-42", time.Minute)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := newTestSealer(t, "something-else").Open(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("a token sealed for another purpose must not open, got %v", err)
	}
}

func TestNew_RequiresSecret(t *testing.T) {
	if _, err := New("", "oauth-state"); err == nil {
		t.Error("expected an error for an empty secret")
	}
}
