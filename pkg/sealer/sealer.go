// Package sealer produces short opaque tokens that carry a subject and an
// expiry, authenticated and encrypted with AES-GCM. It is used for the OAuth
// state parameter so the callback can trust which tenant started the flow.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

const keySize = 32

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type Sealer struct {
	aead cipher.AEAD
	now  func() time.Time
}

// New derives a per-purpose AES-256 key from secret, so one secret can back
// several token kinds without them being interchangeable.
func New(secret, purpose string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("sealer secret cannot be empty")
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aead, now: time.Now}, nil
}

// Seal returns a URL-safe token for subject that Open accepts until ttl
// elapses.
func (s *Sealer) Seal(subject string, ttl time.Duration) (string, error) {
	plaintext := make([]byte, 8, 8+len(subject))
	binary.BigEndian.PutUint64(plaintext, uint64(s.now().Add(ttl).Unix()))
	plaintext = append(plaintext, subject...)

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(token string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize+s.aead.Overhead()+8 {
		return "", ErrInvalidToken
	}

	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrInvalidToken
	}

	expiry := time.Unix(int64(binary.BigEndian.Uint64(plaintext[:8])), 0)
	if !s.now().Before(expiry) {
		return "", ErrExpiredToken
	}
	return string(plaintext[8:]), nil
}
