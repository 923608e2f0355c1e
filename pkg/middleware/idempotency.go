package middleware

import (
	"bytes"
	"crypto/sha256"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

type IdempotencyStore interface {
	// Reserve claims key for one in-flight request. It returns the stored
	// response when one exists, or ok=false when another request holds the key.
	Reserve(key string) (cached *CachedResponse, ok bool)
	// Complete stores the response under key, or frees the key when resp is nil.
	Complete(key string, resp *CachedResponse)
	Stop()
}

type CachedResponse struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte
	Fingerprint [sha256.Size]byte
	CreatedAt   time.Time
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	done     map[string]*CachedResponse
	inFlight map[string]struct{}
	ttl      time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewInMemoryIdempotencyStore starts a sweeper goroutine that runs until Stop.
func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		done:     make(map[string]*CachedResponse),
		inFlight: make(map[string]struct{}),
		ttl:      ttl,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go s.sweep(min(max(ttl/4, time.Minute), time.Hour))
	return s
}

func (s *InMemoryIdempotencyStore) Reserve(key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resp, found := s.done[key]; found {
		if s.now().Sub(resp.CreatedAt) <= s.ttl {
			return resp, true
		}
		delete(s.done, key)
	}
	if _, busy := s.inFlight[key]; busy {
		return nil, false
	}
	s.inFlight[key] = struct{}{}
	return nil, true
}

func (s *InMemoryIdempotencyStore) Complete(key string, resp *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	if resp != nil {
		resp.CreatedAt = s.now()
		s.done[key] = resp
	}
}

func (s *InMemoryIdempotencyStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, resp := range s.done {
				if s.now().Sub(resp.CreatedAt) > s.ttl {
					delete(s.done, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type bodyCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (bc *bodyCapture) WriteHeader(status int) {
	if bc.status == 0 {
		bc.status = status
		bc.ResponseWriter.WriteHeader(status)
	}
}

func (bc *bodyCapture) Write(b []byte) (int, error) {
	if bc.status == 0 {
		bc.WriteHeader(http.StatusOK)
	}
	bc.body.Write(b)
	return bc.ResponseWriter.Write(b)
}

// Idempotency makes a retried write with the same Idempotency-Key return the
// first 2xx answer instead of booking twice. Keys are scoped by tenant, method
// and path. Reusing a key with a different body answers 422, and a retry that
// arrives while the first attempt is still running answers 409.
func Idempotency(store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(IdempotencyHeader)
			if clientKey == "" || !isWriteMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "INVALID_INPUT", "Could not read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := sha256.Sum256(body)

			key := r.Header.Get(TenantHeader) + "|" + r.Method + "|" + r.URL.Path + "|" + clientKey
			cached, ok := store.Reserve(key)
			switch {
			case !ok:
				writeJSONError(w, http.StatusConflict, "CONFLICT", "A request with this Idempotency-Key is still being processed")
				return
			case cached != nil && cached.Fingerprint != fingerprint:
				writeJSONError(w, http.StatusUnprocessableEntity, "INVALID_INPUT", "Idempotency-Key was already used with a different request body")
				return
			case cached != nil:
				replay(w, cached)
				return
			}

			capture := &bodyCapture{ResponseWriter: w}
			var stored *CachedResponse
			defer func() { store.Complete(key, stored) }()

			next.ServeHTTP(capture, r)
			if capture.status == 0 {
				capture.status = http.StatusOK
			}
			if capture.status >= 200 && capture.status < 300 {
				stored = &CachedResponse{
					StatusCode:  capture.status,
					Headers:     w.Header().Clone(),
					Body:        bytes.Clone(capture.body.Bytes()),
					Fingerprint: fingerprint,
				}
			}
		})
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func replay(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		if key == RequestIDHeader {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
