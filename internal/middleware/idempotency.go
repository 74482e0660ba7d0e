package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/forgo/jobboard/internal/model"
)

// maxIdempotentBody caps the request body hashed into the replay key
const maxIdempotentBody = 1 << 20

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL     time.Duration // How long a response can be replayed (default 24h)
	Cleanup time.Duration // Sweep interval (default 1h)
}

// IdempotencyStore remembers responses to POST requests that carried an
// Idempotency-Key, so a retried create returns the first response instead
// of creating a second job.
type IdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*replayEntry
	ttl      time.Duration
	now      func() time.Time
	stopOnce sync.Once
	stopChan chan struct{}
}

type replayEntry struct {
	status    int
	headers   http.Header
	body      []byte
	expiresAt time.Time
	// done is closed when the first request finishes
	done chan struct{}
	// ok is false when the first request ended in a server error
	ok bool
}

// NewIdempotencyStore creates a store and starts its sweeper
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = time.Hour
	}
	s := &IdempotencyStore{
		entries:  make(map[string]*replayEntry),
		ttl:      cfg.TTL,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go s.sweepLoop(cfg.Cleanup)
	return s
}

// Stop ends the sweeper
func (s *IdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *IdempotencyStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopChan:
			return
		}
	}
}

func (s *IdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if isClosed(e.done) && e.expiresAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

// claim returns the existing entry for key, or registers a new in-flight
// entry owned by the caller (owner == true).
func (s *IdempotencyStore) claim(key string) (e *replayEntry, owner bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		if !isClosed(e.done) || (e.ok && e.expiresAt.After(s.now())) {
			return e, false
		}
	}
	e = &replayEntry{done: make(chan struct{})}
	s.entries[key] = e
	return e, true
}

func (s *IdempotencyStore) finish(key string, e *replayEntry, rec *captureWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.status = rec.status
	e.headers = rec.Header().Clone()
	e.body = rec.body.Bytes()
	e.expiresAt = s.now().Add(s.ttl)
	e.ok = rec.status < http.StatusInternalServerError
	if !e.ok {
		delete(s.entries, key)
	}
	close(e.done)
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// replayKey binds the client key to the caller and the exact request
func replayKey(caller, idempotencyKey, method, path string, body []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(caller), []byte(idempotencyKey), []byte(method), []byte(path), body} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// captureWriter tees the response into a buffer
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated POST with the same
// Idempotency-Key, caller, path and body. Concurrent duplicates wait for the
// first request. Server errors are not remembered, so a retry runs again.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil {
				model.NewBadRequestError("could not read request body").WriteJSON(w)
				return
			}
			if len(body) > maxIdempotentBody {
				model.NewBadRequestError("request body too large").WriteJSON(w)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			caller := GetUserID(r.Context())
			if caller == "" {
				caller = clientIP(r)
			}
			key := replayKey(caller, idempotencyKey, r.Method, r.URL.Path, body)

			for {
				entry, owner := store.claim(key)
				if owner {
					rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
					defer func() {
						if p := recover(); p != nil {
							rec.status = http.StatusInternalServerError
							store.finish(key, entry, rec)
							panic(p)
						}
					}()
					next.ServeHTTP(rec, r)
					store.finish(key, entry, rec)
					return
				}

				select {
				case <-entry.done:
				case <-r.Context().Done():
					return
				}
				if entry.ok {
					replay(w, entry)
					return
				}
				// first attempt failed; try to become the owner
			}
		})
	}
}

func replay(w http.ResponseWriter, e *replayEntry) {
	for k, vs := range e.headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(e.status)
	_, _ = w.Write(e.body)
}
