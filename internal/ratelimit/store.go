// Package ratelimit caps requests per client address with process-local
// sliding windows. State is best effort: it lives in memory and is lost on
// restart.
package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = 5 * time.Minute

// Result is the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is how long until the next request would be accepted.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// slidingWindow holds the timestamps of accepted requests inside the window.
type slidingWindow struct {
	timestamps []time.Time
}

// cleanup removes timestamps that fell out of the window.
func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// Store keeps one sliding window per key. Windows of idle keys expire from
// the underlying cache once their window has passed.
type Store struct {
	mu      sync.Mutex
	windows *gocache.Cache
	now     func() time.Time
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		windows: gocache.New(gocache.NoExpiration, defaultCleanupInterval),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records a request for key if fewer than limit requests were accepted
// within the trailing window.
func (s *Store) Allow(key string, limit int, window time.Duration) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.window(key)
	sw.cleanup(now, window)

	if len(sw.timestamps) < limit {
		sw.timestamps = append(sw.timestamps, now)
		s.windows.Set(key, sw, window)
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - len(sw.timestamps),
			ResetAt:   sw.timestamps[0].Add(window),
		}
	}

	resetAt := now.Add(window)
	if len(sw.timestamps) > 0 {
		resetAt = sw.timestamps[0].Add(window)
	}
	return Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
	}
}

// Flush drops all state. Called on shutdown.
func (s *Store) Flush() {
	s.windows.Flush()
}

// window returns the window for key, creating it when missing.
// Must be called while holding s.mu.
func (s *Store) window(key string) *slidingWindow {
	if v, found := s.windows.Get(key); found {
		return v.(*slidingWindow)
	}
	return &slidingWindow{}
}
