package ratelimit

import (
	"context"
	"sync"
	"time"
)

// WindowStore holds the accounting window of a Limiter.
// Reserve must perform the window check and the commit atomically.
type WindowStore interface {
	// Reserve starts a new window if none exists or the current one is more
	// than period old, then commits amount if it fits under maxRate.
	// When it does not fit, ok is false and wait is the time left in the window.
	Reserve(ctx context.Context, amount, maxRate int64, period time.Duration) (ok bool, wait time.Duration, err error)
}

// Clock abstracts time for the limiter and the in-memory store.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MemoryStore is a WindowStore for a single process.
// It is safe for concurrent use.
type MemoryStore struct {
	clock   Clock
	mu      sync.Mutex
	start   time.Time
	started bool
	used    int64
}

var _ WindowStore = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory window store.
// A nil clock uses wall-clock time.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = realClock{}
	}
	return &MemoryStore{clock: clock}
}

// Reserve implements WindowStore.
func (s *MemoryStore) Reserve(ctx context.Context, amount, maxRate int64, period time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if !s.started || now.Sub(s.start) > period {
		s.start = now
		s.started = true
		s.used = 0
	}

	if s.used+amount <= maxRate {
		s.used += amount
		return true, 0, nil
	}

	return false, period - now.Sub(s.start), nil
}

// Usage returns the start of the current window and the capacity used in it.
// The zero time is returned before the first reservation.
func (s *MemoryStore) Usage() (time.Time, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.used
}
