package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// minWait is slept when a window is exactly at its boundary and has not expired yet.
const minWait = time.Millisecond

// Limiter admits at most maxRate units of work per period.
// It is safe for concurrent use by any number of goroutines.
type Limiter struct {
	maxRate int64
	period  time.Duration
	store   WindowStore
	clock   Clock
	logger  *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter) error

// WithStore sets the window store. Default is a MemoryStore owned by the limiter.
func WithStore(store WindowStore) Option {
	return func(l *Limiter) error {
		l.store = store
		return nil
	}
}

// WithClock sets the clock used for sleeping and for the default store.
func WithClock(clock Clock) Option {
	return func(l *Limiter) error {
		if clock != nil {
			l.clock = clock
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// New creates a limiter allowing maxRate units per period.
func New(maxRate int64, period time.Duration, opts ...Option) (*Limiter, error) {
	if maxRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRate, maxRate)
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidPeriod, period)
	}

	l := &Limiter{
		maxRate: maxRate,
		period:  period,
		clock:   realClock{},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	if l.store == nil {
		l.store = NewMemoryStore(l.clock)
	}
	l.logger = l.logger.With("component", "ratelimit")

	return l, nil
}

// MaxRate returns the capacity of one window.
func (l *Limiter) MaxRate() int64 {
	return l.maxRate
}

// Period returns the window length.
func (l *Limiter) Period() time.Duration {
	return l.period
}

// Acquire blocks until amount units fit into the current window and reserves them.
// Amounts that can never fit fail immediately with ErrInvalidRequest.
// Returns the context error if ctx is done while waiting.
func (l *Limiter) Acquire(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount should be greater than 0, got %d", ErrInvalidRequest, amount)
	}
	if amount > l.maxRate {
		return fmt.Errorf("%w: amount %d is over the maximum allowed rate %d", ErrInvalidRequest, amount, l.maxRate)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, wait, err := l.store.Reserve(ctx, amount, l.maxRate, l.period)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if wait < minWait {
			wait = minWait
		}
		l.logger.Debug("rate limit reached, waiting for next window", "amount", amount, "wait", wait)

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Do acquires amount units and then runs fn.
// Nothing is released when fn returns; the reservation counts for the whole window.
func (l *Limiter) Do(ctx context.Context, amount int64, fn func() error) error {
	if err := l.Acquire(ctx, amount); err != nil {
		return err
	}
	return fn()
}
