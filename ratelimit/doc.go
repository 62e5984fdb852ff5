// Package ratelimit bounds how much work may be started per rolling time window.
//
// A Limiter admits at most maxRate units of work per period. Acquire blocks
// until the requested amount fits into the current window, reserves it and
// returns; reservations are never released, so the limiter bounds the number
// of operations started per period rather than the number in flight.
//
// The window is reset, not slid: the first Acquire after a window expires
// starts a new window with zero usage. State lives behind a WindowStore:
//
//   - MemoryStore keeps the window in process memory behind a mutex
//   - RedisStore keeps it in a Redis hash so several processes share one budget
//
// Exclusive access to the window is held only for the check-and-commit step.
// Waiting happens outside of it, so a blocked caller never stalls callers
// whose amount still fits.
package ratelimit
