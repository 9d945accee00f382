package herald

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDailyLimitReached is returned when the daily fetch quota is exhausted.
var ErrDailyLimitReached = errors.New("daily fetch limit reached")

// FetchLimiter bounds upstream fetches with a rolling 24-hour quota so a
// misconfigured cadence cannot hammer the Herald page. The window resets
// 24 hours after the first fetch in each window.
type FetchLimiter struct {
	daily    atomic.Int64
	maxDaily int64
	resetAt  time.Time
	mu       sync.Mutex
	nowFunc  func() time.Time
}

// FetchLimiterOption configures the FetchLimiter.
type FetchLimiterOption func(*FetchLimiter)

// WithLimiterNowFunc overrides the time function for testing.
func WithLimiterNowFunc(f func() time.Time) FetchLimiterOption {
	return func(l *FetchLimiter) {
		l.nowFunc = f
	}
}

// NewFetchLimiter creates a limiter with the given daily quota.
func NewFetchLimiter(maxDaily int64, opts ...FetchLimiterOption) *FetchLimiter {
	l := &FetchLimiter{
		maxDaily: maxDaily,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.resetAt = l.nowFunc().Add(24 * time.Hour)
	return l
}

// Allow consumes one fetch from the quota, or returns ErrDailyLimitReached.
func (l *FetchLimiter) Allow() error {
	l.checkDailyReset()

	if l.daily.Load() >= l.maxDaily {
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, l.daily.Load(), l.maxDaily)
	}
	l.daily.Add(1)
	return nil
}

// DailyCount returns the fetch count in the current window.
func (l *FetchLimiter) DailyCount() int64 {
	return l.daily.Load()
}

// Remaining returns the fetches left in the current window.
func (l *FetchLimiter) Remaining() int64 {
	remaining := l.maxDaily - l.daily.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *FetchLimiter) checkDailyReset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if now.After(l.resetAt) {
		l.daily.Store(0)
		l.resetAt = now.Add(24 * time.Hour)
	}
}
