// Package ratelimit enforces the per-user daily quota on new yap creation.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/yapchat/backend/internal/models"
)

// ErrLimitExceeded indicates the user has exhausted today's yap quota.
var ErrLimitExceeded = errors.New("daily yap limit reached")

// QuotaStore persists per-user quota windows.
type QuotaStore interface {
	Get(ctx context.Context, userID string) (models.QuotaWindow, error)
	Reset(ctx context.Context, userID string, resetAt time.Time) error
	Increment(ctx context.Context, userID string) error
}

// DailyLimiter counts new yaps per user inside a rolling "until next local
// midnight" window. The window is evaluated lazily on each check rather than
// by a scheduler, so it re-anchors to whichever check first observes that the
// stored boundary has passed. That makes the quota an approximation of
// "3 new yaps per day" rather than a strict calendar-day guarantee, which is
// the intended behavior.
type DailyLimiter struct {
	store QuotaStore
	limit int

	nowFunc func() time.Time
}

// NewDailyLimiter constructs a limiter allowing up to limit new yaps per window.
func NewDailyLimiter(store QuotaStore, limit int) *DailyLimiter {
	if store == nil {
		panic("ratelimit: quota store must not be nil")
	}
	if limit <= 0 {
		limit = 3
	}
	return &DailyLimiter{store: store, limit: limit, nowFunc: time.Now}
}

// Check evaluates the user's quota, resetting the window first when the
// stored boundary has been reached. It returns ErrLimitExceeded when the
// user is at or over the ceiling.
func (l *DailyLimiter) Check(ctx context.Context, userID string) error {
	window, err := l.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	now := l.now()
	if window.ResetAt.IsZero() || !now.Before(window.ResetAt) {
		resetAt := nextLocalMidnight(now)
		if err := l.store.Reset(ctx, userID, resetAt); err != nil {
			return err
		}
		window.Count = 0
		window.ResetAt = resetAt
	}

	if window.Count >= l.limit {
		return ErrLimitExceeded
	}
	return nil
}

// Record charges one unit against the user's window. Callers invoke it only
// when a new yap was actually created, never on reuse of an existing one.
func (l *DailyLimiter) Record(ctx context.Context, userID string) error {
	return l.store.Increment(ctx, userID)
}

// WithNowFunc allows tests to override the time source.
func (l *DailyLimiter) WithNowFunc(now func() time.Time) *DailyLimiter {
	l.nowFunc = now
	return l
}

func (l *DailyLimiter) now() time.Time {
	if l.nowFunc != nil {
		return l.nowFunc()
	}
	return time.Now()
}

// nextLocalMidnight returns the upcoming midnight in server-local time,
// mirroring the window boundary used by the reference deployment.
func nextLocalMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, now.Location())
}
