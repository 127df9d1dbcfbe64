package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"analyzeit/internal/shared/telemetry"
	"analyzeit/internal/users"
)

// RefreshDelay is how long after a submission the summary is re-read.
const RefreshDelay = time.Second

const refreshTimeout = 10 * time.Second

// Summary is the dashboard header data.
type Summary struct {
	Total     int
	ThisMonth int
	LastLogin *time.Time
}

// Counter counts a user's records.
type Counter interface {
	Count(ctx context.Context, userID string, since time.Time) (total, recent int, err error)
}

// UserLookup loads the user for the last login time.
type UserLookup interface {
	GetByID(ctx context.Context, userID string) (users.User, error)
}

// Service reads summaries. Months start at midnight of day one in Location.
type Service struct {
	Records  Counter
	Users    UserLookup
	Location *time.Location
	Now      func() time.Time
}

// Fetch is a one-shot read of the user's summary.
func (s *Service) Fetch(ctx context.Context, userID string) (Summary, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	total, recent, err := s.Records.Count(ctx, userID, startOfMonth(now(), s.Location))
	if err != nil {
		return Summary{}, fmt.Errorf("count analyses: %w", err)
	}
	sum := Summary{Total: total, ThisMonth: recent}
	if s.Users != nil {
		u, err := s.Users.GetByID(ctx, userID)
		switch {
		case err == nil:
			sum.LastLogin = u.LastLoginAt
		case !errors.Is(err, users.ErrNotFound):
			return Summary{}, fmt.Errorf("load user: %w", err)
		}
	}
	return sum, nil
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// SilentError marks a failure that is logged but never shown.
type SilentError struct {
	UserID string
	Err    error
}

func (e *SilentError) Error() string {
	return "stats refresh for " + e.UserID + ": " + e.Err.Error()
}

func (e *SilentError) Unwrap() error { return e.Err }

// Fetcher is satisfied by *Service.
type Fetcher interface {
	Fetch(ctx context.Context, userID string) (Summary, error)
}

// Cache keeps the last good summary per user as the fallback for failed reads.
type Cache struct {
	fetcher   Fetcher
	afterFunc func(d time.Duration, f func())

	mu     sync.Mutex
	values map[string]Summary
}

func NewCache(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		values: make(map[string]Summary),
	}
}

// WithScheduler replaces time.AfterFunc; used by tests.
func (c *Cache) WithScheduler(afterFunc func(d time.Duration, f func())) *Cache {
	c.afterFunc = afterFunc
	return c
}

// Get reads a fresh summary for a page load. When the read fails the last
// good summary is returned together with the error.
func (c *Cache) Get(ctx context.Context, userID string) (Summary, error) {
	return c.Refresh(ctx, userID)
}

// Refresh re-reads the summary. On failure the cached value is kept.
func (c *Cache) Refresh(ctx context.Context, userID string) (Summary, error) {
	sum, err := c.fetcher.Fetch(ctx, userID)
	if err != nil {
		c.mu.Lock()
		stale := c.values[userID]
		c.mu.Unlock()
		return stale, err
	}
	c.mu.Lock()
	c.values[userID] = sum
	c.mu.Unlock()
	return sum, nil
}

// RefreshAfter schedules an out-of-band refresh. Failures are logged only.
func (c *Cache) RefreshAfter(userID string, d time.Duration) {
	c.afterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if _, err := c.Refresh(ctx, userID); err != nil {
			silent := &SilentError{UserID: userID, Err: err}
			telemetry.Warn("stats.refresh_failed", map[string]any{
				"user_id": userID,
				"error":   silent,
			})
		}
	})
}

// Forget drops the cached summary, e.g. after sign-out.
func (c *Cache) Forget(userID string) {
	c.mu.Lock()
	delete(c.values, userID)
	c.mu.Unlock()
}
