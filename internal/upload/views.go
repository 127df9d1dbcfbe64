package upload

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DraftTTL bounds how long an idle view keeps its staged image.
	DraftTTL = 30 * time.Minute
	// DefaultMaxViews caps the number of live drafts held in memory.
	DefaultMaxViews = 1024
)

// Views holds one Flow per (user, view) in an expiring LRU cache.
type Views struct {
	mu          sync.Mutex
	cache       *expirable.LRU[string, *Flow]
	submitter   Submitter
	afterSubmit func(userID string)
	now         func() time.Time
}

// NewViews builds the draft cache. afterSubmit runs once per successful
// submission.
func NewViews(submitter Submitter, afterSubmit func(userID string), size int, ttl time.Duration) *Views {
	if size <= 0 {
		size = DefaultMaxViews
	}
	if ttl <= 0 {
		ttl = DraftTTL
	}
	return &Views{
		cache:       expirable.NewLRU[string, *Flow](size, nil, ttl),
		submitter:   submitter,
		afterSubmit: afterSubmit,
		now:         time.Now,
	}
}

// WithClock sets the clock for flows created afterwards.
func (v *Views) WithClock(now func() time.Time) *Views {
	v.now = now
	return v
}

// Get returns the flow for the view, creating an empty one.
func (v *Views) Get(userID, viewID string) *Flow {
	key := userID + "/" + viewID
	v.mu.Lock()
	defer v.mu.Unlock()
	if f, ok := v.cache.Get(key); ok {
		return f
	}
	f := newFlow(userID, viewID, v.submitter, v.afterSubmit, v.now)
	v.cache.Add(key, f)
	return f
}

// Len returns the number of cached views.
func (v *Views) Len() int {
	return v.cache.Len()
}
