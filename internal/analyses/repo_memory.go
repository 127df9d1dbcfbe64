package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores records in memory and is safe for concurrent use. Every
// applied write calls notify with the owning user.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Record
	notify func(userID string)
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo. notify may be nil.
func NewMemoryRepo(notify func(userID string)) *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Record),
		notify: notify,
		now:    time.Now,
	}
}

func (r *MemoryRepo) Upsert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	if existing, ok := r.byID[rec.ID]; ok && !rec.Supersedes(existing) {
		r.mu.Unlock()
		return ErrStale
	}
	rec.UpdatedAt = r.now().UTC()
	r.byID[rec.ID] = rec
	r.mu.Unlock()

	if r.notify != nil {
		r.notify(rec.UserID)
	}
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, analysisID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[analysisID]
	if !ok || rec.UserID != userID {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns the user's records, newest first.
func (r *MemoryRepo) List(ctx context.Context, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Record, 0)
	for _, rec := range r.byID {
		if rec.UserID == q.UserID {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) Count(ctx context.Context, userID string, since time.Time) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total, recent int
	for _, rec := range r.byID {
		if rec.UserID != userID {
			continue
		}
		total++
		if !rec.CreatedAt.Before(since) {
			recent++
		}
	}
	return total, recent, nil
}
