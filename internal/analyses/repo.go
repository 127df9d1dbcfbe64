package analyses

import (
	"context"
	"time"
)

// Repo defines persistence operations for analysis records.
type Repo interface {
	List(ctx context.Context, q Query) ([]Record, error)
	Get(ctx context.Context, userID, analysisID string) (Record, error)
	Upsert(ctx context.Context, rec Record) error
	// Count returns the user's total and how many were created at or after since.
	Count(ctx context.Context, userID string, since time.Time) (total, recent int, err error)
}
