package analyses

import "errors"

var (
	ErrNotFound = errors.New("analysis not found")
	// ErrStale means an upsert lost to the stored record: a terminal result is
	// never replaced by a pending one, and records never change owner.
	ErrStale = errors.New("stale analysis update")
)

// ValidationError describes a malformed record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid analysis " + e.Field + ": " + e.Reason
}
