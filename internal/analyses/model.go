package analyses

import "time"

// Status values as stored by the analysis service.
const (
	StatusPending = "under_analysis"
	StatusSuccess = "success"
	StatusFailed  = "unsuccessful"
)

// Decision values produced by the classifier.
const (
	DecisionCompression = "compression"
	DecisionNormal      = "normal"
	DecisionUndefined   = "undefined"
)

// Record is one analysis result owned by a user.
type Record struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Status      string     `json:"status" db:"status"`
	Decision    string     `json:"decision" db:"decision"`
	Probability *float64   `json:"probability,omitempty" db:"probability"`
	ImageURL    string     `json:"image_url" db:"image_url"`
	ImageWidth  *int       `json:"image_width,omitempty" db:"image_width"`
	ImageHeight *int       `json:"image_height,omitempty" db:"image_height"`
	ImageFormat *string    `json:"image_format,omitempty" db:"image_format"`
	ImageSizeKB *float64   `json:"image_size_kb,omitempty" db:"image_size_kb"`
	UpdatedAt   time.Time  `json:"-" db:"updated_at"`
}

// Terminal reports whether the analysis has finished, successfully or not.
func (r Record) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

// Supersedes reports whether r may replace existing.
func (r Record) Supersedes(existing Record) bool {
	if existing.UserID != "" && existing.UserID != r.UserID {
		return false
	}
	return !(existing.Terminal() && !r.Terminal())
}

// Validate checks the fields the dashboard relies on.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return &ValidationError{Field: "id", Reason: "required"}
	case r.UserID == "":
		return &ValidationError{Field: "user_id", Reason: "required"}
	case r.CreatedAt.IsZero():
		return &ValidationError{Field: "created_at", Reason: "required"}
	}
	switch r.Status {
	case StatusPending, StatusSuccess, StatusFailed:
	default:
		return &ValidationError{Field: "status", Reason: "unknown value " + r.Status}
	}
	switch r.Decision {
	case "", DecisionCompression, DecisionNormal, DecisionUndefined:
	default:
		return &ValidationError{Field: "decision", Reason: "unknown value " + r.Decision}
	}
	if r.Probability != nil && (*r.Probability < 0 || *r.Probability > 1) {
		return &ValidationError{Field: "probability", Reason: "must be within [0,1]"}
	}
	if r.FinishedAt != nil && r.FinishedAt.Before(r.CreatedAt) {
		return &ValidationError{Field: "finished_at", Reason: "before created_at"}
	}
	return nil
}

// Query selects a user's records, newest first. Limit <= 0 means all.
type Query struct {
	UserID string
	Limit  int
}
