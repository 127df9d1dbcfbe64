package health

import (
	"context"
	"time"

	"analyzeit/internal/shared/metrics"
)

const defaultTimeout = 2 * time.Second

// Pinger is satisfied by *sqlx.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Status is the /api/health payload.
type Status struct {
	OK                bool   `json:"ok"`
	Database          string `json:"database"`
	LiveSubscriptions int64  `json:"liveSubscriptions"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	Timeout time.Duration
}

// NewService constructs a health service. A nil db means the in-memory
// stores are in use.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Timeout: defaultTimeout}
}

// Status pings the database. OK is false only when a configured database
// does not answer.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{OK: true, Database: "memory", LiveSubscriptions: metrics.LiveSubscriptions()}
	if s.DB == nil {
		return st
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		st.OK = false
		st.Database = "down"
		return st
	}
	st.Database = "up"
	return st
}
