package livequery

import (
	"context"
	"errors"
	"time"

	"analyzeit/internal/analyses"
	"analyzeit/internal/shared/metrics"
	"analyzeit/internal/shared/telemetry"
)

// Source runs the query behind a subscription.
type Source interface {
	List(ctx context.Context, q analyses.Query) ([]analyses.Record, error)
}

// Notifier delivers change signals for a user.
type Notifier interface {
	Subscribe(userID string) (<-chan struct{}, func())
}

// Snapshot is the full result of a query at one point in time. Err is set
// when the re-fetch failed; the subscription stays open.
type Snapshot struct {
	Records []analyses.Record
	At      time.Time
	Err     error
}

// Engine turns change signals into ordered query snapshots.
type Engine struct {
	Source   Source
	Notifier Notifier
	Now      func() time.Time
}

func NewEngine(source Source, notifier Notifier) *Engine {
	return &Engine{Source: source, Notifier: notifier, Now: time.Now}
}

// Subscription is one open live query. C is closed after Cancel or when the
// subscribing context ends.
type Subscription struct {
	C <-chan Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the subscription and waits for its goroutine to exit.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Subscribe opens a live query. The first snapshot is delivered immediately;
// each later one follows a change signal for q.UserID. Signals arriving while
// a fetch is in flight collapse into one re-fetch.
func (e *Engine) Subscribe(ctx context.Context, q analyses.Query) (*Subscription, error) {
	if q.UserID == "" {
		return nil, errors.New("live query requires a user")
	}
	ctx, cancel := context.WithCancel(ctx)
	signals, unsubscribe := e.Notifier.Subscribe(q.UserID)
	out := make(chan Snapshot, 1)
	sub := &Subscription{C: out, cancel: cancel, done: make(chan struct{})}

	metrics.AddLiveSubscriptions(1)
	go func() {
		defer close(sub.done)
		defer close(out)
		defer unsubscribe()
		defer metrics.AddLiveSubscriptions(-1)

		if !e.deliver(ctx, q, out) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				if !e.deliver(ctx, q, out) {
					return
				}
			}
		}
	}()
	return sub, nil
}

func (e *Engine) deliver(ctx context.Context, q analyses.Query, out chan<- Snapshot) bool {
	recs, err := e.Source.List(ctx, q)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		telemetry.Warn("livequery.fetch_failed", map[string]any{
			"user_id": q.UserID,
			"error":   err,
		})
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	snap := Snapshot{Records: recs, At: now(), Err: err}
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ Notifier = (*Broadcaster)(nil)
