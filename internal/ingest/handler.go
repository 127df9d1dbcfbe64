package ingest

import (
	"context"
	"errors"

	"analyzeit/internal/analyses"
	"analyzeit/internal/queue"
	"analyzeit/internal/shared/telemetry"
)

// ErrProcess indicates the store rejected a well-formed event. The message is
// left on the queue for redelivery.
type ErrProcess struct {
	AnalysisID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "apply analysis event"
	}
	return "apply analysis event: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Permanent reports whether redelivering the message can never succeed.
func Permanent(err error) bool {
	var (
		empty   queue.ErrEmptyBody
		decode  queue.ErrDecode
		unknown queue.ErrUnknownType
		invalid *analyses.ValidationError
	)
	return errors.As(err, &empty) ||
		errors.As(err, &decode) ||
		errors.As(err, &unknown) ||
		errors.As(err, &invalid)
}

// Handler applies result events to the record store.
type Handler struct {
	Repo analyses.Repo
}

// HandleMessage parses body and upserts the carried record. A stale event,
// one that would regress a finished analysis, is acknowledged and dropped.
func (h *Handler) HandleMessage(ctx context.Context, body string) (queue.Message, error) {
	msg, _, err := queue.ParseMessage(body)
	if err != nil {
		return msg, err
	}
	if err := msg.Record.Validate(); err != nil {
		return msg, err
	}
	if msg.Record.Decision == "" {
		msg.Record.Decision = analyses.DecisionUndefined
	}

	err = h.Repo.Upsert(ctx, msg.Record)
	switch {
	case errors.Is(err, analyses.ErrStale):
		telemetry.Info("ingest.stale", map[string]any{
			"analysis_id": msg.Record.ID,
			"request_id":  msg.RequestID,
			"status":      msg.Record.Status,
		})
		return msg, nil
	case err != nil:
		return msg, ErrProcess{AnalysisID: msg.Record.ID, RequestID: msg.RequestID, Err: err}
	}
	return msg, nil
}
