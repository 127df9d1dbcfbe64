package ingest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"analyzeit/internal/queue"
	"analyzeit/internal/shared/metrics"
	"analyzeit/internal/shared/telemetry"
)

const (
	DefaultVisibilityTimeout = 60 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	waitTimeSeconds          = 20
	maxMessagesPerPoll       = 10
	receiveErrorBackoff      = time.Second
)

var receiveAttributes = []sqstypes.QueueAttributeName{
	sqstypes.QueueAttributeName("ApproximateReceiveCount"),
}

// Worker long-polls the result queue and applies each event with bounded
// concurrency. A message is deleted only once handled, or once it is known
// to be unprocessable.
type Worker struct {
	SQS               queue.API
	QueueURL          string
	Handler           *Handler
	Concurrency       int
	VisibilityTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Run polls until ctx is cancelled, then waits up to ShutdownTimeout for
// in-flight messages.
func (w *Worker) Run(ctx context.Context) error {
	concurrency := max(1, w.Concurrency)
	visibility := w.VisibilityTimeout
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	shutdownTimeout := w.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("ingest.worker.started", map[string]any{
		"queue":       w.QueueURL,
		"concurrency": concurrency,
		"visibility":  visibility.String(),
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := w.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.QueueURL),
			MaxNumberOfMessages: maxMessagesPerPoll,
			WaitTimeSeconds:     waitTimeSeconds,
			VisibilityTimeout:   int32(visibility / time.Second),
			AttributeNames:      receiveAttributes,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("ingest.receive_failed", map[string]any{"err": err})
			select {
			case <-ctx.Done():
				break pollLoop
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				w.handle(ctx, m)
			}(msg)
		}
	}

	telemetry.Info("ingest.worker.stopping", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("ingest.worker.shutdown_timeout", nil)
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, err := w.Handler.HandleMessage(ctx, body)
	fields := baseFields(msg, decoded.Record.ID, decoded.RequestID)

	if err != nil {
		metrics.IncIngestFailure()
		fields["err"] = err
		if Permanent(err) {
			meta := queue.ComputeMeta(body)
			fields["body_len"] = meta.BodyLen
			fields["body_sha256"] = meta.BodySHA
			telemetry.Error("ingest.message.unprocessable", fields)
			w.delete(ctx, msg, fields)
			return
		}
		telemetry.Error("ingest.message.failed", fields)
		return
	}

	if w.delete(ctx, msg, fields) {
		metrics.IncIngestMessage()
		fields["status"] = decoded.Record.Status
		telemetry.Info("ingest.message.applied", fields)
	}
}

func (w *Worker) delete(ctx context.Context, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("ingest.delete_failed", withErr(fields, "missing receipt handle"))
		return false
	}
	if _, err := w.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.QueueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		telemetry.Error("ingest.delete_failed", withErr(fields, err.Error()))
		return false
	}
	return true
}

func withErr(fields map[string]any, msg string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["delete_err"] = msg
	return out
}

func baseFields(msg sqstypes.Message, analysisID, requestID string) map[string]any {
	fields := map[string]any{
		"analysis_id":    analysisID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}
