package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	loginAttempts    = newLabeledCounter()
	uploadRejections = newLabeledCounter()

	analysisSubmissionsTotal        atomic.Uint64
	analysisSubmissionFailuresTotal atomic.Uint64
	tokenRefreshTotal               atomic.Uint64
	ingestMessagesTotal             atomic.Uint64
	ingestFailuresTotal             atomic.Uint64
	liveSubscriptionsActive         atomic.Int64

	submitDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000})
)

// IncLoginAttempt counts a sign-in attempt by outcome (ok or an identity error code).
func IncLoginAttempt(result string) {
	loginAttempts.Inc(result)
}

// IncAnalysisSubmitted increments the accepted submissions counter.
func IncAnalysisSubmitted() {
	analysisSubmissionsTotal.Add(1)
}

// IncAnalysisSubmitFailed increments the failed submissions counter.
func IncAnalysisSubmitFailed() {
	analysisSubmissionFailuresTotal.Add(1)
}

// SubmissionFailures returns the failed submissions counter.
func SubmissionFailures() uint64 {
	return analysisSubmissionFailuresTotal.Load()
}

// IncUploadRejected counts a selected file refused before any submission,
// by reason (too_large, unsupported_format).
func IncUploadRejected(reason string) {
	uploadRejections.Inc(reason)
}

// UploadRejections returns the rejection count for reason.
func UploadRejections(reason string) uint64 {
	return uploadRejections.Snapshot()[reason]
}

// IncTokenRefresh counts issued replacement ID tokens.
func IncTokenRefresh() {
	tokenRefreshTotal.Add(1)
}

// IncIngestMessage counts queue messages applied to the record store.
func IncIngestMessage() {
	ingestMessagesTotal.Add(1)
}

// IncIngestFailure counts queue messages that could not be applied.
func IncIngestFailure() {
	ingestFailuresTotal.Add(1)
}

// AddLiveSubscriptions adjusts the open live-query gauge.
func AddLiveSubscriptions(delta int64) {
	liveSubscriptionsActive.Add(delta)
}

// LiveSubscriptions returns the current open live-query count.
func LiveSubscriptions() int64 {
	return liveSubscriptionsActive.Load()
}

// ObserveSubmitDurationMs records a submission round-trip in milliseconds.
func ObserveSubmitDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	submitDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeLabeledCounter(&buf, "login_attempts_total", "Sign-in attempts by result", "result", loginAttempts.Snapshot())
	writeCounter(&buf, "analysis_submissions_total", "Images accepted by the analysis API", analysisSubmissionsTotal.Load())
	writeCounter(&buf, "analysis_submission_failures_total", "Image submissions the analysis API failed", analysisSubmissionFailuresTotal.Load())
	writeLabeledCounter(&buf, "upload_rejections_total", "Selected files refused before submission", "reason", uploadRejections.Snapshot())
	writeCounter(&buf, "token_refresh_total", "Replacement ID tokens issued", tokenRefreshTotal.Load())
	writeCounter(&buf, "ingest_messages_total", "Result events applied", ingestMessagesTotal.Load())
	writeCounter(&buf, "ingest_failures_total", "Result events that failed", ingestFailuresTotal.Load())
	writeGauge(&buf, "live_subscriptions_active", "Open live-query subscriptions", liveSubscriptionsActive.Load())
	writeHistogram(&buf, "analysis_submit_duration_ms", "Submission round-trip in milliseconds", submitDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (c *labeledCounter) Inc(label string) {
	c.mu.Lock()
	c.values[label]++
	c.mu.Unlock()
}

func (c *labeledCounter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
