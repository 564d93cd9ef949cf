package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"wavelift/internal/logging"
	"wavelift/internal/stats"
)

// Status is the batch-level outcome sent to the control plane.
type Status string

const (
	StatusCompleted      Status = "Completed"
	StatusPartialSuccess Status = "PartialSuccess"
	StatusFailed         Status = "Failed"
)

// DefaultSampleSize bounds the error sample when none is configured.
const DefaultSampleSize = 5

// ErrorSample is one failure carried in the report.
type ErrorSample struct {
	Locator string `json:"locator"`
	Detail  string `json:"detail"`
}

// Stats mirrors the aggregate counters inside the payload.
type Stats struct {
	Total      int     `json:"total"`
	Success    int     `json:"success"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	DurationS  float64 `json:"duration_seconds"`
	AverageS   float64 `json:"average_seconds"`
	StoredKeys int     `json:"stored_keys"`
}

// CompletionReport is built once per batch from the final snapshot.
type CompletionReport struct {
	ListID         string        `json:"list_id"`
	Status         Status        `json:"status"`
	Message        string        `json:"message"`
	Timestamp      time.Time     `json:"timestamp"`
	ProcessedCount int           `json:"processed_count"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Skipped        int           `json:"skipped"`
	ErrorSample    []ErrorSample `json:"error_sample"`
	OmittedErrors  int           `json:"omitted_errors"`
	Stats          Stats         `json:"stats"`
}

// StatusFor derives the batch status from the final counts.
func StatusFor(succeeded, failed int) Status {
	switch {
	case failed == 0:
		return StatusCompleted
	case succeeded > 0:
		return StatusPartialSuccess
	default:
		return StatusFailed
	}
}

// Build assembles the report. sampleSize <= 0 uses DefaultSampleSize.
func Build(listID string, snap stats.Snapshot, sampleSize int, now time.Time) CompletionReport {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	status := StatusFor(snap.Succeeded, snap.Failed)

	n := min(sampleSize, len(snap.Errors))
	sample := make([]ErrorSample, 0, n)
	for _, rec := range snap.Errors[:n] {
		sample = append(sample, ErrorSample{Locator: rec.Locator, Detail: rec.Detail})
	}

	return CompletionReport{
		ListID:         listID,
		Status:         status,
		Message:        message(status, snap),
		Timestamp:      now.UTC(),
		ProcessedCount: snap.Processed(),
		Succeeded:      snap.Succeeded,
		Failed:         snap.Failed,
		Skipped:        snap.Skipped,
		ErrorSample:    sample,
		OmittedErrors:  len(snap.Errors) - n,
		Stats: Stats{
			Total:      snap.Total,
			Success:    snap.Succeeded,
			Skipped:    snap.Skipped,
			Failed:     snap.Failed,
			DurationS:  snap.Elapsed.Seconds(),
			AverageS:   snap.AveragePerItem().Seconds(),
			StoredKeys: len(snap.StoredKeys),
		},
	}
}

func message(status Status, snap stats.Snapshot) string {
	switch status {
	case StatusCompleted:
		return fmt.Sprintf("processed %d items: %d stored, %d skipped", snap.Processed(), snap.Succeeded, snap.Skipped)
	case StatusPartialSuccess:
		return fmt.Sprintf("processed %d items: %d stored, %d skipped, %d failed", snap.Processed(), snap.Succeeded, snap.Skipped, snap.Failed)
	default:
		return fmt.Sprintf("all %d attempted items failed", snap.Failed)
	}
}

// Payload marshals the report. The bytes are produced once and reused on
// every send attempt.
func (r CompletionReport) Payload() ([]byte, error) {
	return json.Marshal(r)
}

// Notifier delivers a payload to the control plane.
type Notifier interface {
	Notify(ctx context.Context, payload []byte) error
}

// Reporter sends completion reports and never escalates delivery failures.
type Reporter struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewReporter wraps notifier.
func NewReporter(notifier Notifier, logger *slog.Logger) *Reporter {
	return &Reporter{notifier: notifier, logger: logging.NewComponentLogger(logger, "report")}
}

// Send delivers rep and reports whether it was accepted. Reports without a
// list id are not sent.
func (r *Reporter) Send(ctx context.Context, rep CompletionReport) bool {
	logger := logging.WithContext(ctx, r.logger)
	if rep.ListID == "" {
		logger.Info("completion report not sent",
			logging.String("reason", "no list_id"),
			logging.String(logging.FieldEventType, "notify_skipped"),
		)
		return false
	}
	payload, err := rep.Payload()
	if err != nil {
		logging.ErrorWithContext(logger, "completion report encode failed", "notify_failed", logging.Error(err))
		return false
	}
	if err := r.notifier.Notify(ctx, payload); err != nil {
		logging.ErrorWithContext(logger, "completion report delivery failed", "notify_failed",
			logging.Error(err),
			logging.String("status", string(rep.Status)),
			logging.String(logging.FieldErrorHint, "control plane may re-request status; check api.base_url"),
		)
		return false
	}
	logger.Info("completion report delivered",
		logging.String("status", string(rep.Status)),
		logging.Int("processed", rep.ProcessedCount),
		logging.String(logging.FieldEventType, "notify_complete"),
	)
	return true
}
