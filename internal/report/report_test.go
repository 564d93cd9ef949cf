package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"wavelift/internal/logging"
	"wavelift/internal/report"
	"wavelift/internal/stats"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		succeeded, failed int
		want              report.Status
	}{
		{0, 0, report.StatusCompleted},
		{3, 0, report.StatusCompleted},
		{1, 1, report.StatusPartialSuccess},
		{0, 2, report.StatusFailed},
	}
	for _, tt := range tests {
		if got := report.StatusFor(tt.succeeded, tt.failed); got != tt.want {
			t.Fatalf("StatusFor(%d, %d) = %s, want %s", tt.succeeded, tt.failed, got, tt.want)
		}
	}
}

func TestBuildBoundsErrorSample(t *testing.T) {
	snap := stats.Snapshot{Total: 8, Succeeded: 1, Failed: 7}
	for i := range 7 {
		snap.Errors = append(snap.Errors, stats.ErrorRecord{Locator: fmt.Sprintf("u%d", i), Detail: "boom"})
	}
	rep := report.Build("L-1", snap, 5, time.Unix(100, 0))
	if rep.Status != report.StatusPartialSuccess {
		t.Fatalf("unexpected status %s", rep.Status)
	}
	if len(rep.ErrorSample) != 5 || rep.OmittedErrors != 2 {
		t.Fatalf("expected 5 sampled and 2 omitted, got %d/%d", len(rep.ErrorSample), rep.OmittedErrors)
	}
	if rep.ErrorSample[0].Locator != "u0" || rep.ErrorSample[4].Locator != "u4" {
		t.Fatalf("expected first errors in order, got %+v", rep.ErrorSample)
	}
	if rep.ProcessedCount != 8 {
		t.Fatalf("unexpected processed count %d", rep.ProcessedCount)
	}
}

func TestBuildEmptyBatchIsCompleted(t *testing.T) {
	rep := report.Build("L-2", stats.Snapshot{}, 0, time.Now())
	if rep.Status != report.StatusCompleted || rep.ProcessedCount != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	data, err := rep.Payload()
	if err != nil {
		t.Fatalf("Payload returned error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	for _, key := range []string{"list_id", "status", "message", "timestamp", "stats", "processed_count", "error_sample", "omitted_errors"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("payload missing %q: %s", key, data)
		}
	}
	if sample, ok := decoded["error_sample"].([]any); !ok || len(sample) != 0 {
		t.Fatalf("expected empty error sample array, got %v", decoded["error_sample"])
	}
}

type recordingNotifier struct {
	payloads [][]byte
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, payload []byte) error {
	n.payloads = append(n.payloads, append([]byte(nil), payload...))
	return n.err
}

func TestReporterSkipsWithoutListID(t *testing.T) {
	notifier := &recordingNotifier{}
	sent := report.NewReporter(notifier, logging.NewNop()).Send(context.Background(), report.Build("", stats.Snapshot{}, 5, time.Now()))
	if sent || len(notifier.payloads) != 0 {
		t.Fatal("expected report without list id to be skipped")
	}
}

func TestReporterSendsPayload(t *testing.T) {
	notifier := &recordingNotifier{}
	rep := report.Build("L-3", stats.Snapshot{Total: 1, Succeeded: 1}, 5, time.Unix(0, 0))
	if !report.NewReporter(notifier, logging.NewNop()).Send(context.Background(), rep) {
		t.Fatal("expected delivery")
	}
	want, _ := rep.Payload()
	if len(notifier.payloads) != 1 || !bytes.Equal(notifier.payloads[0], want) {
		t.Fatalf("unexpected payloads %q", notifier.payloads)
	}
}

func TestReporterSwallowsDeliveryFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("502")}
	rep := report.Build("L-4", stats.Snapshot{Total: 1, Failed: 1, Errors: []stats.ErrorRecord{{Locator: "u", Detail: "x"}}}, 5, time.Now())
	if report.NewReporter(notifier, logging.NewNop()).Send(context.Background(), rep) {
		t.Fatal("expected delivery failure to be reported as not sent")
	}
}

func TestPayloadIsDeterministic(t *testing.T) {
	rep := report.Build("L-5", stats.Snapshot{Total: 2, Succeeded: 2}, 5, time.Unix(42, 0))
	a, _ := rep.Payload()
	b, _ := rep.Payload()
	if !bytes.Equal(a, b) {
		t.Fatal("payload must be identical across calls")
	}
}
