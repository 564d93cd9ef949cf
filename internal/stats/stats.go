// Package stats accumulates per-item pipeline outcomes into batch totals.
package stats

import (
	"sync"
	"time"
)

// Outcome is the terminal state of one pipeline.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota + 1
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is produced exactly once per admitted work item.
type Result struct {
	ItemID    string
	Locator   string
	Owner     string
	Outcome   Outcome
	Stage     string
	Detail    string
	StoredKey string
	Duration  time.Duration
}

// ErrorRecord pairs a failed locator with its detail.
type ErrorRecord struct {
	Locator string
	Detail  string
}

// Snapshot is a point-in-time copy of the batch totals.
type Snapshot struct {
	Total      int
	Succeeded  int
	Skipped    int
	Failed     int
	StoredKeys []string
	Errors     []ErrorRecord
	StartedAt  time.Time
	Elapsed    time.Duration
}

// Counts is the counters-only view of a Snapshot, returned on every Record.
type Counts struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Elapsed   time.Duration
}

// Processed is the number of recorded results.
func (c Counts) Processed() int {
	return c.Succeeded + c.Skipped + c.Failed
}

// Remaining is the number of admitted items without a result yet.
func (c Counts) Remaining() int {
	if r := c.Total - c.Processed(); r > 0 {
		return r
	}
	return 0
}

// AveragePerItem is the mean wall time per processed item.
func (c Counts) AveragePerItem() time.Duration {
	if n := c.Processed(); n > 0 {
		return c.Elapsed / time.Duration(n)
	}
	return 0
}

// ETA extrapolates the remaining wall time from the current rate.
func (c Counts) ETA() time.Duration {
	return c.AveragePerItem() * time.Duration(c.Remaining())
}

// Counts drops the per-item lists.
func (s Snapshot) Counts() Counts {
	return Counts{Total: s.Total, Succeeded: s.Succeeded, Skipped: s.Skipped, Failed: s.Failed, Elapsed: s.Elapsed}
}

// Processed is the number of recorded results.
func (s Snapshot) Processed() int {
	return s.Counts().Processed()
}

// Remaining is the number of admitted items without a result yet.
func (s Snapshot) Remaining() int {
	return s.Counts().Remaining()
}

// AveragePerItem is the mean wall time per processed item.
func (s Snapshot) AveragePerItem() time.Duration {
	return s.Counts().AveragePerItem()
}

// ETA extrapolates the remaining wall time from the current rate.
func (s Snapshot) ETA() time.Duration {
	return s.Counts().ETA()
}

// Aggregator owns the mutable batch totals. Each Record call applies exactly
// one increment; all methods are safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	snap    Snapshot
}

// NewAggregator starts an aggregate for total admitted items.
func NewAggregator(total int) *Aggregator {
	return newAggregator(total, time.Now)
}

func newAggregator(total int, now func() time.Time) *Aggregator {
	started := now()
	return &Aggregator{
		now:     now,
		started: started,
		snap:    Snapshot{Total: total, StartedAt: started},
	}
}

// Record applies one result and returns the updated counters. The stored key
// and error lists are only copied by Snapshot.
func (a *Aggregator) Record(r Result) Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch r.Outcome {
	case OutcomeSucceeded:
		a.snap.Succeeded++
		if r.StoredKey != "" {
			a.snap.StoredKeys = append(a.snap.StoredKeys, r.StoredKey)
		}
	case OutcomeSkipped:
		a.snap.Skipped++
	default:
		a.snap.Failed++
		detail := r.Detail
		if detail == "" {
			detail = "unknown error"
		}
		a.snap.Errors = append(a.snap.Errors, ErrorRecord{Locator: r.Locator, Detail: detail})
	}
	counts := a.snap.Counts()
	counts.Elapsed = a.now().Sub(a.started)
	return counts
}

// Snapshot returns a deep copy of the current totals.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Snapshot {
	out := a.snap
	out.StoredKeys = append([]string(nil), a.snap.StoredKeys...)
	out.Errors = append([]ErrorRecord(nil), a.snap.Errors...)
	out.Elapsed = a.now().Sub(a.started)
	return out
}
