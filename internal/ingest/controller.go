package ingest

import (
	"context"
	"log/slog"
	"sync"

	"wavelift/internal/locator"
	"wavelift/internal/logging"
	"wavelift/internal/stats"
)

// DefaultWorkers caps concurrent pipelines when no limit is configured.
const DefaultWorkers = 8

// NotStartedDetail is recorded for items the controller never admitted.
const NotStartedDetail = "not started: cancelled"

// Processor turns one work item into exactly one result.
type Processor interface {
	Process(ctx context.Context, item locator.WorkItem) stats.Result
}

// ControllerOptions configures the worker pool and the collector.
type ControllerOptions struct {
	Workers       int
	ProgressEvery int
	// OnResult is called from the single collector goroutine, in completion
	// order, once per result.
	OnResult func(stats.Result, stats.Counts)
	Logger   *slog.Logger
}

// Controller fans work items out to a bounded pool of pipelines.
type Controller struct {
	proc     Processor
	workers  int
	every    int
	onResult func(stats.Result, stats.Counts)
	logger   *slog.Logger
}

// NewController returns a controller driving proc.
func NewController(proc Processor, opts ControllerOptions) *Controller {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = 10
	}
	return &Controller{
		proc:     proc,
		workers:  workers,
		every:    every,
		onResult: opts.OnResult,
		logger:   logging.NewComponentLogger(opts.Logger, "controller"),
	}
}

// Run processes every item and returns the results in completion order along
// with the final totals. len(results) always equals len(items); items not
// admitted before ctx is cancelled are reported as failed.
func (c *Controller) Run(ctx context.Context, items []locator.WorkItem) ([]stats.Result, stats.Snapshot) {
	agg := stats.NewAggregator(len(items))
	if len(items) == 0 {
		return nil, agg.Snapshot()
	}

	workers := c.workers
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan locator.WorkItem)
	results := make(chan stats.Result, workers)
	dispatched := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				results <- c.proc.Process(ctx, item)
			}
		}()
	}

	go func() {
		defer close(dispatched)
		defer close(jobs)
		for i, item := range items {
			if ctx.Err() != nil {
				c.drainUnadmitted(items[i:], results)
				return
			}
			select {
			case jobs <- item:
			case <-ctx.Done():
				c.drainUnadmitted(items[i:], results)
				return
			}
		}
	}()

	go func() {
		<-dispatched
		wg.Wait()
		close(results)
	}()

	sampler := logging.NewProgressSampler(c.every, len(items))
	out := make([]stats.Result, 0, len(items))
	for res := range results {
		counts := agg.Record(res)
		out = append(out, res)
		c.logResult(res)
		if c.onResult != nil {
			c.onResult(res, counts)
		}
		if sampler.ShouldLog(counts.Processed()) {
			c.logger.Info("batch progress",
				logging.String(logging.FieldEventType, "batch_progress"),
				logging.Int("processed", counts.Processed()),
				logging.Int("total", counts.Total),
				logging.Int("succeeded", counts.Succeeded),
				logging.Int("skipped", counts.Skipped),
				logging.Int("failed", counts.Failed),
				logging.Duration("elapsed", counts.Elapsed),
				logging.Duration("eta", counts.ETA()),
			)
		}
	}
	return out, agg.Snapshot()
}

func (c *Controller) drainUnadmitted(items []locator.WorkItem, results chan<- stats.Result) {
	if len(items) > 0 {
		c.logger.Warn("batch cancelled; remaining items not started",
			logging.String(logging.FieldEventType, "batch_cancelled"),
			logging.Int("not_started", len(items)),
		)
	}
	for _, item := range items {
		results <- stats.Result{
			Locator: item.Locator,
			Owner:   item.OwnerHint,
			Outcome: stats.OutcomeFailed,
			Stage:   string(StatePending),
			Detail:  NotStartedDetail,
		}
	}
}

func (c *Controller) logResult(res stats.Result) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "item_complete"),
		logging.String(logging.FieldItemID, res.ItemID),
		logging.String("locator", res.Locator),
		logging.String("outcome", res.Outcome.String()),
		logging.Duration("duration", res.Duration),
	}
	if res.StoredKey != "" {
		attrs = append(attrs, logging.String("stored_key", res.StoredKey))
	}
	if res.Detail != "" {
		attrs = append(attrs, logging.String("detail", res.Detail))
	}
	c.logger.Info("item complete", logging.Args(attrs...)...)
}
