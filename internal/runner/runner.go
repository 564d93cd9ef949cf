package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/time/rate"

	"wavelift/internal/audit"
	"wavelift/internal/config"
	"wavelift/internal/controlplane"
	"wavelift/internal/ingest"
	"wavelift/internal/ledger"
	"wavelift/internal/locator"
	"wavelift/internal/logging"
	"wavelift/internal/report"
	"wavelift/internal/services"
	"wavelift/internal/stats"
	"wavelift/internal/textutil"
)

// ErrLocked is returned when another run holds the lock file.
var ErrLocked = errors.New("another wavelift run is already in progress")

// ControlPlane is the work source and report sink.
type ControlPlane interface {
	FetchBatch(ctx context.Context) (controlplane.Batch, error)
	Notify(ctx context.Context, payload []byte) error
}

// Options configures a Runner. Ledger and Audit are optional.
type Options struct {
	Config       *config.Config
	Logger       *slog.Logger
	ControlPlane ControlPlane
	Deps         ingest.Deps
	// StoredURL renders stored keys in results and reports.
	StoredURL func(key string) string
	Ledger    *ledger.Ledger
	Audit     *audit.Trail
}

// Summary describes one completed run.
type Summary struct {
	ListID     string
	LedgerID   int64
	Snapshot   stats.Snapshot
	Report     report.CompletionReport
	ReportSent bool
	Rejections []locator.Rejection
	Results    []stats.Result
}

// Runner executes one batch end to end.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	cp     ControlPlane
	deps   ingest.Deps
	url    func(string) string
	ledger *ledger.Ledger
	audit  *audit.Trail
	now    func() time.Time
}

// New validates opts and returns a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("runner requires config")
	}
	if opts.ControlPlane == nil {
		return nil, errors.New("runner requires a control plane client")
	}
	return &Runner{
		cfg:    opts.Config,
		logger: logging.NewComponentLogger(opts.Logger, "runner"),
		cp:     opts.ControlPlane,
		deps:   opts.Deps,
		url:    opts.StoredURL,
		ledger: opts.Ledger,
		audit:  opts.Audit,
		now:    time.Now,
	}, nil
}

// Run fetches one batch, processes it, and sends the completion report. Only
// configuration errors, a held lock, and an exhausted batch fetch return an
// error; per-item failures are reported in the summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if err := r.cfg.EnsureDirectories(); err != nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "runner", "prepare directories", "", err)
	}
	lock := flock.New(r.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return Summary{}, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	batch, err := r.cp.FetchBatch(ctx)
	if err != nil {
		logging.ErrorWithContext(r.logger, "batch fetch failed; aborting run", "batch_fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check control_plane.base_url and service health"),
		)
		return Summary{}, fmt.Errorf("fetch batch: %w", err)
	}

	ctx = services.WithBatchID(ctx, batch.ListID)
	logger := logging.WithContext(ctx, r.logger)

	items, rejections := locator.ExtractJSON(batch.Records)
	for _, rej := range rejections {
		logging.WarnWithContext(logger, "record rejected", "record_rejected",
			logging.Int("index", rej.Index),
			logging.String("record", rej.Record),
			logging.String("reason", rej.Reason),
			logging.String(logging.FieldErrorHint, "fix the record in the control plane list"),
			logging.String(logging.FieldImpact, "record skipped and not counted"),
		)
	}
	logger.Info("batch received",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("records", len(batch.Records)),
		logging.Int("items", len(items)),
		logging.Int("rejected", len(rejections)),
	)

	started := r.now()
	var ledgerID int64
	if r.ledger != nil {
		ledgerID, err = r.ledger.BeginBatch(ctx, batch.ListID, len(items), len(rejections), started)
		if err != nil {
			logger.Warn("ledger begin failed", logging.Error(err))
		}
	}

	results, snap, err := r.process(ctx, logger, batch.ListID, ledgerID, items)
	if err != nil {
		return Summary{}, err
	}
	r.logStats(logger, snap)

	rep := report.Build(batch.ListID, snap, r.cfg.Ingest.ErrorSampleSize, r.now())
	// The report still goes out after cancellation so the control plane learns
	// which items were not started.
	sent := report.NewReporter(r.cp, r.logger).Send(context.WithoutCancel(ctx), rep)

	if r.ledger != nil && ledgerID != 0 {
		if err := r.ledger.FinishBatch(context.WithoutCancel(ctx), ledgerID, string(rep.Status), snap, sent, r.now()); err != nil {
			logger.Warn("ledger finish failed", logging.Error(err))
		}
	}

	return Summary{
		ListID:     batch.ListID,
		LedgerID:   ledgerID,
		Snapshot:   snap,
		Report:     rep,
		ReportSent: sent,
		Rejections: rejections,
		Results:    results,
	}, nil
}

func (r *Runner) process(ctx context.Context, logger *slog.Logger, listID string, ledgerID int64, items []locator.WorkItem) ([]stats.Result, stats.Snapshot, error) {
	if len(items) == 0 {
		return nil, stats.NewAggregator(0).Snapshot(), nil
	}

	batchDir := filepath.Join(r.cfg.Paths.WorkDir, batchDirName(listID, r.now()))
	pipeline, err := ingest.NewPipeline(r.deps, ingest.PipelineOptions{
		WorkDir:        batchDir,
		Folder:         r.cfg.Store.Folder,
		Extension:      r.cfg.ArtifactExtension(),
		MaxNameLength:  r.cfg.Ingest.MaxNameLength,
		ProbeRetry:     probePolicy(r.cfg, logger),
		ResolveTimeout: r.cfg.ResolveTimeout(),
		UploadTimeout:  r.cfg.UploadTimeout(),
		Limiter:        newLimiter(r.cfg),
		StoredURL:      r.url,
		Logger:         r.logger,
	})
	if err != nil {
		return nil, stats.Snapshot{}, services.Wrap(services.ErrConfiguration, "runner", "build pipeline", "", err)
	}
	defer func() {
		// Items clean their own directories; only the empty parent remains.
		if err := os.Remove(batchDir); err != nil && !os.IsNotExist(err) {
			logger.Debug("batch directory not removed", logging.String("path", batchDir), logging.Error(err))
		}
	}()

	ctrl := ingest.NewController(pipeline, ingest.ControllerOptions{
		Workers:       r.cfg.Ingest.MaxWorkers,
		ProgressEvery: r.cfg.Ingest.ProgressEvery,
		Logger:        r.logger,
		OnResult: func(res stats.Result, _ stats.Counts) {
			r.record(ctx, logger, ledgerID, res)
		},
	})
	results, snap := ctrl.Run(ctx, items)
	return results, snap, nil
}

// record persists one result. It runs on the collector goroutine only.
func (r *Runner) record(ctx context.Context, logger *slog.Logger, ledgerID int64, res stats.Result) {
	now := r.now()
	message := res.Detail
	if res.Outcome == stats.OutcomeSucceeded {
		message = res.StoredKey
	}
	if err := r.audit.Append(audit.Row{
		Time:    now,
		Owner:   res.Owner,
		Locator: res.Locator,
		Status:  res.Outcome.String(),
		Message: message,
	}); err != nil {
		logger.Warn("audit append failed", logging.Error(err), logging.String("locator", res.Locator))
	}
	if r.ledger != nil && ledgerID != 0 {
		if err := r.ledger.RecordItem(context.WithoutCancel(ctx), ledgerID, res, now); err != nil {
			logger.Warn("ledger record failed", logging.Error(err), logging.String("locator", res.Locator))
		}
	}
}

func (r *Runner) logStats(logger *slog.Logger, snap stats.Snapshot) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "batch_summary"),
		logging.Int("total", snap.Total),
		logging.Int("succeeded", snap.Succeeded),
		logging.Int("skipped", snap.Skipped),
		logging.Int("failed", snap.Failed),
		logging.Duration("elapsed", snap.Elapsed),
		logging.Duration("average_per_item", snap.AveragePerItem()),
	}
	sample := r.cfg.Ingest.ErrorSampleSize
	if sample <= 0 {
		sample = report.DefaultSampleSize
	}
	for i, e := range snap.Errors {
		if i >= sample {
			attrs = append(attrs, logging.Int("omitted_errors", len(snap.Errors)-sample))
			break
		}
		attrs = append(attrs, logging.String(fmt.Sprintf("error_%d", i+1), e.Locator+": "+e.Detail))
	}
	logger.Info("batch finished", logging.Args(attrs...)...)
}

func newLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.Ingest.FetchRatePerSecond <= 0 {
		return nil
	}
	burst := cfg.Ingest.FetchBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.Ingest.FetchRatePerSecond), burst)
}

func batchDirName(listID string, now time.Time) string {
	if listID == "" {
		return "batch-" + now.UTC().Format("20060102T150405")
	}
	return "batch-" + textutil.SanitizeToken(listID)
}
