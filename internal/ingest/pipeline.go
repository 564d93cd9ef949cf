package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"wavelift/internal/locator"
	"wavelift/internal/logging"
	"wavelift/internal/media/ytdlp"
	"wavelift/internal/retry"
	"wavelift/internal/services"
	"wavelift/internal/stats"
	"wavelift/internal/textutil"
	"wavelift/internal/upload"
)

// Resolver looks up metadata for a locator.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (ytdlp.Metadata, error)
}

// Fetcher downloads and converts a locator into destDir.
type Fetcher interface {
	FetchAndConvert(ctx context.Context, locator, destDir, baseName string) (string, error)
}

// Prober answers whether an artifact key is already stored.
type Prober interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// Uploader stores a local artifact under key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (upload.Strategy, error)
}

// Deps are the adapters a pipeline drives.
type Deps struct {
	Resolver Resolver
	Fetcher  Fetcher
	Prober   Prober
	Uploader Uploader
}

// PipelineOptions configures key layout, pacing, and probe retries.
type PipelineOptions struct {
	// WorkDir is the batch directory; each item works in WorkDir/<uuid>.
	WorkDir       string
	Folder        string
	Extension     string
	MaxNameLength int
	ProbeRetry    retry.Policy
	// ResolveTimeout and UploadTimeout bound their stage's adapter call.
	// Zero leaves the call unbounded.
	ResolveTimeout time.Duration
	UploadTimeout  time.Duration
	// Limiter paces fetch starts. Nil means unlimited.
	Limiter *rate.Limiter
	// StoredURL renders the stored key for results. Defaults to the bare key.
	StoredURL func(key string) string
	Logger    *slog.Logger
}

// Pipeline runs one work item from resolution through cleanup.
type Pipeline struct {
	deps   Deps
	opts   PipelineOptions
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewPipeline validates deps and returns a pipeline.
func NewPipeline(deps Deps, opts PipelineOptions) (*Pipeline, error) {
	switch {
	case deps.Resolver == nil:
		return nil, errors.New("ingest: resolver is required")
	case deps.Fetcher == nil:
		return nil, errors.New("ingest: fetcher is required")
	case deps.Prober == nil:
		return nil, errors.New("ingest: prober is required")
	case deps.Uploader == nil:
		return nil, errors.New("ingest: uploader is required")
	}
	if strings.TrimSpace(opts.WorkDir) == "" {
		return nil, errors.New("ingest: work directory is required")
	}
	if opts.StoredURL == nil {
		opts.StoredURL = func(key string) string { return key }
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = textutil.DefaultMaxLength
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "pipeline"),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Process runs item to a terminal state and returns exactly one result. It
// never panics on adapter failure and always removes the item's working
// directory before returning.
func (p *Pipeline) Process(ctx context.Context, item locator.WorkItem) stats.Result {
	run := &itemRun{
		p:     p,
		item:  item,
		id:    p.newID(),
		state: StatePending,
	}
	run.ctx = services.WithItemID(ctx, run.id)
	run.logger = logging.WithContext(run.ctx, p.logger)
	run.workDir = filepath.Join(p.opts.WorkDir, run.id)

	started := p.now()
	res := run.execute()
	run.cleanup()
	switch res.Outcome {
	case stats.OutcomeSucceeded:
		run.transition(StateSucceeded)
	case stats.OutcomeSkipped:
		run.transition(StateSkipped)
	default:
		run.transition(StateFailed)
	}
	res.ItemID = run.id
	res.Locator = item.Locator
	res.Duration = p.now().Sub(started)
	return res
}

type itemRun struct {
	p       *Pipeline
	ctx     context.Context
	logger  *slog.Logger
	item    locator.WorkItem
	id      string
	state   State
	workDir string
	owner   string
}

func (r *itemRun) transition(to State) {
	if !CanTransition(r.state, to) {
		r.logger.Warn("illegal state transition ignored",
			logging.String("from", string(r.state)),
			logging.String("to", string(to)),
		)
		return
	}
	r.logger.Debug("state transition",
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String("from", string(r.state)),
		logging.String("to", string(to)),
	)
	r.state = to
}

// stageContext carries the item's values but not the batch cancellation, so
// a stage that has started runs to completion. Cancellation is observed only
// at the next boundary.
func (r *itemRun) stageContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(r.ctx)
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// boundary enters the next stage unless the batch was cancelled.
func (r *itemRun) boundary(to State) error {
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("cancelled before %s: %w", to, err)
	}
	r.transition(to)
	return nil
}

func (r *itemRun) fail(err error) stats.Result {
	stage := string(r.state)
	detail := services.Details(err)
	logging.WarnWithContext(r.logger, "item failed", "item_failed",
		logging.String(logging.FieldStage, stage),
		logging.String("locator", r.item.Locator),
		logging.String("detail", detail),
		logging.String(logging.FieldErrorHint, hintFor(err)),
		logging.String(logging.FieldImpact, "item not stored; counted as failed"),
	)
	return stats.Result{Owner: r.owner, Outcome: stats.OutcomeFailed, Stage: stage, Detail: detail}
}

func (r *itemRun) execute() stats.Result {
	r.owner = r.item.OwnerHint

	if err := r.boundary(StateResolvingMetadata); err != nil {
		return r.fail(err)
	}
	meta, err := r.resolve()
	if err != nil {
		return r.fail(fmt.Errorf("resolve: %w", err))
	}
	if r.owner == "" {
		r.owner = meta.Owner
	}
	title := meta.Title
	if title == "" {
		title = r.item.TitleHint
	}
	key := textutil.ArtifactKey(r.p.opts.Folder, r.owner, title, meta.ID, r.p.opts.Extension, r.p.opts.MaxNameLength)

	if err := r.boundary(StateCheckingExistence); err != nil {
		return r.fail(err)
	}
	probeCtx, cancelProbe := r.stageContext(0)
	exists, err := retry.Do(probeCtx, r.p.opts.ProbeRetry, func(ctx context.Context) (bool, error) {
		return r.p.deps.Prober.Exists(ctx, key)
	})
	cancelProbe()
	if err != nil {
		logging.WarnWithContext(r.logger, "existence probe failed; processing item anyway", "probe_failed",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check object store reachability and credentials"),
			logging.String(logging.FieldImpact, "item may be uploaded again"),
		)
		exists = false
	}
	if exists {
		r.logger.Info("item already stored",
			logging.String(logging.FieldEventType, "item_skipped"),
			logging.String("key", key),
		)
		return stats.Result{
			Owner:   r.owner,
			Outcome: stats.OutcomeSkipped,
			Stage:   string(StateCheckingExistence),
			Detail:  "already stored at " + r.p.opts.StoredURL(key),
		}
	}

	if err := r.boundary(StateFetching); err != nil {
		return r.fail(err)
	}
	if limiter := r.p.opts.Limiter; limiter != nil {
		if err := limiter.Wait(r.ctx); err != nil {
			return r.fail(fmt.Errorf("cancelled waiting for fetch slot: %w", err))
		}
	}
	artifact, err := r.fetch(meta.ID)
	if err != nil {
		return r.fail(fmt.Errorf("fetch: %w", err))
	}

	if err := r.boundary(StateConverting); err != nil {
		return r.fail(err)
	}
	info, err := os.Stat(artifact)
	if err != nil {
		return r.fail(services.Wrap(services.ErrConversion, "convert", "stat artifact", filepath.Base(artifact), err))
	}
	if info.Size() == 0 {
		return r.fail(services.Wrap(services.ErrConversion, "convert", "stat artifact", "artifact is empty", nil))
	}

	if err := r.boundary(StateUploading); err != nil {
		return r.fail(err)
	}
	uploadCtx, cancelUpload := r.stageContext(r.p.opts.UploadTimeout)
	strategy, err := r.p.deps.Uploader.Upload(uploadCtx, artifact, key)
	cancelUpload()
	if err != nil {
		return r.fail(fmt.Errorf("upload: %w", err))
	}

	r.transition(StateCleaningUp)
	stored := r.p.opts.StoredURL(key)
	r.logger.Info("item stored",
		logging.String(logging.FieldEventType, "item_stored"),
		logging.String("key", stored),
		logging.String("strategy", string(strategy)),
		logging.Int64("size_bytes", info.Size()),
	)
	return stats.Result{Owner: r.owner, Outcome: stats.OutcomeSucceeded, StoredKey: stored}
}

func (r *itemRun) resolve() (ytdlp.Metadata, error) {
	timeout := r.p.opts.ResolveTimeout
	ctx, cancel := r.stageContext(timeout)
	defer cancel()
	meta, err := r.p.deps.Resolver.Resolve(ctx, r.item.Locator)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ytdlp.Metadata{}, services.Wrap(services.ErrTimeout, "resolve", "resolve metadata",
			fmt.Sprintf("no metadata within %s", timeout), err)
	}
	return meta, err
}

// fetch runs the adapter, retrying once when the failure is unclassified.
// The retry belongs to the fetching stage, so it also runs detached.
func (r *itemRun) fetch(id string) (string, error) {
	ctx, cancel := r.stageContext(0)
	defer cancel()
	base := textutil.SanitizeToken(id)
	path, err := r.p.deps.Fetcher.FetchAndConvert(ctx, r.item.Locator, r.workDir, base)
	if err == nil || !errors.Is(err, ytdlp.ErrUnknown) {
		return path, err
	}
	r.logger.Info("retrying fetch after unclassified failure",
		logging.String(logging.FieldEventType, "fetch_retry"),
		logging.Error(err),
	)
	return r.p.deps.Fetcher.FetchAndConvert(ctx, r.item.Locator, r.workDir, base)
}

func (r *itemRun) cleanup() {
	if err := os.RemoveAll(r.workDir); err != nil {
		logging.WarnWithContext(r.logger, "cleanup failed", "cleanup_failed",
			logging.String("work_dir", r.workDir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"),
		)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "run was cancelled; requeue the batch"
	case errors.Is(err, services.ErrTimeout):
		return "remote call timed out; raise the matching timeout or retry later"
	case errors.Is(err, services.ErrResolution):
		return "locator is unavailable or has no audio"
	case errors.Is(err, services.ErrConversion):
		return "check ffmpeg installation and the source media"
	case errors.Is(err, services.ErrStorage):
		return "check object store credentials and bucket"
	default:
		return "check logs for details"
	}
}
