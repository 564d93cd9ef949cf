package runner

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"wavelift/internal/config"
	"wavelift/internal/ingest"
	"wavelift/internal/logging"
	"wavelift/internal/media/ffprobe"
	"wavelift/internal/media/ytdlp"
	"wavelift/internal/objectstore"
	"wavelift/internal/retry"
	"wavelift/internal/upload"
)

// Adapters bundles the production pipeline dependencies and the store they
// share, so callers can reuse the store for preflight and URL rendering.
type Adapters struct {
	Deps  ingest.Deps
	Store *objectstore.Store
	Cache *ytdlp.MetadataCache
}

// NewAdapters wires yt-dlp, the metadata cache, the object store and the
// uploader from cfg.
func NewAdapters(cfg *config.Config, logger *slog.Logger) (*Adapters, error) {
	var opts []ytdlp.Option
	if cfg.Tools.VerifyAudio {
		opts = append(opts, ytdlp.WithVerifier(ffprobe.Verifier(cfg.Tools.FFprobeBinary)))
	}
	client, err := ytdlp.New(cfg.Tools.YtDlpBinary, cfg.Tools.FFmpegBinary, cfg.Ingest.AudioFormat, cfg.ConvertTimeout(), opts...)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp client: %w", err)
	}
	cache := ytdlp.NewMetadataCache(client, filepath.Join(cfg.Paths.LogDir, "metadata"), logger)

	store, err := objectstore.New(objectstore.FromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}

	// Whole transfers can outlast request_timeout, so uploads are bounded only
	// by cancellation.
	uploader := upload.New(store, upload.Options{
		Threshold: cfg.MultipartThreshold(),
		PartSize:  cfg.PartSize(),
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.StoreRetryBaseDelay(),
		},
		Logger: logger,
	})

	return &Adapters{
		Deps: ingest.Deps{
			Resolver: cache,
			Fetcher:  client,
			Prober:   store,
			Uploader: uploader,
		},
		Store: store,
		Cache: cache,
	}, nil
}

// probePolicy is the retry boundary for existence probes.
func probePolicy(cfg *config.Config, logger *slog.Logger) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.StoreRetryBaseDelay(),
		Timeout:     cfg.RequestTimeout(),
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("existence probe attempt failed",
				logging.Int("attempt", attempt),
				logging.Duration("backoff", delay),
				logging.Error(err),
				logging.String(logging.FieldEventType, "probe_retry"),
			)
		},
	}
}
