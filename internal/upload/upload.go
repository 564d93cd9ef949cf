package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"wavelift/internal/logging"
	"wavelift/internal/objectstore"
	"wavelift/internal/retry"
	"wavelift/internal/services"
)

// Backend is the subset of the object store the uploader drives.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	CreateMultipart(ctx context.Context, key string) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, number int, r io.Reader, size int64) (objectstore.Part, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []objectstore.Part) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
}

// Strategy names the transfer mode chosen for one artifact.
type Strategy string

const (
	StrategySingle    Strategy = "single"
	StrategyMultipart Strategy = "multipart"
)

const abortTimeout = 30 * time.Second

// Options configures an Uploader.
type Options struct {
	Threshold int64
	PartSize  int64
	Retry     retry.Policy
	Logger    *slog.Logger
}

// Uploader moves local artifacts into the object store.
type Uploader struct {
	backend   Backend
	threshold int64
	partSize  int64
	policy    retry.Policy
	logger    *slog.Logger
}

// New constructs an Uploader. Threshold and part size fall back to 100 MiB and 8 MiB.
func New(backend Backend, opts Options) *Uploader {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 100 << 20
	}
	partSize := opts.PartSize
	if partSize <= 0 {
		partSize = 8 << 20
	}
	return &Uploader{
		backend:   backend,
		threshold: threshold,
		partSize:  partSize,
		policy:    opts.Retry,
		logger:    logging.NewComponentLogger(opts.Logger, "upload"),
	}
}

// Choose returns the strategy for an artifact of the given size.
func (u *Uploader) Choose(size int64) Strategy {
	if size > u.threshold {
		return StrategyMultipart
	}
	return StrategySingle
}

// Upload stores localPath at key, retrying the whole transfer per the policy.
func (u *Uploader) Upload(ctx context.Context, localPath, key string) (Strategy, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "upload", "stat artifact", localPath, err)
	}
	size := info.Size()
	strategy := u.Choose(size)
	logger := logging.WithContext(ctx, u.logger)

	policy := u.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "upload attempt failed", "upload_retry",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.String("strategy", string(strategy)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check object store connectivity and credentials"),
			logging.String(logging.FieldImpact, "upload will be retried"),
		)
	}

	err = retry.Run(ctx, policy, func(ctx context.Context) error {
		if strategy == StrategyMultipart {
			return u.multipart(ctx, localPath, key, size)
		}
		return u.single(ctx, localPath, key, size)
	})
	if err != nil {
		return strategy, err
	}
	logger.Debug("artifact uploaded",
		logging.String("key", key),
		logging.String("strategy", string(strategy)),
		logging.Int64("size_bytes", size),
	)
	return strategy, nil
}

func (u *Uploader) single(ctx context.Context, localPath, key string, size int64) error {
	file, err := os.Open(localPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "upload", "open artifact", localPath, err)
	}
	defer file.Close()
	return u.backend.Put(ctx, key, file, size)
}

// multipart uploads ordered parts and completes once. Any failure aborts the
// upload before returning; complete is never called after a failed part.
func (u *Uploader) multipart(ctx context.Context, localPath, key string, size int64) (err error) {
	file, err := os.Open(localPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "upload", "open artifact", localPath, err)
	}
	defer file.Close()

	uploadID, err := u.backend.CreateMultipart(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
		defer cancel()
		if abortErr := u.backend.AbortMultipart(abortCtx, key, uploadID); abortErr != nil {
			logging.WarnWithContext(u.logger, "multipart abort failed", "multipart_abort_failed",
				logging.String("key", key),
				logging.String("upload_id", uploadID),
				logging.Error(abortErr),
				logging.String(logging.FieldErrorHint, "remove the incomplete upload with the store's lifecycle tooling"),
				logging.String(logging.FieldImpact, "partial upload may linger until expired"),
			)
		}
	}()

	parts := make([]objectstore.Part, 0, PartCount(size, u.partSize))
	number := 1
	for offset := int64(0); offset < size; offset += u.partSize {
		length := min(u.partSize, size-offset)
		section := io.NewSectionReader(file, offset, length)
		part, partErr := u.backend.UploadPart(ctx, key, uploadID, number, section, length)
		if partErr != nil {
			return partErr
		}
		if part.Number == 0 {
			part.Number = number
		}
		parts = append(parts, part)
		number++
	}
	if len(parts) == 0 {
		return fmt.Errorf("%w: multipart upload of empty artifact %s", services.ErrValidation, key)
	}
	return u.backend.CompleteMultipart(ctx, key, uploadID, parts)
}

// PartCount returns how many parts of partSize cover size bytes.
func PartCount(size, partSize int64) int {
	if size <= 0 || partSize <= 0 {
		return 0
	}
	return int((size + partSize - 1) / partSize)
}
