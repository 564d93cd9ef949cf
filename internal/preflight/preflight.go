package preflight

import (
	"context"
	"fmt"
	"strings"

	"wavelift/internal/config"
	"wavelift/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that gate a run. The bucket probe is skipped when
// bucket is nil.
func RunAll(ctx context.Context, cfg *config.Config, bucket BucketChecker) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckBinaries(cfg)...)
	if bucket != nil {
		results = append(results, CheckBucket(ctx, bucket, cfg.Store.Bucket))
	}
	return results
}

// Err folds failed results into one configuration error, or nil when every
// check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "checks", strings.Join(failed, "; "), nil)
}
