package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"wavelift/internal/config"
	"wavelift/internal/deps"
)

// BucketChecker confirms the destination bucket is reachable.
type BucketChecker interface {
	CheckBucket(ctx context.Context) error
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinaries converts dependency statuses into preflight results. Optional
// binaries that are missing pass with an explanatory detail.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		switch {
		case s.Available:
			results = append(results, Result{Name: s.Name, Passed: true, Detail: s.Path})
		case s.Optional:
			results = append(results, Result{Name: s.Name, Passed: true, Detail: s.Detail + " (optional)"})
		default:
			results = append(results, Result{Name: s.Name, Detail: s.Detail})
		}
	}
	return results
}

// CheckBucket verifies the destination bucket with a bounded timeout and a
// single attempt.
func CheckBucket(ctx context.Context, checker BucketChecker, bucket string) Result {
	const name = "Object store"
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := checker.CheckBucket(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("bucket %s: %v", bucket, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %s reachable", bucket)}
}
