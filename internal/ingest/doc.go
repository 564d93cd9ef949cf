// Package ingest runs the per-item pipeline (resolve, existence probe, fetch
// and convert, upload, cleanup) under a bounded worker pool.
//
// Pipelines report onto a results channel drained by a single collector that
// owns the batch totals, so callers observe results in completion order and
// always receive exactly one result per item, including items that were never
// started because the batch was cancelled.
package ingest
