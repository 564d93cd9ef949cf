// Package services defines shared utilities consumed by the ingestion pipeline
// stages and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, item IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     permanent (validation, resolution, conversion) or retryable (transient,
//     storage, timeout).
//
// Use these helpers when wiring new stage logic so error handling and retry
// decisions stay uniform across the pipeline.
package services
