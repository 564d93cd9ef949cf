// Package runner executes a single batch: it takes the run lock, fetches work
// from the control plane, extracts locators, drives the ingest controller,
// records every result in the audit trail and ledger, and sends the completion
// report.
package runner
