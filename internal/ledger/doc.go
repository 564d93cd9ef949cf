// Package ledger persists run history in SQLite: one row per batch with its
// final counts and report delivery, and one row per item outcome. The CLI's
// history and show commands read from it.
package ledger
