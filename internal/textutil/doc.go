// Package textutil turns untrusted titles, owners, and identifiers into safe
// object-store path segments.
//
// Sanitize is idempotent and length-bounded; ArtifactKey composes the
// folder/owner/title_id.ext layout used for stored audio artifacts.
// SanitizeToken produces lowercase tokens for local working paths.
package textutil
