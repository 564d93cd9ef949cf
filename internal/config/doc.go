// Package config loads, normalizes, and validates wavelift configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables the
// deployment scripts already export (S3_BUCKET, AWS_ACCESS_KEY_ID,
// API_BASE_URL, ...). The Config type is built once at startup and passed to
// every component; nothing reads the environment after Load returns.
//
// Missing required settings surface as errors marked with
// services.ErrConfiguration so the CLI can abort before any work starts.
package config
