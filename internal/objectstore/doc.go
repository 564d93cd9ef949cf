// Package objectstore is the S3-compatible storage boundary: existence probes,
// single-shot puts, and the multipart create/part/complete/abort calls, built
// on minio-go.
package objectstore
