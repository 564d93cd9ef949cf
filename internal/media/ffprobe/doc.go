// Package ffprobe wraps the ffprobe CLI to inspect converted audio artifacts.
//
// Inspect decodes ffprobe's JSON output; Verifier adapts it into a check that
// rejects artifacts without an audio stream or with no duration.
package ffprobe
