// Package ytdlp adapts the yt-dlp command line tool: metadata resolution,
// best-audio download, and ffmpeg conversion into the configured audio
// format.
//
// Failures are reported as ErrNotFound, ErrFormatUnavailable,
// ErrConversionFailed, or ErrUnknown. The adapter never retries; callers own
// retry policy.
package ytdlp
