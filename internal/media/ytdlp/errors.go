package ytdlp

import (
	"errors"
	"fmt"
	"strings"

	"wavelift/internal/services"
)

// Failure kinds reported by the adapter. Each wraps the matching services
// marker so callers can classify with errors.Is at either level.
var (
	ErrNotFound          = fmt.Errorf("%w: media not found", services.ErrResolution)
	ErrFormatUnavailable = fmt.Errorf("%w: audio format unavailable", services.ErrResolution)
	ErrConversionFailed  = fmt.Errorf("%w: audio conversion failed", services.ErrConversion)
	ErrUnknown           = fmt.Errorf("%w: media tool failure", services.ErrTransient)
)

// ExitError carries the tail of a failed command's stderr.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

var (
	notFoundPatterns = []string{
		"video unavailable",
		"private video",
		"this video is private",
		"has been removed",
		"does not exist",
		"http error 404",
		"http error 410",
		"unsupported url",
		"not available in your country",
		"members-only",
		"sign in to confirm your age",
	}
	formatPatterns = []string{
		"requested format is not available",
		"no video formats found",
		"no audio formats",
	}
	conversionPatterns = []string{
		"postprocessing",
		"ffmpeg not found",
		"ffprobe and ffmpeg not found",
		"conversion failed",
		"error opening output",
	}
)

// classify maps a tool failure to one of the adapter's failure kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrFormatUnavailable) ||
		errors.Is(err, ErrConversionFailed) || errors.Is(err, ErrUnknown) {
		return err
	}
	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, notFoundPatterns):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case containsAny(text, formatPatterns):
		return fmt.Errorf("%w: %w", ErrFormatUnavailable, err)
	case containsAny(text, conversionPatterns):
		return fmt.Errorf("%w: %w", ErrConversionFailed, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnknown, err)
	}
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
