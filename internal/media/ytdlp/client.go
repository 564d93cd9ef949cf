package ytdlp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Metadata is what the adapter learns about a locator before fetching it.
type Metadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Owner    string  `json:"owner"`
	Duration float64 `json:"duration,omitempty"`
}

// Verifier inspects a converted artifact.
type Verifier func(ctx context.Context, path string) error

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithVerifier runs v against every converted artifact.
func WithVerifier(v Verifier) Option {
	return func(c *Client) {
		c.verify = v
	}
}

// Client wraps yt-dlp for metadata resolution and audio extraction.
type Client struct {
	binary         string
	ffmpeg         string
	format         string
	convertTimeout time.Duration
	exec           Executor
	verify         Verifier
}

const audioSelector = "bestaudio[ext=m4a]/bestaudio[ext=mp3]/bestaudio/best"

// New constructs a yt-dlp client. audioFormat is the ffmpeg target codec
// (e.g. "wav").
func New(binary, ffmpegBinary, audioFormat string, convertTimeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	audioFormat = strings.TrimPrefix(strings.TrimSpace(audioFormat), ".")
	if audioFormat == "" {
		audioFormat = "wav"
	}
	client := &Client{
		binary:         binary,
		ffmpeg:         strings.TrimSpace(ffmpegBinary),
		format:         audioFormat,
		convertTimeout: convertTimeout,
		exec:           commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Extension returns the artifact extension including the dot.
func (c *Client) Extension() string {
	return "." + c.format
}

type infoJSON struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
	UploaderID string  `json:"uploader_id"`
	Duration   float64 `json:"duration"`
}

// Resolve fetches metadata without downloading media.
func (c *Client) Resolve(ctx context.Context, locator string) (Metadata, error) {
	var out strings.Builder
	args := []string{"--dump-json", "--skip-download", "--no-playlist", "--no-warnings", "--", locator}
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return Metadata{}, fmt.Errorf("%w: yt-dlp resolve timed out: %w", ErrUnknown, ctxErr)
			}
			return Metadata{}, ctxErr
		}
		return Metadata{}, classify(fmt.Errorf("yt-dlp resolve: %w", err))
	}

	raw := strings.TrimSpace(out.String())
	if raw == "" {
		return Metadata{}, fmt.Errorf("%w: yt-dlp returned no metadata", ErrNotFound)
	}
	// A playlist-like locator can print one object per line; the first wins.
	if idx := strings.IndexByte(raw, '\n'); idx > 0 {
		raw = raw[:idx]
	}
	var info infoJSON
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return Metadata{}, fmt.Errorf("%w: parse metadata: %w", ErrUnknown, err)
	}

	meta := Metadata{
		ID:       strings.TrimSpace(info.ID),
		Title:    strings.TrimSpace(info.Title),
		Owner:    firstNonEmpty(info.Uploader, info.Channel, info.UploaderID),
		Duration: info.Duration,
	}
	if meta.ID == "" {
		meta.ID = LocatorHash(locator)[:12]
	}
	return meta, nil
}

// FetchAndConvert downloads the best audio stream for locator and converts
// it into destDir/baseName.<format>. The returned path always exists.
func (c *Client) FetchAndConvert(ctx context.Context, locator, destDir, baseName string) (string, error) {
	if destDir == "" {
		return "", errors.New("destination directory required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	baseName = strings.TrimSpace(baseName)
	if baseName == "" {
		baseName = "artifact"
	}

	runCtx := ctx
	if c.convertTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.convertTimeout)
		defer cancel()
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		"--format", audioSelector,
		"--extract-audio",
		"--audio-format", c.format,
		"--output", filepath.Join(destDir, baseName+".%(ext)s"),
	}
	if c.ffmpeg != "" && strings.ContainsRune(c.ffmpeg, filepath.Separator) {
		args = append(args, "--ffmpeg-location", c.ffmpeg)
	}
	args = append(args, "--", locator)

	if err := c.exec.Run(runCtx, c.binary, args, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: exceeded %s", ErrConversionFailed, c.convertTimeout)
		}
		return "", classify(fmt.Errorf("yt-dlp fetch: %w", err))
	}

	path := filepath.Join(destDir, baseName+c.Extension())
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: expected output %s: %w", ErrConversionFailed, filepath.Base(path), err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: empty output %s", ErrConversionFailed, filepath.Base(path))
	}
	if c.verify != nil {
		if err := c.verify(ctx, path); err != nil {
			return "", fmt.Errorf("%w: verify %s: %w", ErrConversionFailed, filepath.Base(path), err)
		}
	}
	return path, nil
}

// LocatorHash is the stable cache key for a locator.
func LocatorHash(locator string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(locator)))
	return hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
