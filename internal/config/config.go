package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
	AuditLog string `toml:"audit_log"`
}

// Store contains configuration for the S3-compatible object store.
type Store struct {
	Endpoint    string `toml:"endpoint"`
	Bucket      string `toml:"bucket"`
	Folder      string `toml:"folder"`
	AccessKey   string `toml:"access_key"`
	SecretKey   string `toml:"secret_key"`
	Region      string `toml:"region"`
	UseSSL      bool   `toml:"use_ssl"`
	ContentType string `toml:"content_type"`
}

// ControlPlane contains configuration for the work-source API.
type ControlPlane struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// Ingest contains configuration for batch orchestration.
type Ingest struct {
	MaxWorkers            int     `toml:"max_workers"`
	RequestTimeout        int     `toml:"request_timeout"`
	UploadTimeout         int     `toml:"upload_timeout"`
	MultipartThresholdMiB int     `toml:"multipart_threshold_mib"`
	PartSizeMiB           int     `toml:"part_size_mib"`
	ErrorSampleSize       int     `toml:"error_sample_size"`
	ProgressEvery         int     `toml:"progress_every"`
	FetchRatePerSecond    float64 `toml:"fetch_rate_per_second"`
	FetchBurst            int     `toml:"fetch_burst"`
	AudioFormat           string  `toml:"audio_format"`
	MaxNameLength         int     `toml:"max_name_length"`
}

// Retry contains configuration for remote call retries.
type Retry struct {
	MaxAttempts           int     `toml:"max_attempts"`
	BaseDelaySeconds      float64 `toml:"base_delay_seconds"`
	StoreBaseDelaySeconds float64 `toml:"store_base_delay_seconds"`
}

// Tools contains configuration for the external fetch/transcode binaries.
type Tools struct {
	YtDlpBinary    string `toml:"ytdlp_binary"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	VerifyAudio    bool   `toml:"verify_audio"`
	ResolveTimeout int    `toml:"resolve_timeout"`
	ConvertTimeout int    `toml:"convert_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for wavelift.
//
// Configuration sections by subsystem:
//   - Paths: working directory, log directory, audit CSV
//   - Store: bucket, prefix folder, credentials, region, endpoint
//   - ControlPlane: work-source API base URL
//   - Ingest: concurrency, timeouts, multipart sizing, pacing
//   - Retry: attempt count and backoff base delays
//   - Tools: yt-dlp/ffmpeg/ffprobe binaries
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Store        Store        `toml:"store"`
	ControlPlane ControlPlane `toml:"control_plane"`
	Ingest       Ingest       `toml:"ingest"`
	Retry        Retry        `toml:"retry"`
	Tools        Tools        `toml:"tools"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/wavelift/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variables are applied on top of the file, so a run configured purely through
// the environment needs no file at all.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wavelift.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.AuditLog); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit log directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequestTimeout returns the per-remote-call timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Ingest.RequestTimeout) * time.Second
}

// UploadTimeout bounds one artifact upload including its retries.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Ingest.UploadTimeout) * time.Second
}

// ResolveTimeout bounds one metadata lookup.
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.Tools.ResolveTimeout) * time.Second
}

// ConvertTimeout returns the upper bound for a single fetch+convert run.
func (c *Config) ConvertTimeout() time.Duration {
	return time.Duration(c.Tools.ConvertTimeout) * time.Second
}

// MultipartThreshold returns the artifact size above which uploads are split.
func (c *Config) MultipartThreshold() int64 {
	return int64(c.Ingest.MultipartThresholdMiB) << 20
}

// PartSize returns the fixed multipart chunk size.
func (c *Config) PartSize() int64 {
	return int64(c.Ingest.PartSizeMiB) << 20
}

// RetryBaseDelay returns the control-plane backoff base delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return secondsToDuration(c.Retry.BaseDelaySeconds)
}

// StoreRetryBaseDelay returns the object-store backoff base delay.
func (c *Config) StoreRetryBaseDelay() time.Duration {
	return secondsToDuration(c.Retry.StoreBaseDelaySeconds)
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "ledger.db")
}

// LockPath returns the single-run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "wavelift.lock")
}

// ArtifactExtension returns the extension, with leading dot, of converted audio.
func (c *Config) ArtifactExtension() string {
	return "." + strings.TrimPrefix(c.Ingest.AudioFormat, ".")
}

func secondsToDuration(value float64) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
