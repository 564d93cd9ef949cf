package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// fillEnv maps environment variables onto string fields that have no usable
// default. A variable only fills a field the config file left empty.
func (c *Config) fillEnv() map[string]*string {
	return map[string]*string{
		"S3_BUCKET":             &c.Store.Bucket,
		"S3_FOLDER":             &c.Store.Folder,
		"AWS_ACCESS_KEY_ID":     &c.Store.AccessKey,
		"AWS_SECRET_ACCESS_KEY": &c.Store.SecretKey,
		"API_BASE_URL":          &c.ControlPlane.BaseURL,
	}
}

// overrideEnv maps environment variables onto defaulted string fields. These
// override the file when set.
func (c *Config) overrideEnv() map[string]*string {
	return map[string]*string{
		"S3_ENDPOINT":        &c.Store.Endpoint,
		"AWS_REGION":         &c.Store.Region,
		"WAVELIFT_LOG_LEVEL": &c.Logging.Level,
	}
}

// intEnv maps environment variables onto numeric knobs. These override the
// file when set.
func (c *Config) intEnv() map[string]*int {
	return map[string]*int{
		"WAVELIFT_MAX_WORKERS":     &c.Ingest.MaxWorkers,
		"WAVELIFT_MAX_RETRIES":     &c.Retry.MaxAttempts,
		"WAVELIFT_REQUEST_TIMEOUT": &c.Ingest.RequestTimeout,
		"WAVELIFT_MULTIPART_MIB":   &c.Ingest.MultipartThresholdMiB,
		"WAVELIFT_PART_SIZE_MIB":   &c.Ingest.PartSizeMiB,
	}
}

func (c *Config) applyEnv() error {
	for key, field := range c.fillEnv() {
		if strings.TrimSpace(*field) != "" {
			continue
		}
		if value, ok := os.LookupEnv(key); ok {
			*field = value
		}
	}
	for key, field := range c.overrideEnv() {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			*field = value
		}
	}
	for key, field := range c.intEnv() {
		value, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return configError("parse %s: %v", key, err)
		}
		*field = parsed
	}
	return nil
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeControlPlane()
	c.normalizeIngest()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AuditLog) == "" {
		c.Paths.AuditLog = defaultAuditLog
	}
	if c.Paths.AuditLog, err = expandPath(c.Paths.AuditLog); err != nil {
		return fmt.Errorf("paths.audit_log: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Endpoint = strings.TrimSpace(c.Store.Endpoint)
	if c.Store.Endpoint == "" {
		c.Store.Endpoint = defaultStoreEndpoint
	}
	c.Store.Bucket = strings.TrimSpace(c.Store.Bucket)
	c.Store.Folder = strings.Trim(strings.TrimSpace(c.Store.Folder), "/")
	c.Store.AccessKey = strings.TrimSpace(c.Store.AccessKey)
	c.Store.SecretKey = strings.TrimSpace(c.Store.SecretKey)
	c.Store.Region = strings.TrimSpace(c.Store.Region)
	if c.Store.Region == "" {
		c.Store.Region = defaultStoreRegion
	}
	c.Store.ContentType = strings.TrimSpace(c.Store.ContentType)
	if c.Store.ContentType == "" {
		c.Store.ContentType = defaultStoreContentType
	}
}

func (c *Config) normalizeControlPlane() {
	c.ControlPlane.BaseURL = strings.TrimRight(strings.TrimSpace(c.ControlPlane.BaseURL), "/")
	c.ControlPlane.UserAgent = strings.TrimSpace(c.ControlPlane.UserAgent)
	if c.ControlPlane.UserAgent == "" {
		c.ControlPlane.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeIngest() {
	c.Ingest.AudioFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Ingest.AudioFormat), "."))
	if c.Ingest.AudioFormat == "" {
		c.Ingest.AudioFormat = defaultAudioFormat
	}
	if c.Ingest.ErrorSampleSize <= 0 {
		c.Ingest.ErrorSampleSize = defaultErrorSampleSize
	}
	if c.Ingest.ProgressEvery <= 0 {
		c.Ingest.ProgressEvery = defaultProgressEvery
	}
	if c.Ingest.MaxNameLength <= 0 {
		c.Ingest.MaxNameLength = defaultMaxNameLength
	}
}

func (c *Config) normalizeTools() {
	c.Tools.YtDlpBinary = strings.TrimSpace(c.Tools.YtDlpBinary)
	if c.Tools.YtDlpBinary == "" {
		c.Tools.YtDlpBinary = defaultYtDlpBinary
	}
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	if c.Tools.FFmpegBinary == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
	c.Tools.FFprobeBinary = strings.TrimSpace(c.Tools.FFprobeBinary)
	if c.Tools.FFprobeBinary == "" {
		c.Tools.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
