package config

import (
	"fmt"
	"net/url"
	"strings"

	"wavelift/internal/services"
)

// Validate ensures the configuration is usable. Every returned error carries
// the services.ErrConfiguration marker so callers can treat it as fatal.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateControlPlane(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	required := []struct {
		key, env, value string
	}{
		{"store.bucket", "S3_BUCKET", c.Store.Bucket},
		{"store.access_key", "AWS_ACCESS_KEY_ID", c.Store.AccessKey},
		{"store.secret_key", "AWS_SECRET_ACCESS_KEY", c.Store.SecretKey},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return configError("%s is required. Set %s or edit the config file (create with 'wavelift config init')", field.key, field.env)
		}
	}
	if strings.Contains(c.Store.Endpoint, "://") {
		return configError("store.endpoint must not include scheme: %q", c.Store.Endpoint)
	}
	return nil
}

func (c *Config) validateControlPlane() error {
	if c.ControlPlane.BaseURL == "" {
		return configError("control_plane.base_url is required. Set API_BASE_URL or edit the config file")
	}
	parsed, err := url.Parse(c.ControlPlane.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return configError("control_plane.base_url must be an http(s) URL, got %q", c.ControlPlane.BaseURL)
	}
	return nil
}

func (c *Config) validateIngest() error {
	if err := ensurePositiveMap(map[string]int{
		"ingest.max_workers":             c.Ingest.MaxWorkers,
		"ingest.request_timeout":         c.Ingest.RequestTimeout,
		"ingest.upload_timeout":          c.Ingest.UploadTimeout,
		"ingest.multipart_threshold_mib": c.Ingest.MultipartThresholdMiB,
		"ingest.part_size_mib":           c.Ingest.PartSizeMiB,
		"tools.resolve_timeout":          c.Tools.ResolveTimeout,
		"tools.convert_timeout":          c.Tools.ConvertTimeout,
	}); err != nil {
		return err
	}
	// S3 rejects non-final parts below 5 MiB.
	if c.Ingest.PartSizeMiB < 5 {
		return configError("ingest.part_size_mib must be at least 5")
	}
	if c.Ingest.FetchRatePerSecond < 0 {
		return configError("ingest.fetch_rate_per_second must be >= 0")
	}
	if c.Ingest.FetchRatePerSecond > 0 && c.Ingest.FetchBurst < 1 {
		return configError("ingest.fetch_burst must be >= 1 when fetch_rate_per_second is set")
	}
	if c.Ingest.MaxNameLength < 16 {
		return configError("ingest.max_name_length must be at least 16")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return configError("retry.max_attempts must be >= 1")
	}
	if c.Retry.BaseDelaySeconds < 0 || c.Retry.StoreBaseDelaySeconds < 0 {
		return configError("retry base delays must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return configError("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return configError("%s must be positive", key)
		}
	}
	return nil
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", services.ErrConfiguration, fmt.Sprintf(format, args...))
}
