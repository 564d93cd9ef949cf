package config

const (
	defaultWorkDir               = "~/.local/share/wavelift/work"
	defaultLogDir                = "~/.local/share/wavelift/logs"
	defaultAuditLog              = "~/.local/share/wavelift/logs/download_log.csv"
	defaultStoreEndpoint         = "s3.amazonaws.com"
	defaultStoreRegion           = "us-east-1"
	defaultStoreContentType      = "audio/wav"
	defaultUserAgent             = "wavelift/0.1.0"
	defaultMaxWorkers            = 8
	defaultRequestTimeout        = 30
	defaultUploadTimeout         = 3600
	defaultMultipartThresholdMiB = 100
	defaultPartSizeMiB           = 8
	defaultErrorSampleSize       = 5
	defaultProgressEvery         = 10
	defaultFetchRatePerSecond    = 1.0
	defaultFetchBurst            = 4
	defaultAudioFormat           = "wav"
	defaultMaxNameLength         = 100
	defaultRetryAttempts         = 3
	defaultRetryBaseDelay        = 5.0
	defaultStoreRetryBaseDelay   = 1.0
	defaultYtDlpBinary           = "yt-dlp"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultResolveTimeout        = 120
	defaultConvertTimeout        = 1800
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			AuditLog: defaultAuditLog,
		},
		Store: Store{
			Endpoint:    defaultStoreEndpoint,
			Region:      defaultStoreRegion,
			UseSSL:      true,
			ContentType: defaultStoreContentType,
		},
		ControlPlane: ControlPlane{
			UserAgent: defaultUserAgent,
		},
		Ingest: Ingest{
			MaxWorkers:            defaultMaxWorkers,
			RequestTimeout:        defaultRequestTimeout,
			UploadTimeout:         defaultUploadTimeout,
			MultipartThresholdMiB: defaultMultipartThresholdMiB,
			PartSizeMiB:           defaultPartSizeMiB,
			ErrorSampleSize:       defaultErrorSampleSize,
			ProgressEvery:         defaultProgressEvery,
			FetchRatePerSecond:    defaultFetchRatePerSecond,
			FetchBurst:            defaultFetchBurst,
			AudioFormat:           defaultAudioFormat,
			MaxNameLength:         defaultMaxNameLength,
		},
		Retry: Retry{
			MaxAttempts:           defaultRetryAttempts,
			BaseDelaySeconds:      defaultRetryBaseDelay,
			StoreBaseDelaySeconds: defaultStoreRetryBaseDelay,
		},
		Tools: Tools{
			YtDlpBinary:    defaultYtDlpBinary,
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			ResolveTimeout: defaultResolveTimeout,
			ConvertTimeout: defaultConvertTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
