package config

const (
	defaultIndexFile                  = ".derpisync-index"
	defaultStateDir                   = "~/.local/share/derpisync"
	defaultAPIBaseURL                 = "https://derpibooru.org/api/v1/json"
	defaultUserAgent                  = "derpisync/dev"
	defaultRateLimit                  = 0.9
	defaultRetryDelaySeconds          = 1
	defaultNotImplementedDelaySeconds = 6
	defaultCacheTTLSeconds            = 600
	defaultCacheCapacity              = 10000
	defaultTMSUBinary                 = "tmsu"
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IndexFile: defaultIndexFile,
			StateDir:  defaultStateDir,
		},
		API: API{
			BaseURL:                    defaultAPIBaseURL,
			UserAgent:                  defaultUserAgent,
			RateLimit:                  defaultRateLimit,
			RetryDelaySeconds:          defaultRetryDelaySeconds,
			NotImplementedDelaySeconds: defaultNotImplementedDelaySeconds,
			CacheTTLSeconds:            defaultCacheTTLSeconds,
			CacheCapacity:              defaultCacheCapacity,
		},
		TMSU: TMSU{
			Binary: defaultTMSUBinary,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
