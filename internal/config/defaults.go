package config

const (
	defaultDataDir              = "~/.local/share/flowline"
	defaultLogDir               = "~/.local/share/flowline/logs"
	defaultAPIBind              = "127.0.0.1:7713"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMaxAttempts          = 3
	defaultMaxParallel          = 1
	defaultClaimRetryAttempts   = 5
	defaultStaleAfterSeconds    = 0
	defaultSweepIntervalSeconds = 30
	defaultNtfyTimeoutSeconds   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Queue: Queue{
			DefaultMaxAttempts:   defaultMaxAttempts,
			DefaultMaxParallel:   defaultMaxParallel,
			ClaimRetryAttempts:   defaultClaimRetryAttempts,
			StaleAfterSeconds:    defaultStaleAfterSeconds,
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
	}
}
