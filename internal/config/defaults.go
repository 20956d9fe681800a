package config

// Default values for configuration options. These are "layer 0" of the
// override chain and work against a backend running locally.
const (
	defaultBaseURL      = "http://localhost:4000"
	defaultTimeout      = "30s"
	defaultMaxRetries   = 5
	defaultUserAgent    = "drivebox/0.1"
	defaultListenAddr   = "127.0.0.1:3000"
	defaultLoginTimeout = "5m"
	defaultBackend      = "file"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    defaultBaseURL,
			Timeout:    defaultTimeout,
			MaxRetries: defaultMaxRetries,
			UserAgent:  defaultUserAgent,
		},
		Callback: CallbackConfig{
			ListenAddr:   defaultListenAddr,
			OpenBrowser:  true,
			LoginTimeout: defaultLoginTimeout,
		},
		Storage: StorageConfig{
			Backend: defaultBackend,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
