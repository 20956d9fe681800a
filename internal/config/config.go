// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for drivebox. It supports a four-layer
// override chain: defaults -> config file -> environment -> CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Callback CallbackConfig `toml:"callback"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
}

// APIConfig locates the DriveBox backend and tunes the HTTP client.
type APIConfig struct {
	BaseURL    string `toml:"base_url"`
	Timeout    string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
	UserAgent  string `toml:"user_agent"`
}

// CallbackConfig controls the loopback server that receives OAuth redirects.
// listen_addr must match the redirect URI registered with the backend.
type CallbackConfig struct {
	ListenAddr   string `toml:"listen_addr"`
	OpenBrowser  bool   `toml:"open_browser"`
	LoginTimeout string `toml:"login_timeout"`
}

// StorageConfig selects where the session credential and provider hint are
// kept. An empty path means the backend's default location.
type StorageConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// LoggingConfig controls log output: level and format.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath string // --config
	APIURL     string // --api-url
}
