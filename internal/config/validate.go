package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Validation range constants.
const (
	minTimeout      = 1 * time.Second
	minLoginTimeout = 10 * time.Second
	maxRetries      = 10
)

var (
	validBackends   = []string{"file", "sqlite", "memory"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAPI(&cfg.API)...)
	errs = append(errs, validateCallback(&cfg.Callback)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateAPI(a *APIConfig) []error {
	var errs []error

	u, err := url.Parse(a.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("api.base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("api.base_url: scheme must be http or https, got %q", a.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("api.base_url: missing host in %q", a.BaseURL))
	}

	errs = append(errs, validateDuration("api.timeout", a.Timeout, minTimeout)...)

	if a.MaxRetries < 0 || a.MaxRetries > maxRetries {
		errs = append(errs, fmt.Errorf("api.max_retries: must be between 0 and %d, got %d", maxRetries, a.MaxRetries))
	}

	if strings.TrimSpace(a.UserAgent) == "" {
		errs = append(errs, errors.New("api.user_agent: must not be empty"))
	}

	return errs
}

func validateCallback(c *CallbackConfig) []error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("callback.listen_addr: %w", err))
	}

	errs = append(errs, validateDuration("callback.login_timeout", c.LoginTimeout, minLoginTimeout)...)

	return errs
}

func validateStorage(s *StorageConfig) []error {
	if !slices.Contains(validBackends, s.Backend) {
		return []error{fmt.Errorf("storage.backend: must be one of %s, got %q",
			strings.Join(validBackends, ", "), s.Backend)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !slices.Contains(validLogLevels, l.Level) {
		errs = append(errs, fmt.Errorf("logging.level: must be one of %s, got %q",
			strings.Join(validLogLevels, ", "), l.Level))
	}

	if !slices.Contains(validLogFormats, l.Format) {
		errs = append(errs, fmt.Errorf("logging.format: must be one of %s, got %q",
			strings.Join(validLogFormats, ", "), l.Format))
	}

	return errs
}

func validateDuration(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be at least %s, got %s", field, minimum, d)}
	}

	return nil
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
