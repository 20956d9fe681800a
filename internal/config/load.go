package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Resolved is the effective configuration after the override chain, with
// durations parsed and the storage path defaulted.
type Resolved struct {
	ConfigPath   string
	API          APIConfig
	Callback     CallbackConfig
	Storage      StorageConfig
	Logging      LoggingConfig
	Timeout      time.Duration
	LoginTimeout time.Duration
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	if env.APIURL != "" {
		cfg.API.BaseURL = env.APIURL
	}

	if env.Storage != "" {
		cfg.Storage.Backend = env.Storage
	}

	// 4. Apply CLI overrides
	if cli.APIURL != "" {
		cfg.API.BaseURL = cli.APIURL
	}

	// 5. Validate again: overrides bypass the file-level check.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	resolved := &Resolved{
		ConfigPath: cfgPath,
		API:        cfg.API,
		Callback:   cfg.Callback,
		Storage:    cfg.Storage,
		Logging:    cfg.Logging,
	}

	// Validate has already checked both durations.
	resolved.Timeout, _ = time.ParseDuration(cfg.API.Timeout)
	resolved.LoginTimeout, _ = time.ParseDuration(cfg.Callback.LoginTimeout)

	if resolved.Storage.Path == "" {
		resolved.Storage.Path = DefaultStoragePath(resolved.Storage.Backend)
	} else {
		resolved.Storage.Path = expandTilde(resolved.Storage.Path)
	}

	return resolved, nil
}
