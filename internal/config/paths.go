package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "drivebox"

// Config file name.
const configFileName = "config.toml"

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/drivebox).
// On macOS, uses ~/Library/Application Support/drivebox per Apple guidelines.
// Other platforms fall back to ~/.config/drivebox.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// linuxConfigDir returns the XDG-compliant config directory for Linux.
func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultDataDir returns the platform-specific directory for application data
// (the session file and session database).
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/drivebox).
// On macOS, uses ~/Library/Application Support/drivebox (macOS convention
// collapses config and data into one directory).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// linuxDataDir returns the XDG-compliant data directory for Linux.
func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultConfigPath returns the full path to the default config file.
// This is used as the fallback when neither DRIVEBOX_CONFIG nor
// --config is specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// Default file names inside the data directory.
const (
	sessionFileName = "session.json"
	sessionDBName   = "session.db"
)

// DefaultStoragePath returns the default location for the given storage
// backend, or "" for backends that keep nothing on disk.
func DefaultStoragePath(backend string) string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	switch backend {
	case "file":
		return filepath.Join(dir, sessionFileName)
	case "sqlite":
		return filepath.Join(dir, sessionDBName)
	default:
		return ""
	}
}
