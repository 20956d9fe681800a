package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig  = "DRIVEBOX_CONFIG"
	EnvAPIURL  = "DRIVEBOX_API_URL"
	EnvStorage = "DRIVEBOX_STORAGE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // DRIVEBOX_CONFIG: override config file path
	APIURL     string // DRIVEBOX_API_URL: backend base URL
	Storage    string // DRIVEBOX_STORAGE: storage backend name
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		APIURL:     os.Getenv(EnvAPIURL),
		Storage:    os.Getenv(EnvStorage),
	}
}
