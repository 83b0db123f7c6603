package config

import "path/filepath"

// Default values for configuration options. These are layer 0 of the
// override chain and work without any config file.
const (
	defaultMargin        = "60s"
	defaultBaseURL       = "https://classroom.googleapis.com/v1"
	defaultPageSize      = 100
	defaultTimeout       = "60s"
	defaultLogLevel      = "warn"
	defaultLogFormat     = "auto"
	defaultEncoding      = "utf-8"
	defaultImportMode    = "add"
	defaultWatchDebounce = "2s"
	defaultRetentionDays = 90
	defaultZoomBaseURL   = "https://api.zoom.us/v2"
	defaultZoomUserID    = "me"
	defaultZoomDuration  = 60
	defaultZoomTimezone  = "UTC"
	defaultLeadTime      = "10m"
)

// File names inside the platform directories.
const (
	tokenFileName  = "token.json"
	secretFileName = "client_secret.json"
	ledgerFileName = "history.db"
)

// DefaultConfig returns a Config populated with all default values.
// It is the starting point for TOML decoding, so unset fields keep
// their defaults.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenPath:  inDir(DefaultDataDir(), tokenFileName),
			SecretPath: inDir(DefaultConfigDir(), secretFileName),
			Margin:     defaultMargin,
		},
		Classroom: ClassroomConfig{
			BaseURL:  defaultBaseURL,
			PageSize: defaultPageSize,
		},
		Network: NetworkConfig{
			Timeout: defaultTimeout,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Import: ImportConfig{
			Encoding:      defaultEncoding,
			Mode:          defaultImportMode,
			WatchDebounce: defaultWatchDebounce,
		},
		Ledger: LedgerConfig{
			Enabled:       true,
			Path:          inDir(DefaultDataDir(), ledgerFileName),
			RetentionDays: defaultRetentionDays,
		},
		Zoom: ZoomConfig{
			BaseURL:  defaultZoomBaseURL,
			UserID:   defaultZoomUserID,
			Duration: defaultZoomDuration,
			Timezone: defaultZoomTimezone,
			LeadTime: defaultLeadTime,
		},
	}
}

// inDir joins name onto dir, or returns "" when dir could not be determined.
func inDir(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}
