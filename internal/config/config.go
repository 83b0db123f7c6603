// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for classroom-go. Values resolve through
// four layers: defaults -> config file -> environment -> CLI flags.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth      AuthConfig      `toml:"auth"`
	Classroom ClassroomConfig `toml:"classroom"`
	Network   NetworkConfig   `toml:"network"`
	Logging   LoggingConfig   `toml:"logging"`
	Import    ImportConfig    `toml:"import"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Zoom      ZoomConfig      `toml:"zoom"`
}

// AuthConfig locates the saved credential and the OAuth client secret.
// margin is how close to expiry a token may get before it is refreshed.
type AuthConfig struct {
	TokenPath  string `toml:"token_path"`
	SecretPath string `toml:"secret_path"`
	Margin     string `toml:"margin"`
}

// ClassroomConfig controls the Classroom API client.
type ClassroomConfig struct {
	BaseURL       string `toml:"base_url"`
	PageSize      int    `toml:"page_size"`
	DefaultCourse string `toml:"default_course"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	Timeout   string `toml:"timeout"`
	UserAgent string `toml:"user_agent"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// ImportConfig holds defaults for bulk roster imports.
type ImportConfig struct {
	Encoding      string `toml:"encoding"`
	Mode          string `toml:"mode"`
	WatchDebounce string `toml:"watch_debounce"`
}

// LedgerConfig controls the local import history database.
type LedgerConfig struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// ZoomConfig holds meeting defaults. API credentials never live in the
// config file; they come from the environment (see ReadZoomSecrets).
type ZoomConfig struct {
	BaseURL  string `toml:"base_url"`
	UserID   string `toml:"user_id"`
	Duration int    `toml:"duration"`
	Timezone string `toml:"timezone"`
	LeadTime string `toml:"lead_time"`
	EnvFile  string `toml:"env_file"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	Course     string // --course flag (empty = not specified)
}

// Resolved is the effective configuration after all layers are applied.
type Resolved struct {
	Config

	// Path is the config file that was read. It is set even when the file
	// did not exist and defaults were used.
	Path string

	// Course is the course reference chosen by flag, environment, or
	// [classroom] default_course, in that order. Empty means none.
	Course string
}

// MarginDuration returns the parsed refresh margin.
func (a AuthConfig) MarginDuration() time.Duration {
	return durationOr(a.Margin, defaultMargin)
}

// TimeoutDuration returns the parsed HTTP timeout.
func (n NetworkConfig) TimeoutDuration() time.Duration {
	return durationOr(n.Timeout, defaultTimeout)
}

// Debounce returns how long watch mode waits for writes to settle.
func (i ImportConfig) Debounce() time.Duration {
	return durationOr(i.WatchDebounce, defaultWatchDebounce)
}

// Retention returns how long import runs are kept, or 0 to keep forever.
func (l LedgerConfig) Retention() time.Duration {
	if l.RetentionDays <= 0 {
		return 0
	}

	return time.Duration(l.RetentionDays) * 24 * time.Hour
}

// LeadDuration returns how far ahead a meeting starts by default.
func (z ZoomConfig) LeadDuration() time.Duration {
	return durationOr(z.LeadTime, defaultLeadTime)
}

// durationOr parses s, falling back to def. Validate rejects bad values
// before they get here.
func durationOr(s, def string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}

	return d
}
