package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

// Validation range constants.
const (
	minPageSize     = 1
	maxPageSize     = 100
	maxMargin       = time.Hour
	minTimeout      = time.Second
	maxZoomDuration = 24 * 60
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
	validModes      = []string{"add", "invite"}
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every problem in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateClassroom(&cfg.Classroom)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateImport(&cfg.Import)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateZoom(&cfg.Zoom)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if a.TokenPath == "" {
		errs = append(errs, errors.New("auth.token_path: must not be empty"))
	}

	d, err := time.ParseDuration(a.Margin)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("auth.margin: %w", err))
	case d < 0 || d > maxMargin:
		errs = append(errs, fmt.Errorf("auth.margin: must be between 0 and %s, got %s", maxMargin, d))
	}

	return errs
}

func validateClassroom(c *ClassroomConfig) []error {
	var errs []error

	if err := validateURL(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("classroom.base_url: %w", err))
	}

	if c.PageSize < minPageSize || c.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("classroom.page_size: must be between %d and %d, got %d",
			minPageSize, maxPageSize, c.PageSize))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := time.ParseDuration(n.Timeout)
	if err != nil {
		return []error{fmt.Errorf("network.timeout: %w", err)}
	}

	if d < minTimeout {
		return []error{fmt.Errorf("network.timeout: must be at least %s, got %s", minTimeout, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !slices.Contains(validLogLevels, l.LogLevel) {
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of %v, got %q", validLogLevels, l.LogLevel))
	}

	if !slices.Contains(validLogFormats, l.LogFormat) {
		errs = append(errs, fmt.Errorf("logging.log_format: must be one of %v, got %q", validLogFormats, l.LogFormat))
	}

	return errs
}

func validateImport(i *ImportConfig) []error {
	var errs []error

	if _, err := htmlindex.Get(i.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("import.encoding: unknown encoding %q", i.Encoding))
	}

	if !slices.Contains(validModes, i.Mode) {
		errs = append(errs, fmt.Errorf("import.mode: must be one of %v, got %q", validModes, i.Mode))
	}

	d, err := time.ParseDuration(i.WatchDebounce)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("import.watch_debounce: %w", err))
	case d <= 0:
		errs = append(errs, fmt.Errorf("import.watch_debounce: must be positive, got %s", d))
	}

	return errs
}

func validateLedger(l *LedgerConfig) []error {
	var errs []error

	if l.Enabled && l.Path == "" {
		errs = append(errs, errors.New("ledger.path: must not be empty when the ledger is enabled"))
	}

	if l.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("ledger.retention_days: must not be negative, got %d", l.RetentionDays))
	}

	return errs
}

func validateZoom(z *ZoomConfig) []error {
	var errs []error

	if err := validateURL(z.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("zoom.base_url: %w", err))
	}

	if z.Duration < 1 || z.Duration > maxZoomDuration {
		errs = append(errs, fmt.Errorf("zoom.duration: must be between 1 and %d minutes, got %d",
			maxZoomDuration, z.Duration))
	}

	if _, err := time.LoadLocation(z.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("zoom.timezone: %w", err))
	}

	d, err := time.ParseDuration(z.LeadTime)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("zoom.lead_time: %w", err))
	case d < 0:
		errs = append(errs, fmt.Errorf("zoom.lead_time: must not be negative, got %s", d))
	}

	return errs
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, got %q", raw)
	}

	return nil
}
