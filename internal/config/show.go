package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration from %q\n\n", r.Path)

	if r.Course != "" {
		ew.printf("# course = %q\n\n", r.Course)
	}

	renderAuthSection(ew, &r.Auth)
	renderClassroomSection(ew, &r.Classroom)
	renderNetworkSection(ew, &r.Network)
	renderLoggingSection(ew, &r.Logging)
	renderImportSection(ew, &r.Import)
	renderLedgerSection(ew, &r.Ledger)
	renderZoomSection(ew, &r.Zoom)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderAuthSection(ew *errWriter, a *AuthConfig) {
	ew.printf("[auth]\n")
	ew.printf("  token_path  = %q\n", a.TokenPath)
	ew.printf("  secret_path = %q\n", a.SecretPath)
	ew.printf("  margin      = %q\n", a.Margin)
	ew.printf("\n")
}

func renderClassroomSection(ew *errWriter, c *ClassroomConfig) {
	ew.printf("[classroom]\n")
	ew.printf("  base_url  = %q\n", c.BaseURL)
	ew.printf("  page_size = %d\n", c.PageSize)

	if c.DefaultCourse != "" {
		ew.printf("  default_course = %q\n", c.DefaultCourse)
	}

	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  timeout    = %q\n", n.Timeout)

	if n.UserAgent != "" {
		ew.printf("  user_agent = %q\n", n.UserAgent)
	}

	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)

	if l.LogFile != "" {
		ew.printf("  log_file   = %q\n", l.LogFile)
	}

	ew.printf("  log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderImportSection(ew *errWriter, i *ImportConfig) {
	ew.printf("[import]\n")
	ew.printf("  encoding       = %q\n", i.Encoding)
	ew.printf("  mode           = %q\n", i.Mode)
	ew.printf("  watch_debounce = %q\n", i.WatchDebounce)
	ew.printf("\n")
}

func renderLedgerSection(ew *errWriter, l *LedgerConfig) {
	ew.printf("[ledger]\n")
	ew.printf("  enabled        = %t\n", l.Enabled)
	ew.printf("  path           = %q\n", l.Path)
	ew.printf("  retention_days = %d\n", l.RetentionDays)
	ew.printf("\n")
}

func renderZoomSection(ew *errWriter, z *ZoomConfig) {
	ew.printf("[zoom]\n")
	ew.printf("  base_url  = %q\n", z.BaseURL)
	ew.printf("  user_id   = %q\n", z.UserID)
	ew.printf("  duration  = %d\n", z.Duration)
	ew.printf("  timezone  = %q\n", z.Timezone)
	ew.printf("  lead_time = %q\n", z.LeadTime)

	if z.EnvFile != "" {
		ew.printf("  env_file  = %q\n", z.EnvFile)
	}
}
