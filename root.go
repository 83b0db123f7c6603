package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagCourse     string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// logFilePermissions keeps the log file private to the owner.
const logFilePermissions = 0o600

// CLIFlags is a snapshot of the global flags for one command run.
type CLIFlags struct {
	ConfigPath string
	Course     string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// CLIContext carries everything a subcommand needs: the effective config,
// the logger built from it, and where to write results.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by the root pre-run hook.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("BUG: CLIContext missing from command context")
	}

	return cc
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Err, cc.Flags.Quiet, format, args...)
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "classroom-go",
		Short:   "Google Classroom CLI",
		Long:    "Manage Google Classroom courses, rosters, topics and posts from the command line.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagCourse, "course", "", "course id or name")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable informational logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.MarkFlagsMutuallyExclusive("debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newCourseCmd())
	cmd.AddCommand(newStudentsCmd())
	cmd.AddCommand(newTopicCmd())
	cmd.AddCommand(newAnnounceCmd())
	cmd.AddCommand(newMaterialCmd())
	cmd.AddCommand(newMeetingCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the override
// chain and builds the logger for this run.
func loadCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	flags := CLIFlags{
		ConfigPath: flagConfigPath,
		Course:     flagCourse,
		JSON:       flagJSON,
		Verbose:    flagVerbose,
		Debug:      flagDebug,
		Quiet:      flagQuiet,
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
		Course:     flags.Course,
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := buildLogger(resolved, flags, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	logger.Debug("config resolved",
		slog.String("path", resolved.Path),
		slog.String("course", resolved.Course),
	)

	return &CLIContext{
		Flags:  flags,
		Cfg:    resolved,
		Logger: logger,
		Out:    cmd.OutOrStdout(),
		Err:    cmd.ErrOrStderr(),
	}, nil
}

// buildLogger creates an slog.Logger from the resolved config and CLI
// flags. The config-file level is the baseline; --verbose, --debug and
// --quiet override it. With log_file set, output also goes to that file.
func buildLogger(cfg *config.Resolved, flags CLIFlags, stderr io.Writer) (*slog.Logger, error) {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	switch {
	case flags.Debug:
		level = slog.LevelDebug
	case flags.Verbose:
		level = slog.LevelInfo
	case flags.Quiet:
		level = slog.LevelError
	}

	format := "auto"
	w := stderr

	if cfg != nil {
		format = cfg.Logging.LogFormat

		if cfg.Logging.LogFile != "" {
			f, err := os.OpenFile(cfg.Logging.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
			if err != nil {
				return nil, fmt.Errorf("opening log file: %w", err)
			}

			w = io.MultiWriter(stderr, f)
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	if useJSONLogs(format, stderr) {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// useJSONLogs reports whether logs should be JSON. "auto" picks text for
// an interactive terminal and JSON otherwise.
func useJSONLogs(format string, stderr io.Writer) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	}

	f, ok := stderr.(*os.File)
	if !ok {
		return true
	}

	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
