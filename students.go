package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/ledger"
	"github.com/tonimelisma/classroom-go/internal/records"
	"github.com/tonimelisma/classroom-go/internal/roster"
	"github.com/tonimelisma/classroom-go/internal/watch"
)

// defaultHistoryLimit is how many runs `students history` shows.
const defaultHistoryLimit = 20

// errSomeFailed makes a command exit non-zero when at least one student
// could not be enrolled. The per-record detail has already been printed.
var errSomeFailed = errors.New("some students could not be enrolled")

func newStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage the roster of the selected course",
	}

	cmd.AddCommand(newStudentsListCmd())
	cmd.AddCommand(newStudentsAddCmd())
	cmd.AddCommand(newStudentsImportCmd())
	cmd.AddCommand(newStudentsExportCmd())
	cmd.AddCommand(newStudentsHistoryCmd())

	return cmd
}

func newStudentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled students",
		Args:  cobra.NoArgs,
		RunE:  runStudentsList,
	}
}

func newStudentsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <email>...",
		Short: "Enroll students by email",
		Long: `Enroll each address in the selected course. Students already on the
roster are reported, not treated as errors. With --invite an invitation is
sent instead of enrolling directly.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runStudentsAdd,
	}

	cmd.Flags().Bool("invite", false, "send invitations instead of enrolling directly")

	return cmd
}

func newStudentsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Enroll every student in a CSV or JSON file",
		Long: `Enroll every record of a CSV or JSON file, in file order. The address is
read from the email, Email or student_email column. A failing record never
stops the import; the run is not transactional, and running it again is safe.

With --watch the import runs again each time the file is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: runStudentsImport,
	}

	cmd.Flags().Bool("invite", false, "send invitations instead of enrolling directly")
	cmd.Flags().String("encoding", "", "input text encoding (default from [import] encoding)")
	cmd.Flags().Bool("watch", false, "re-run the import whenever the file changes")

	return cmd
}

func newStudentsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the roster to a CSV or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runStudentsExport,
	}
}

func newStudentsHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past imports, or the records of one import",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStudentsHistory,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "maximum number of runs to show")

	return cmd
}

// rosterFor resolves the selected course and returns a roster manager for it.
func (cc *CLIContext) rosterFor(ctx context.Context) (*roster.Manager, classroom.Course, error) {
	s, err := cc.session(ctx)
	if err != nil {
		return nil, classroom.Course{}, err
	}

	crs, err := s.currentCourse(ctx)
	if err != nil {
		return nil, classroom.Course{}, err
	}

	return roster.NewManager(s.Client, crs.ID, cc.Cfg.Classroom.PageSize, cc.Logger), crs, nil
}

// modeFlag combines --invite with the [import] mode default.
func (cc *CLIContext) modeFlag(cmd *cobra.Command) (roster.Mode, error) {
	if invite, _ := cmd.Flags().GetBool("invite"); invite {
		return roster.Invite, nil
	}

	return roster.ParseMode(cc.Cfg.Import.Mode)
}

type studentJSON struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func runStudentsList(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	mgr, _, err := cc.rosterFor(ctx)
	if err != nil {
		return err
	}

	students, err := mgr.ListStudents(ctx)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		out := make([]studentJSON, 0, len(students))
		for _, s := range students {
			out = append(out, studentJSON{UserID: s.UserID, Email: s.Email, FullName: s.FullName})
		}

		return printJSON(cc.Out, out)
	}

	if len(students) == 0 {
		cc.Statusf("No students enrolled.\n")
		return nil
	}

	rows := make([][]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, []string{s.UserID, s.Email, s.FullName})
	}

	printTable(cc.Out, []string{"USER ID", "EMAIL", "NAME"}, rows)

	return nil
}

type enrollJSON struct {
	Email  string `json:"email"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

func runStudentsAdd(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	mode, err := cc.modeFlag(cmd)
	if err != nil {
		return err
	}

	mgr, _, err := cc.rosterFor(ctx)
	if err != nil {
		return err
	}

	recs := make([]records.Record, len(args))
	for i, email := range args {
		recs[i] = records.Record{"email": email}
	}

	var results []enrollJSON

	stats, err := mgr.BulkAdd(ctx, recs, mode, recorderFunc(func(_ context.Context, o roster.Outcome) error {
		r := enrollJSON{Email: o.Email, Result: o.Result.String()}
		if r.Email == "" {
			r.Email = args[o.Index]
		}

		if o.Err != nil {
			r.Error = o.Err.Error()
		}

		results = append(results, r)

		return nil
	}))
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		if err := printJSON(cc.Out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(cc.Out, "%s: %s (%s)\n", r.Email, r.Result, r.Error)
				continue
			}

			fmt.Fprintf(cc.Out, "%s: %s\n", r.Email, r.Result)
		}
	}

	if stats.Failed > 0 {
		return errSomeFailed
	}

	return nil
}

// recorderFunc adapts a function to roster.Recorder.
type recorderFunc func(ctx context.Context, o roster.Outcome) error

func (f recorderFunc) RecordOutcome(ctx context.Context, o roster.Outcome) error {
	return f(ctx, o)
}

// importJob is one import of a file into a course, repeatable in watch mode.
// mgr is bound to the credential it was built with; rebind replaces it.
type importJob struct {
	cc       *CLIContext
	mgr      *roster.Manager
	courseID string
	path     string
	encoding string
	mode     roster.Mode
}

func runStudentsImport(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}

	// Reject unsupported extensions before authenticating.
	if _, err := records.FormatFor(path); err != nil {
		return err
	}

	mode, err := cc.modeFlag(cmd)
	if err != nil {
		return err
	}

	encoding, _ := cmd.Flags().GetString("encoding")
	if encoding == "" {
		encoding = cc.Cfg.Import.Encoding
	}

	mgr, crs, err := cc.rosterFor(ctx)
	if err != nil {
		return err
	}

	job := &importJob{
		cc:       cc,
		mgr:      mgr,
		courseID: crs.ID,
		path:     path,
		encoding: encoding,
		mode:     mode,
	}

	if watchMode, _ := cmd.Flags().GetBool("watch"); watchMode {
		return job.watch(ctx)
	}

	stats, err := job.run(ctx)
	if err != nil {
		return err
	}

	if stats.Failed > 0 {
		return errSomeFailed
	}

	return nil
}

// run reads the file and enrolls every record, recording the run in the
// ledger when it is enabled.
func (j *importJob) run(ctx context.Context) (roster.Stats, error) {
	recs, err := records.ReadFile(j.path, j.encoding)
	if err != nil {
		return roster.Stats{}, err
	}

	j.cc.Logger.Info("loaded students from file",
		slog.String("path", j.path),
		slog.Int("count", len(recs)),
	)

	var rec roster.Recorder

	var run *ledger.Run

	if j.cc.Cfg.Ledger.Enabled {
		l, err := ledger.Open(ctx, j.cc.Cfg.Ledger.Path, j.cc.Logger)
		if err != nil {
			return roster.Stats{}, err
		}
		defer l.Close()

		j.prune(ctx, l)

		run, err = l.BeginRun(ctx, ledger.RunInfo{CourseID: j.courseID, Source: j.path, Mode: j.mode})
		if err != nil {
			return roster.Stats{}, err
		}

		rec = run
	}

	stats, runErr := j.mgr.BulkAdd(ctx, recs, j.mode, rec)

	if run != nil {
		if err := run.Finish(stats, runErr); err != nil {
			j.cc.Logger.Warn("recording import summary failed", slog.String("error", err.Error()))
		}
	}

	j.report(stats, run)

	return stats, runErr
}

func (j *importJob) prune(ctx context.Context, l *ledger.Ledger) {
	keep := j.cc.Cfg.Ledger.Retention()
	if keep == 0 {
		return
	}

	if _, err := l.Prune(ctx, time.Now().Add(-keep)); err != nil {
		j.cc.Logger.Warn("pruning import history failed", slog.String("error", err.Error()))
	}
}

type importJSON struct {
	RunID string       `json:"run_id,omitempty"`
	Stats roster.Stats `json:"stats"`
}

func (j *importJob) report(stats roster.Stats, run *ledger.Run) {
	if j.cc.Flags.JSON {
		out := importJSON{Stats: stats}
		if run != nil {
			out.RunID = run.ID
		}

		if err := printJSON(j.cc.Out, out); err != nil {
			j.cc.Logger.Error("writing output", "error", err)
		}

		return
	}

	verb := "Added"
	if j.mode == roster.Invite {
		verb = "Invited"
	}

	fmt.Fprintf(j.cc.Out, "%s %d, already present %d, failed %d.\n",
		verb, stats.Added, stats.AlreadyExists, stats.Failed)

	if run != nil {
		j.cc.Statusf("Run %s recorded; see 'classroom-go students history %s'.\n", run.ID, run.ID)
	}
}

// watch imports once and then again after every settled change to the
// file, until ctx is canceled. Only one watcher per course may run.
func (j *importJob) watch(ctx context.Context) error {
	release, err := acquireWatchLock(watchLockPath(j.courseID))
	if err != nil {
		return err
	}
	defer release()

	if _, err := j.run(ctx); err != nil && ctx.Err() == nil {
		j.cc.Logger.Warn("initial import failed; waiting for changes", slog.String("error", err.Error()))
	}

	j.cc.Statusf("Watching %s for changes. Press Ctrl-C to stop.\n", j.path)

	err = watch.File(ctx, j.path, j.cc.Cfg.Import.Debounce(), j.cc.Logger, j.rerun)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// rerun imports again on a freshly acquired credential. A watch can outlive
// the access token the job started with.
func (j *importJob) rerun(ctx context.Context) error {
	if err := j.rebind(ctx); err != nil {
		return err
	}

	_, err := j.run(ctx)

	return err
}

// rebind acquires a credential, refreshing it if needed, and rebuilds the
// roster manager on a new client. The course id is already known, so
// courses are not listed again.
func (j *importJob) rebind(ctx context.Context) error {
	s, err := j.cc.session(ctx)
	if err != nil {
		return err
	}

	j.mgr = roster.NewManager(s.Client, j.courseID, j.cc.Cfg.Classroom.PageSize, j.cc.Logger)

	return nil
}

func runStudentsExport(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	if _, err := records.FormatFor(args[0]); err != nil {
		return err
	}

	mgr, _, err := cc.rosterFor(ctx)
	if err != nil {
		return err
	}

	n, err := mgr.Export(ctx, args[0])
	if errors.Is(err, roster.ErrEmptyRoster) {
		cc.Statusf("No students to export.\n")
		return nil
	}

	if err != nil {
		return err
	}

	cc.Statusf("Exported %d students to %s.\n", n, args[0])

	return nil
}

func runStudentsHistory(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	if !cc.Cfg.Ledger.Enabled {
		return fmt.Errorf("import history is disabled: set [ledger] enabled = true")
	}

	l, err := ledger.Open(ctx, cc.Cfg.Ledger.Path, cc.Logger)
	if err != nil {
		return err
	}
	defer l.Close()

	if len(args) == 1 {
		return showRun(ctx, cc, l, args[0])
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	runs, err := l.Runs(ctx, limit)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		if runs == nil {
			runs = []ledger.RunSummary{}
		}

		return printJSON(cc.Out, runs)
	}

	if len(runs) == 0 {
		cc.Statusf("No imports recorded.\n")
		return nil
	}

	now := time.Now()
	rows := make([][]string, 0, len(runs))

	for _, r := range runs {
		rows = append(rows, []string{
			r.ID, formatTime(r.StartedAt, now), r.CourseID, r.Mode,
			strconv.Itoa(r.Stats.Added), strconv.Itoa(r.Stats.AlreadyExists), strconv.Itoa(r.Stats.Failed),
			runStatus(r),
		})
	}

	printTable(cc.Out, []string{"RUN", "STARTED", "COURSE", "MODE", "ADDED", "PRESENT", "FAILED", "STATUS"}, rows)

	return nil
}

func runStatus(r ledger.RunSummary) string {
	switch {
	case r.FinishedAt == nil:
		return "incomplete"
	case r.Error != "":
		return "stopped: " + r.Error
	default:
		return "done"
	}
}

type runDetailJSON struct {
	Run      ledger.RunSummary   `json:"run"`
	Outcomes []ledger.OutcomeRow `json:"outcomes"`
}

func showRun(ctx context.Context, cc *CLIContext, l *ledger.Ledger, id string) error {
	run, err := l.Run(ctx, id)
	if err != nil {
		return err
	}

	outcomes, err := l.Outcomes(ctx, id)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		if outcomes == nil {
			outcomes = []ledger.OutcomeRow{}
		}

		return printJSON(cc.Out, runDetailJSON{Run: run, Outcomes: outcomes})
	}

	fmt.Fprintf(cc.Out, "Run:      %s\n", run.ID)
	fmt.Fprintf(cc.Out, "Course:   %s\n", run.CourseID)
	fmt.Fprintf(cc.Out, "Source:   %s\n", run.Source)
	fmt.Fprintf(cc.Out, "Mode:     %s\n", run.Mode)
	fmt.Fprintf(cc.Out, "Started:  %s\n", formatTime(run.StartedAt, time.Now()))
	fmt.Fprintf(cc.Out, "Status:   %s\n\n", runStatus(run))

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{strconv.Itoa(o.Index + 1), o.Email, o.Result, o.Error})
	}

	printTable(cc.Out, []string{"#", "EMAIL", "RESULT", "ERROR"}, rows)

	return nil
}
