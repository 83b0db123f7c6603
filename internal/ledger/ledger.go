// Package ledger keeps a local history of bulk roster imports in SQLite:
// one row per run and one row per input record. It is a record of what
// happened, not a checkpoint; imports are never resumed from it.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/tonimelisma/classroom-go/internal/roster"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("ledger: run not found")

const (
	sqlInsertRun = `INSERT INTO import_runs (id, course_id, source, mode, started_at)
		VALUES (?, ?, ?, ?, ?)`

	sqlFinishRun = `UPDATE import_runs
		SET finished_at = ?, added = ?, already_exists = ?, failed = ?, error = ?
		WHERE id = ?`

	sqlInsertRecord = `INSERT INTO import_records (run_id, idx, email, result, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	sqlListRuns = `SELECT id, course_id, source, mode, started_at, finished_at,
		added, already_exists, failed, error
		FROM import_runs ORDER BY started_at DESC, id LIMIT ?`

	sqlGetRun = `SELECT id, course_id, source, mode, started_at, finished_at,
		added, already_exists, failed, error
		FROM import_runs WHERE id = ?`

	sqlListRecords = `SELECT idx, email, result, error, recorded_at
		FROM import_records WHERE run_id = ? ORDER BY idx`

	sqlPruneRuns = `DELETE FROM import_runs WHERE started_at < ?`
)

// Ledger is the sole writer to the import history database.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the database at path and applies
// pending migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", path, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("import ledger opened", slog.String("db_path", path))

	return &Ledger{db: db, logger: logger, nowFunc: time.Now}, nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ledger: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("ledger: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("ledger: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RunInfo describes an import at its start.
type RunInfo struct {
	CourseID string
	Source   string
	Mode     roster.Mode
}

// Run is an import in progress. It implements roster.Recorder.
type Run struct {
	ID     string
	ledger *Ledger
}

// BeginRun records the start of an import and returns its handle.
func (l *Ledger) BeginRun(ctx context.Context, info RunInfo) (*Run, error) {
	id := uuid.NewString()

	_, err := l.db.ExecContext(ctx, sqlInsertRun,
		id, info.CourseID, info.Source, info.Mode.String(), l.nowFunc().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("ledger: inserting run: %w", err)
	}

	l.logger.Debug("import run started", slog.String("run_id", id))

	return &Run{ID: id, ledger: l}, nil
}

// writeTimeout bounds ledger writes that must outlive a canceled import.
const writeTimeout = 5 * time.Second

// RecordOutcome stores one record's outcome. The write ignores ctx
// cancellation, so the record in flight when an import is interrupted
// still lands in the history.
func (r *Run) RecordOutcome(ctx context.Context, o roster.Outcome) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	_, err := r.ledger.db.ExecContext(ctx, sqlInsertRecord,
		r.ID, o.Index, o.Email, o.Result.String(), errText(o.Err), r.ledger.nowFunc().UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: recording outcome %d: %w", o.Index, err)
	}

	return nil
}

// Finish stores the final counts. runErr is the error that ended the
// run early, if any. Finish uses its own context so an interrupted
// import still gets its summary written.
func (r *Run) Finish(stats roster.Stats, runErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := r.ledger.db.ExecContext(ctx, sqlFinishRun,
		r.ledger.nowFunc().UnixNano(), stats.Added, stats.AlreadyExists, stats.Failed,
		errText(runErr), r.ID)
	if err != nil {
		return fmt.Errorf("ledger: finishing run %s: %w", r.ID, err)
	}

	return nil
}

// RunSummary is a stored import run.
type RunSummary struct {
	ID         string       `json:"id"`
	CourseID   string       `json:"course_id"`
	Source     string       `json:"source"`
	Mode       string       `json:"mode"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Stats      roster.Stats `json:"stats"`
	Error      string       `json:"error,omitempty"`
}

// OutcomeRow is a stored per-record outcome.
type OutcomeRow struct {
	Index      int       `json:"index"`
	Email      string    `json:"email"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunSummary, error) {
	var (
		rs       RunSummary
		started  int64
		finished sql.NullInt64
		errMsg   sql.NullString
	)

	err := s.Scan(&rs.ID, &rs.CourseID, &rs.Source, &rs.Mode, &started, &finished,
		&rs.Stats.Added, &rs.Stats.AlreadyExists, &rs.Stats.Failed, &errMsg)
	if err != nil {
		return RunSummary{}, err
	}

	rs.StartedAt = time.Unix(0, started)

	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		rs.FinishedAt = &t
	}

	rs.Error = errMsg.String

	return rs, nil
}

// Runs returns up to limit runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := l.db.QueryContext(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary

	for rows.Next() {
		rs, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scanning run: %w", err)
		}

		runs = append(runs, rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating runs: %w", err)
	}

	return runs, nil
}

// Run returns one run by id.
func (l *Ledger) Run(ctx context.Context, id string) (RunSummary, error) {
	rs, err := scanRun(l.db.QueryRowContext(ctx, sqlGetRun, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if err != nil {
		return RunSummary{}, fmt.Errorf("ledger: loading run %s: %w", id, err)
	}

	return rs, nil
}

// Outcomes returns a run's per-record outcomes in input order.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]OutcomeRow, error) {
	rows, err := l.db.QueryContext(ctx, sqlListRecords, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRow

	for rows.Next() {
		var (
			o        OutcomeRow
			errMsg   sql.NullString
			recorded int64
		)

		if err := rows.Scan(&o.Index, &o.Email, &o.Result, &errMsg, &recorded); err != nil {
			return nil, fmt.Errorf("ledger: scanning outcome: %w", err)
		}

		o.Error = errMsg.String
		o.RecordedAt = time.Unix(0, recorded)
		out = append(out, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating outcomes: %w", err)
	}

	return out, nil
}

// Prune deletes runs started before cutoff, with their records.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, sqlPruneRuns, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("ledger: pruning runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger: pruning runs: %w", err)
	}

	if n > 0 {
		l.logger.Info("pruned import history", slog.Int64("runs", n))
	}

	return n, nil
}

func errText(err error) any {
	if err == nil {
		return nil
	}

	return err.Error()
}
