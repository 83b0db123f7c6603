// Package roster enrolls students in a course idempotently, one at a time
// or in bulk from file records, and exports the current roster.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/records"
	"github.com/tonimelisma/classroom-go/internal/validate"
)

// Sentinel errors.
var (
	ErrEmptyRoster   = errors.New("roster: no students to export")
	ErrInvalidRecord = errors.New("roster: record has no usable email")
)

// emailKeys are the record columns checked for an address, in priority order.
var emailKeys = []string{"email", "Email", "student_email"}

// ExportColumns are the columns written by Export. The email column makes
// an export re-importable.
var ExportColumns = []string{"user_id", "email", "full_name"}

// API is the slice of the Classroom client the manager needs.
type API interface {
	ListStudents(ctx context.Context, courseID string, pageSize int) ([]classroom.Student, error)
	CreateStudent(ctx context.Context, courseID, userID string) (*classroom.Student, bool, error)
	CreateInvitation(ctx context.Context, courseID, userID string) (bool, error)
}

// Manager works on the roster of one course.
type Manager struct {
	api      API
	courseID string
	pageSize int
	logger   *slog.Logger

	writeFile func(path string, columns []string, recs []records.Record) error
}

// NewManager returns a Manager for courseID. pageSize applies to roster
// listing and is capped at classroom.MaxPageSize.
func NewManager(api API, courseID string, pageSize int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		api:       api,
		courseID:  courseID,
		pageSize:  pageSize,
		logger:    logger.With(slog.String("course_id", courseID)),
		writeFile: records.WriteFile,
	}
}

// AddStudent enrolls email directly. Adding someone already on the roster
// returns AlreadyEnrolled, not an error.
func (m *Manager) AddStudent(ctx context.Context, email string) (Result, error) {
	student, created, err := m.api.CreateStudent(ctx, m.courseID, email)
	if err != nil {
		return 0, fmt.Errorf("roster: adding %s: %w", email, err)
	}

	if !created {
		m.logger.Warn("student already in course", slog.String("email", email))
		return AlreadyEnrolled, nil
	}

	name := email
	if student != nil && student.FullName != "" {
		name = student.FullName
	}

	m.logger.Info("student added", slog.String("email", email), slog.String("name", name))

	return Added, nil
}

// InviteStudent sends email an invitation to join as a student. An
// outstanding invitation returns AlreadyInvited, not an error.
func (m *Manager) InviteStudent(ctx context.Context, email string) (Result, error) {
	created, err := m.api.CreateInvitation(ctx, m.courseID, email)
	if err != nil {
		return 0, fmt.Errorf("roster: inviting %s: %w", email, err)
	}

	if !created {
		m.logger.Warn("invitation already sent", slog.String("email", email))
		return AlreadyInvited, nil
	}

	m.logger.Info("invitation sent", slog.String("email", email))

	return Invited, nil
}

// Enroll adds or invites email according to mode.
func (m *Manager) Enroll(ctx context.Context, email string, mode Mode) (Result, error) {
	if mode == Invite {
		return m.InviteStudent(ctx, email)
	}

	return m.AddStudent(ctx, email)
}

// EmailOf returns the first non-blank of the record's email columns.
func EmailOf(rec records.Record) (string, bool) {
	for _, k := range emailKeys {
		if v := strings.TrimSpace(rec[k]); v != "" {
			return v, true
		}
	}

	return "", false
}

// ListStudents returns the full roster in server order. A listing failure
// is logged and returned with a nil roster.
func (m *Manager) ListStudents(ctx context.Context) ([]classroom.Student, error) {
	students, err := m.api.ListStudents(ctx, m.courseID, m.pageSize)
	if err != nil {
		m.logger.Warn("listing students failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("roster: listing students: %w", err)
	}

	m.logger.Info("found students in course", slog.Int("count", len(students)))

	return students, nil
}

// Export writes the roster to path as CSV or JSON, by extension. An empty
// roster is ErrEmptyRoster and no file is written.
func (m *Manager) Export(ctx context.Context, path string) (int, error) {
	if _, err := records.FormatFor(path); err != nil {
		return 0, err
	}

	students, err := m.ListStudents(ctx)
	if err != nil {
		return 0, err
	}

	if len(students) == 0 {
		m.logger.Warn("no students found to export")
		return 0, ErrEmptyRoster
	}

	if err := m.writeFile(path, ExportColumns, flatten(students)); err != nil {
		m.logger.Error("writing export failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return 0, fmt.Errorf("roster: exporting to %s: %w", path, err)
	}

	m.logger.Info("students exported",
		slog.String("path", path),
		slog.Int("count", len(students)),
	)

	return len(students), nil
}

func flatten(students []classroom.Student) []records.Record {
	recs := make([]records.Record, len(students))
	for i, s := range students {
		recs[i] = records.Record{
			"user_id":   s.UserID,
			"email":     s.Email,
			"full_name": s.FullName,
		}
	}

	return recs
}

// checkEmail rejects records without a well-formed address.
func checkEmail(rec records.Record) (string, error) {
	email, ok := EmailOf(rec)
	if !ok {
		return "", ErrInvalidRecord
	}

	if err := validate.Email(email); err != nil {
		return email, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return email, nil
}
