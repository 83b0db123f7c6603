package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/classroom-go/internal/records"
)

// Result is the outcome of enrolling one student.
type Result int

// Enrollment results. AlreadyEnrolled and AlreadyInvited are successes.
const (
	Added Result = iota + 1
	AlreadyEnrolled
	Invited
	AlreadyInvited
	Failed
)

func (r Result) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyEnrolled:
		return "already_enrolled"
	case Invited:
		return "invited"
	case AlreadyInvited:
		return "already_invited"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Mode selects direct enrollment or invitation.
type Mode int

// Enrollment modes.
const (
	Add Mode = iota
	Invite
)

func (m Mode) String() string {
	if m == Invite {
		return "invite"
	}

	return "add"
}

// ParseMode parses "add" or "invite".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "add", "":
		return Add, nil
	case "invite":
		return Invite, nil
	default:
		return Add, fmt.Errorf("roster: unknown mode %q (want add or invite)", s)
	}
}

// Stats counts bulk outcomes. Added counts invitations in Invite mode;
// AlreadyExists counts both already-enrolled and already-invited.
type Stats struct {
	Added         int `json:"added"`
	AlreadyExists int `json:"already_exists"`
	Failed        int `json:"failed"`
}

// Total is the number of records counted.
func (s Stats) Total() int {
	return s.Added + s.AlreadyExists + s.Failed
}

func (s *Stats) count(r Result) {
	switch r {
	case Added, Invited:
		s.Added++
	case AlreadyEnrolled, AlreadyInvited:
		s.AlreadyExists++
	default:
		s.Failed++
	}
}

// Outcome is what happened to one record of a bulk run.
type Outcome struct {
	Index  int
	Email  string
	Result Result
	Err    error
}

// Recorder receives every outcome of a bulk run in input order.
type Recorder interface {
	RecordOutcome(ctx context.Context, o Outcome) error
}

// BulkAdd enrolls every record in input order. A record without a usable
// email fails without a remote call. A failing record never stops the
// run; only cancellation of ctx does, in which case the stats so far are
// returned with the context error. The run is not transactional. rec may
// be nil; a recorder failure is logged and ignored.
func (m *Manager) BulkAdd(ctx context.Context, recs []records.Record, mode Mode, rec Recorder) (Stats, error) {
	var stats Stats

	if len(recs) == 0 {
		m.logger.Warn("no valid students found")
		return stats, nil
	}

	m.logger.Info("bulk enrollment started",
		slog.Int("records", len(recs)),
		slog.String("mode", mode.String()),
	)

	for i, r := range recs {
		if err := ctx.Err(); err != nil {
			m.logger.Warn("bulk enrollment interrupted",
				slog.Int("processed", i),
				slog.Int("remaining", len(recs)-i),
			)

			return stats, err
		}

		o := m.enrollRecord(ctx, i, r, mode)
		stats.count(o.Result)

		if rec != nil {
			if err := rec.RecordOutcome(ctx, o); err != nil {
				m.logger.Warn("recording outcome failed",
					slog.Int("index", i),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	m.logger.Info("bulk enrollment finished",
		slog.Int("added", stats.Added),
		slog.Int("already_exists", stats.AlreadyExists),
		slog.Int("failed", stats.Failed),
	)

	return stats, nil
}

func (m *Manager) enrollRecord(ctx context.Context, i int, r records.Record, mode Mode) Outcome {
	email, err := checkEmail(r)
	if err != nil {
		m.logger.Warn("skipping record without usable email",
			slog.Int("index", i),
			slog.String("email", email),
		)

		return Outcome{Index: i, Email: email, Result: Failed, Err: err}
	}

	res, err := m.Enroll(ctx, email, mode)
	if err != nil {
		m.logger.Error("enrolling student failed",
			slog.Int("index", i),
			slog.String("email", email),
			slog.String("error", err.Error()),
		)

		return Outcome{Index: i, Email: email, Result: Failed, Err: err}
	}

	return Outcome{Index: i, Email: email, Result: res}
}
