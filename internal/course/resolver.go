// Package course resolves a user's course reference, an id or a display
// name, against the list of active courses, and creates new courses.
package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/classroom-go/internal/classroom"
)

// ErrNotFound is returned by Require when a reference matches no course.
var ErrNotFound = errors.New("course: not found")

// API is the slice of the Classroom client the resolver needs.
type API interface {
	ListCourses(ctx context.Context, states []string) ([]classroom.Course, error)
	CreateCourse(ctx context.Context, nc classroom.NewCourse) (*classroom.Course, error)
}

// State tracks how far resolution has progressed.
type State int

// Resolver states. Unresolved until Load succeeds; a lookup then moves the
// resolver to Resolved or NotFound. NotFound is not an error.
const (
	Unresolved State = iota
	Listed
	Resolved
	NotFound
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Listed:
		return "listed"
	case Resolved:
		return "resolved"
	case NotFound:
		return "not found"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Resolver caches the active course list and remembers the last course a
// lookup matched. It is not safe for concurrent use.
type Resolver struct {
	api    API
	logger *slog.Logger

	courses []classroom.Course
	current *classroom.Course
	state   State
}

// NewResolver returns a Resolver in the Unresolved state.
func NewResolver(api API, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{api: api, logger: logger}
}

// Load lists ACTIVE courses and replaces the cache. On failure the cache
// is emptied, the failure is logged, and the error is returned.
func (r *Resolver) Load(ctx context.Context) error {
	courses, err := r.api.ListCourses(ctx, []string{classroom.CourseStateActive})
	if err != nil {
		r.courses = nil
		r.current = nil
		r.state = Unresolved

		r.logger.Warn("listing courses failed", slog.String("error", err.Error()))

		return fmt.Errorf("course: listing active courses: %w", err)
	}

	r.courses = courses
	r.current = nil
	r.state = Listed

	r.logger.Info("found courses", slog.Int("count", len(courses)))

	return nil
}

// Courses returns the cached course list.
func (r *Resolver) Courses() []classroom.Course {
	return r.courses
}

// State returns the current resolution state.
func (r *Resolver) State() State {
	return r.state
}

// Current returns the course the last successful lookup matched.
func (r *Resolver) Current() (classroom.Course, bool) {
	if r.current == nil {
		return classroom.Course{}, false
	}

	return *r.current, true
}

// ByName finds a course by display name, ignoring case. The first match in
// list order wins.
func (r *Resolver) ByName(name string) (classroom.Course, bool) {
	return r.find("name", name, byName(name))
}

// ByID finds a course by exact id.
func (r *Resolver) ByID(id string) (classroom.Course, bool) {
	return r.find("id", id, byID(id))
}

// Resolve matches ref as an id first, then as a name.
func (r *Resolver) Resolve(ref string) (classroom.Course, bool) {
	return r.find("ref", ref, byID(ref), byName(ref))
}

// Require is Resolve for callers that cannot continue without a course.
func (r *Resolver) Require(ref string) (classroom.Course, error) {
	if r.state == Unresolved {
		return classroom.Course{}, errors.New("course: resolver used before Load")
	}

	c, ok := r.Resolve(ref)
	if !ok {
		return classroom.Course{}, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}

	return c, nil
}

type matcher func(*classroom.Course) bool

func byID(id string) matcher {
	return func(c *classroom.Course) bool { return c.ID == id }
}

func byName(name string) matcher {
	return func(c *classroom.Course) bool { return classroom.SameName(c.Name, name) }
}

// find tries each matcher over the whole list in turn, so an earlier
// matcher outranks a later one regardless of list position.
func (r *Resolver) find(by, ref string, matchers ...matcher) (classroom.Course, bool) {
	if r.state == Unresolved {
		r.logger.Warn("course lookup before courses were listed", slog.String(by, ref))
		return classroom.Course{}, false
	}

	for _, match := range matchers {
		for i := range r.courses {
			if !match(&r.courses[i]) {
				continue
			}

			r.current = &r.courses[i]
			r.state = Resolved

			r.logger.Info("course resolved",
				slog.String("name", r.current.Name),
				slog.String("id", r.current.ID),
			)

			return *r.current, true
		}
	}

	r.current = nil
	r.state = NotFound

	r.logger.Warn("course not found", slog.String(by, ref))

	return classroom.Course{}, false
}

// Create validates spec and creates a course owned by the caller. It is
// not idempotent: calling it twice makes two courses. The new course
// becomes Current.
func (r *Resolver) Create(ctx context.Context, spec Spec) (*classroom.Course, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	created, err := r.api.CreateCourse(ctx, spec.toNewCourse())
	if err != nil {
		r.logger.Error("creating course failed",
			slog.String("name", spec.Name),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("course: creating %q: %w", spec.Name, err)
	}

	r.logger.Info("course created",
		slog.String("name", created.Name),
		slog.String("id", created.ID),
	)

	c := *created
	r.current = &c
	r.state = Resolved

	return created, nil
}
