// Package content manages course topics and creates announcements and
// course work materials.
package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/validate"
)

// API is the slice of the Classroom client the manager needs.
type API interface {
	ListTopics(ctx context.Context, courseID string) ([]classroom.Topic, error)
	CreateTopic(ctx context.Context, courseID, name string) (*classroom.Topic, error)
	CreateAnnouncement(ctx context.Context, courseID, text string, materials []classroom.Material) (*classroom.Announcement, error)
	CreateCourseWorkMaterial(ctx context.Context, courseID string, nm classroom.NewMaterial) (*classroom.CourseWorkMaterial, error)
}

// MaterialSpec describes a course work material to create.
type MaterialSpec struct {
	Title       string               `json:"title" validate:"notblank,max=3000"`
	Description string               `json:"description" validate:"max=30000"`
	TopicID     string               `json:"topicId"`
	State       string               `json:"state" validate:"omitempty,oneof=PUBLISHED DRAFT"`
	Materials   []classroom.Material `json:"materials"`
}

// Manager creates content in courses.
type Manager struct {
	api    API
	logger *slog.Logger
}

// NewManager returns a Manager.
func NewManager(api API, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{api: api, logger: logger}
}

// ListTopics returns every topic in the course. A listing failure is
// logged and returned with a nil slice.
func (m *Manager) ListTopics(ctx context.Context, courseID string) ([]classroom.Topic, error) {
	topics, err := m.api.ListTopics(ctx, courseID)
	if err != nil {
		m.logger.Warn("listing topics failed",
			slog.String("course_id", courseID),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("content: listing topics: %w", err)
	}

	m.logger.Info("found topics in course",
		slog.String("course_id", courseID),
		slog.Int("count", len(topics)),
	)

	return topics, nil
}

// FindOrCreateTopic returns the id of the topic named name, ignoring case,
// creating it if none exists. created reports which happened. Two callers
// racing on the same name can both create it.
func (m *Manager) FindOrCreateTopic(ctx context.Context, courseID, name string) (id string, created bool, err error) {
	topics, err := m.ListTopics(ctx, courseID)
	if err != nil {
		return "", false, err
	}

	for _, t := range topics {
		if classroom.SameName(t.Name, name) {
			m.logger.Info("topic already exists",
				slog.String("name", t.Name),
				slog.String("topic_id", t.ID),
			)

			return t.ID, false, nil
		}
	}

	topic, err := m.api.CreateTopic(ctx, courseID, name)
	if err != nil {
		m.logger.Error("creating topic failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)

		return "", false, fmt.Errorf("content: creating topic %q: %w", name, err)
	}

	m.logger.Info("topic created",
		slog.String("name", name),
		slog.String("topic_id", topic.ID),
	)

	return topic.ID, true, nil
}

// CreateAnnouncement posts text to every student of the course, with
// materials attached as given. It returns the announcement id.
func (m *Manager) CreateAnnouncement(ctx context.Context, courseID, text string, materials []classroom.Material) (string, error) {
	if err := validate.Struct(announcementInput{Text: text}); err != nil {
		return "", err
	}

	a, err := m.api.CreateAnnouncement(ctx, courseID, text, materials)
	if err != nil {
		m.logger.Error("creating announcement failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("content: creating announcement: %w", err)
	}

	return a.ID, nil
}

type announcementInput struct {
	Text string `json:"text" validate:"notblank"`
}

// CreateMaterial posts a course work material and returns its id. State
// defaults to PUBLISHED.
func (m *Manager) CreateMaterial(ctx context.Context, courseID string, spec MaterialSpec) (string, error) {
	if err := validate.Struct(spec); err != nil {
		return "", err
	}

	state := spec.State
	if state == "" {
		state = classroom.StatePublished
	}

	cwm, err := m.api.CreateCourseWorkMaterial(ctx, courseID, classroom.NewMaterial{
		Title:       spec.Title,
		Description: spec.Description,
		State:       state,
		TopicID:     spec.TopicID,
		Materials:   spec.Materials,
	})
	if err != nil {
		m.logger.Error("creating material failed",
			slog.String("title", spec.Title),
			slog.String("error", err.Error()),
		)

		return "", fmt.Errorf("content: creating material %q: %w", spec.Title, err)
	}

	return cwm.ID, nil
}
