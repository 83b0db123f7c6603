package classroom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// assigneeAllStudents addresses an announcement to the whole course.
const assigneeAllStudents = "ALL_STUDENTS"

// CreateAnnouncement posts a published announcement to all students.
func (c *Client) CreateAnnouncement(ctx context.Context, courseID, text string, materials []Material) (*Announcement, error) {
	path := fmt.Sprintf("/courses/%s/announcements", url.PathEscape(courseID))

	body := NewAnnouncement{
		Text:         text,
		State:        StatePublished,
		AssigneeMode: assigneeAllStudents,
		Materials:    materials,
	}

	var a Announcement
	if err := c.postJSON(ctx, path, body, &a); err != nil {
		return nil, fmt.Errorf("creating announcement: %w", err)
	}

	c.logger.Info("created announcement",
		slog.String("course_id", courseID),
		slog.String("announcement_id", a.ID),
		slog.Int("materials", len(materials)),
	)

	return &a, nil
}

// CreateCourseWorkMaterial posts a course work material. A nil
// Materials slice is sent as an empty array.
func (c *Client) CreateCourseWorkMaterial(ctx context.Context, courseID string, nm NewMaterial) (*CourseWorkMaterial, error) {
	path := fmt.Sprintf("/courses/%s/courseWorkMaterials", url.PathEscape(courseID))

	if nm.Materials == nil {
		nm.Materials = []Material{}
	}

	var m CourseWorkMaterial
	if err := c.postJSON(ctx, path, nm, &m); err != nil {
		return nil, fmt.Errorf("creating material %q: %w", nm.Title, err)
	}

	c.logger.Info("created material",
		slog.String("course_id", courseID),
		slog.String("material_id", m.ID),
		slog.String("title", m.Title),
	)

	return &m, nil
}
