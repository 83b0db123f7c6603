package classroom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// coursesListResponse mirrors GET /courses.
type coursesListResponse struct {
	Courses       []Course `json:"courses"`
	NextPageToken string   `json:"nextPageToken"`
}

// ListCoursesPage fetches one page of courses visible to the caller,
// filtered to the given states (all states when empty).
func (c *Client) ListCoursesPage(ctx context.Context, states []string, pageSize int, pageToken string) (Page[Course], error) {
	q := url.Values{}
	for _, s := range states {
		q.Add("courseStates", s)
	}

	q.Set("pageSize", strconv.Itoa(clampPageSize(pageSize)))

	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var resp coursesListResponse
	if err := c.getJSON(ctx, "/courses?"+q.Encode(), &resp); err != nil {
		return Page[Course]{}, err
	}

	return Page[Course]{Items: resp.Courses, NextPageToken: resp.NextPageToken}, nil
}

// ListCourses returns every course in the given states, following
// pagination to the end.
func (c *Client) ListCourses(ctx context.Context, states []string) ([]Course, error) {
	c.logger.Info("listing courses", slog.Any("states", states))

	courses, err := Drain(ctx, func(ctx context.Context, token string) (Page[Course], error) {
		return c.ListCoursesPage(ctx, states, MaxPageSize, token)
	}, c.logger)
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed courses", slog.Int("count", len(courses)))

	return courses, nil
}

// GetCourse fetches one course by ID or alias.
func (c *Client) GetCourse(ctx context.Context, courseID string) (*Course, error) {
	var course Course
	if err := c.getJSON(ctx, "/courses/"+url.PathEscape(courseID), &course); err != nil {
		return nil, err
	}

	return &course, nil
}

// CreateCourse creates a course owned by the authenticated principal.
// Not idempotent: two calls with the same body create two courses.
func (c *Client) CreateCourse(ctx context.Context, nc NewCourse) (*Course, error) {
	c.logger.Info("creating course", slog.String("name", nc.Name))

	body := struct {
		NewCourse
		OwnerID string `json:"ownerId"`
	}{NewCourse: nc, OwnerID: ownerMe}

	var course Course
	if err := c.postJSON(ctx, "/courses", body, &course); err != nil {
		return nil, fmt.Errorf("creating course %q: %w", nc.Name, err)
	}

	c.logger.Info("created course",
		slog.String("name", course.Name),
		slog.String("course_id", course.ID),
	)

	return &course, nil
}
