package classroom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// RoleStudent is the invitation role for students.
const RoleStudent = "STUDENT"

// profileResponse mirrors the API's UserProfile resource.
type profileResponse struct {
	ID   string `json:"id"`
	Name struct {
		FullName string `json:"fullName"`
	} `json:"name"`
	EmailAddress string `json:"emailAddress"`
}

// studentResponse mirrors the API's Student resource.
// Callers see it as a Student via toStudent.
type studentResponse struct {
	CourseID string          `json:"courseId"`
	UserID   string          `json:"userId"`
	Profile  profileResponse `json:"profile"`
}

type studentsListResponse struct {
	Students      []studentResponse `json:"students"`
	NextPageToken string            `json:"nextPageToken"`
}

// toStudent flattens the nested profile.
func (s *studentResponse) toStudent() Student {
	return Student{
		UserID:   s.UserID,
		CourseID: s.CourseID,
		Email:    s.Profile.EmailAddress,
		FullName: s.Profile.Name.FullName,
	}
}

// ListStudentsPage fetches one page of a course roster.
func (c *Client) ListStudentsPage(ctx context.Context, courseID string, pageSize int, pageToken string) (Page[Student], error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(clampPageSize(pageSize)))

	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	path := fmt.Sprintf("/courses/%s/students?%s", url.PathEscape(courseID), q.Encode())

	var resp studentsListResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return Page[Student]{}, err
	}

	students := make([]Student, 0, len(resp.Students))
	for i := range resp.Students {
		students = append(students, resp.Students[i].toStudent())
	}

	return Page[Student]{Items: students, NextPageToken: resp.NextPageToken}, nil
}

// ListStudents returns a course's full roster in server order.
// pageSize is capped at MaxPageSize.
func (c *Client) ListStudents(ctx context.Context, courseID string, pageSize int) ([]Student, error) {
	c.logger.Info("listing students",
		slog.String("course_id", courseID),
		slog.Int("page_size", clampPageSize(pageSize)),
	)

	students, err := Drain(ctx, func(ctx context.Context, token string) (Page[Student], error) {
		return c.ListStudentsPage(ctx, courseID, pageSize, token)
	}, c.logger)
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed students",
		slog.String("course_id", courseID),
		slog.Int("count", len(students)),
	)

	return students, nil
}

// CreateStudent enrolls a user directly. created is false when the API
// answers 409, meaning the user is already on the roster.
func (c *Client) CreateStudent(ctx context.Context, courseID, userID string) (*Student, bool, error) {
	path := fmt.Sprintf("/courses/%s/students", url.PathEscape(courseID))

	var sr studentResponse

	created, err := c.postCreate(ctx, path, map[string]string{"userId": userID}, &sr)
	if err != nil {
		return nil, false, err
	}

	if !created {
		return nil, false, nil
	}

	student := sr.toStudent()

	return &student, true, nil
}

// CreateInvitation invites a user to a course as a student. created is
// false when the API answers 409, meaning the invitation already exists.
func (c *Client) CreateInvitation(ctx context.Context, courseID, userID string) (bool, error) {
	body := map[string]string{
		"userId":   userID,
		"courseId": courseID,
		"role":     RoleStudent,
	}

	return c.postCreate(ctx, "/invitations", body, nil)
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	c.logger.Info("fetching authenticated user profile")

	var pr profileResponse
	if err := c.getJSON(ctx, "/userProfiles/me", &pr); err != nil {
		return nil, err
	}

	return &UserProfile{
		ID:       pr.ID,
		Email:    pr.EmailAddress,
		FullName: pr.Name.FullName,
	}, nil
}
