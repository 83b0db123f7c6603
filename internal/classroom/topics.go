package classroom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
)

// topicsListResponse mirrors GET /courses/{id}/topics. The API names the
// array "topic" (singular), unlike the other list endpoints.
type topicsListResponse struct {
	Topic         []Topic `json:"topic"`
	NextPageToken string  `json:"nextPageToken"`
}

// ListTopicsPage fetches one page of a course's topics.
func (c *Client) ListTopicsPage(ctx context.Context, courseID string, pageSize int, pageToken string) (Page[Topic], error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(clampPageSize(pageSize)))

	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	path := fmt.Sprintf("/courses/%s/topics?%s", url.PathEscape(courseID), q.Encode())

	var resp topicsListResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return Page[Topic]{}, err
	}

	return Page[Topic]{Items: resp.Topic, NextPageToken: resp.NextPageToken}, nil
}

// ListTopics returns every topic in a course.
func (c *Client) ListTopics(ctx context.Context, courseID string) ([]Topic, error) {
	c.logger.Debug("listing topics", slog.String("course_id", courseID))

	topics, err := Drain(ctx, func(ctx context.Context, token string) (Page[Topic], error) {
		return c.ListTopicsPage(ctx, courseID, MaxPageSize, token)
	}, c.logger)
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed topics",
		slog.String("course_id", courseID),
		slog.Int("count", len(topics)),
	)

	return topics, nil
}

// CreateTopic creates a topic. The API does not deduplicate by name.
func (c *Client) CreateTopic(ctx context.Context, courseID, name string) (*Topic, error) {
	path := fmt.Sprintf("/courses/%s/topics", url.PathEscape(courseID))

	var topic Topic
	if err := c.postJSON(ctx, path, map[string]string{"name": name}, &topic); err != nil {
		return nil, fmt.Errorf("creating topic %q: %w", name, err)
	}

	return &topic, nil
}
