// Package meeting schedules video meetings on Zoom so their join links can
// be posted to a course. It authenticates with a short-lived HS256 JWT
// signed by the account's API secret.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-resty/resty/v2"

	"github.com/tonimelisma/classroom-go/internal/validate"
)

// Defaults applied by NewClient when a Config field is zero.
const (
	DefaultBaseURL  = "https://api.zoom.us/v2"
	DefaultUserID   = "me"
	DefaultDuration = 60
	DefaultTimezone = "UTC"
	DefaultLeadTime = 10 * time.Minute
	DefaultTokenTTL = time.Hour
	defaultTimeout  = 30 * time.Second
)

// scheduledMeeting is Zoom's meeting type for a one-off meeting at a set time.
const scheduledMeeting = 2

// startTimeLayout is the UTC layout Zoom expects for start_time.
const startTimeLayout = "2006-01-02T15:04:05Z"

// ErrMissingCredentials is returned by NewClient without an API key and secret.
var ErrMissingCredentials = errors.New("meeting: API key and secret are required")

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	UserID    string
	Duration  int
	Timezone  string
	LeadTime  time.Duration
	TokenTTL  time.Duration
	Timeout   time.Duration
}

// Settings are the in-meeting options.
type Settings struct {
	JoinBeforeHost bool `json:"join_before_host"`
	MuteUponEntry  bool `json:"mute_upon_entry"`
	WaitingRoom    bool `json:"waiting_room"`
}

// DefaultSettings lets students in before the host, muted.
func DefaultSettings() Settings {
	return Settings{JoinBeforeHost: true, MuteUponEntry: true}
}

// Request describes a meeting to schedule. Zero fields take the client's
// defaults; a zero StartTime means LeadTime from now.
type Request struct {
	Topic     string    `json:"topic" validate:"notblank,max=200"`
	Agenda    string    `json:"agenda" validate:"max=2000"`
	StartTime time.Time `json:"start_time"`
	Duration  int       `json:"duration" validate:"omitempty,gte=1,lte=1440"`
	Timezone  string    `json:"timezone"`
	Settings  *Settings `json:"settings"`
}

// Meeting is a scheduled meeting.
type Meeting struct {
	ID        int64  `json:"id"`
	Topic     string `json:"topic"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Timezone  string `json:"timezone"`
	JoinURL   string `json:"join_url"`
	StartURL  string `json:"start_url"`
	Password  string `json:"password"`
}

// Error is a non-2xx answer from the meeting API.
type Error struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("meeting: HTTP %d", e.StatusCode)
	}

	return fmt.Sprintf("meeting: HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// Client schedules meetings for one user.
type Client struct {
	cfg     Config
	http    *resty.Client
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewClient returns a Client for cfg, filling in defaults.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.UserID == "" {
		cfg.UserID = DefaultUserID
	}

	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}

	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}

	if cfg.LeadTime <= 0 {
		cfg.LeadTime = DefaultLeadTime
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{cfg: cfg, http: rc, logger: logger, nowFunc: time.Now}, nil
}

// token signs a JWT identifying the API key.
func (c *Client) token() (string, error) {
	claims := jwt.StandardClaims{
		Issuer:    c.cfg.APIKey,
		ExpiresAt: c.nowFunc().Add(c.cfg.TokenTTL).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.APISecret))
	if err != nil {
		return "", fmt.Errorf("meeting: signing token: %w", err)
	}

	return signed, nil
}

type createBody struct {
	Topic     string   `json:"topic"`
	Type      int      `json:"type"`
	StartTime string   `json:"start_time"`
	Duration  int      `json:"duration"`
	Timezone  string   `json:"timezone"`
	Agenda    string   `json:"agenda,omitempty"`
	Settings  Settings `json:"settings"`
}

func (c *Client) body(req Request) createBody {
	start := req.StartTime
	if start.IsZero() {
		start = c.nowFunc().Add(c.cfg.LeadTime)
	}

	b := createBody{
		Topic:     req.Topic,
		Type:      scheduledMeeting,
		StartTime: start.UTC().Format(startTimeLayout),
		Duration:  req.Duration,
		Timezone:  req.Timezone,
		Agenda:    req.Agenda,
		Settings:  DefaultSettings(),
	}

	if b.Duration == 0 {
		b.Duration = c.cfg.Duration
	}

	if b.Timezone == "" {
		b.Timezone = c.cfg.Timezone
	}

	if req.Settings != nil {
		b.Settings = *req.Settings
	}

	return b
}

// Schedule creates a scheduled meeting and returns it.
func (c *Client) Schedule(ctx context.Context, req Request) (*Meeting, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	tok, err := c.token()
	if err != nil {
		return nil, err
	}

	body := c.body(req)

	c.logger.Info("scheduling meeting",
		slog.String("topic", body.Topic),
		slog.String("start_time", body.StartTime),
		slog.Int("duration", body.Duration),
	)

	var (
		m      Meeting
		apiErr Error
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(tok).
		SetPathParam("userId", c.cfg.UserID).
		SetBody(body).
		SetResult(&m).
		SetError(&apiErr).
		Post("/users/{userId}/meetings")
	if err != nil {
		return nil, fmt.Errorf("meeting: scheduling %q: %w", body.Topic, err)
	}

	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		c.logger.Error("scheduling meeting failed",
			slog.Int("status", apiErr.StatusCode),
			slog.String("message", apiErr.Message),
		)

		return nil, &apiErr
	}

	c.logger.Info("meeting scheduled",
		slog.Int64("meeting_id", m.ID),
		slog.String("start_time", m.StartTime),
	)

	return &m, nil
}
