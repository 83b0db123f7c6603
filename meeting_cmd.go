package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/config"
	"github.com/tonimelisma/classroom-go/internal/meeting"
)

// startLayouts are the accepted --start formats. Layouts without a zone
// are read in the meeting's timezone.
var startLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func newMeetingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Schedule video meetings",
	}

	schedule := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a Zoom meeting, optionally announcing it to the course",
		Long: `Schedule a Zoom meeting and print its join link.

Credentials come from ZOOM_API_KEY and ZOOM_API_SECRET, read from the
environment or from the [zoom] env_file. Without --start the meeting begins
[zoom] lead_time from now. With --announce the join link is posted to the
selected course.`,
		Args: cobra.NoArgs,
		RunE: runMeetingSchedule,
	}

	schedule.Flags().String("topic", "", "meeting topic (required)")
	schedule.Flags().String("agenda", "", "meeting agenda")
	schedule.Flags().String("start", "", "start time, RFC 3339 or YYYY-MM-DD HH:MM")
	schedule.Flags().Int("duration", 0, "length in minutes (default from [zoom] duration)")
	schedule.Flags().String("timezone", "", "IANA timezone (default from [zoom] timezone)")
	schedule.Flags().Bool("announce", false, "post the join link as an announcement")

	if err := schedule.MarkFlagRequired("topic"); err != nil {
		panic(err)
	}

	cmd.AddCommand(schedule)

	return cmd
}

// parseStart parses --start. An empty value is the zero time, meaning the
// client's lead time from now.
func parseStart(s, tz string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading timezone %q: %w", tz, err)
	}

	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid --start %q: want RFC 3339 or YYYY-MM-DD HH:MM", s)
}

// meetingConfig merges [zoom] settings with the credentials.
func meetingConfig(cfg *config.Resolved, secrets config.ZoomSecrets) meeting.Config {
	userID := cfg.Zoom.UserID
	if secrets.UserID != "" {
		userID = secrets.UserID
	}

	return meeting.Config{
		BaseURL:   cfg.Zoom.BaseURL,
		APIKey:    secrets.APIKey,
		APISecret: secrets.APISecret,
		UserID:    userID,
		Duration:  cfg.Zoom.Duration,
		Timezone:  cfg.Zoom.Timezone,
		LeadTime:  cfg.Zoom.LeadDuration(),
		Timeout:   cfg.Network.TimeoutDuration(),
	}
}

type meetingJSON struct {
	*meeting.Meeting
	AnnouncementID string `json:"announcement_id,omitempty"`
}

func runMeetingSchedule(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	secrets, err := config.ReadZoomSecrets(cc.Cfg.Zoom.EnvFile)
	if err != nil {
		return err
	}

	client, err := meeting.NewClient(meetingConfig(cc.Cfg, secrets), cc.Logger)
	if errors.Is(err, meeting.ErrMissingCredentials) {
		return fmt.Errorf("%w: set %s and %s", err, config.EnvZoomAPIKey, config.EnvZoomAPISecret)
	}

	if err != nil {
		return err
	}

	req := meeting.Request{}
	req.Topic, _ = cmd.Flags().GetString("topic")
	req.Agenda, _ = cmd.Flags().GetString("agenda")
	req.Duration, _ = cmd.Flags().GetInt("duration")
	req.Timezone, _ = cmd.Flags().GetString("timezone")

	tz := req.Timezone
	if tz == "" {
		tz = cc.Cfg.Zoom.Timezone
	}

	start, _ := cmd.Flags().GetString("start")
	if req.StartTime, err = parseStart(start, tz); err != nil {
		return err
	}

	announce, _ := cmd.Flags().GetBool("announce")

	// Resolve the course first so a bad --course does not leave an
	// orphaned meeting behind.
	var (
		s   *Session
		crs classroom.Course
	)

	if announce {
		if s, err = cc.session(ctx); err != nil {
			return err
		}

		if crs, err = s.currentCourse(ctx); err != nil {
			return err
		}
	}

	m, err := client.Schedule(ctx, req)
	if err != nil {
		return err
	}

	out := meetingJSON{Meeting: m}

	if announce {
		text := fmt.Sprintf("%s\nStarts %s (%s). Join: %s", m.Topic, m.StartTime, m.Timezone, m.JoinURL)

		out.AnnouncementID, err = s.content().CreateAnnouncement(ctx, crs.ID, text,
			[]classroom.Material{classroom.LinkMaterial(m.JoinURL)})
		if err != nil {
			return fmt.Errorf("meeting %d scheduled but not announced: %w", m.ID, err)
		}
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, out)
	}

	fmt.Fprintf(cc.Out, "Meeting:  %d\n", m.ID)
	fmt.Fprintf(cc.Out, "Topic:    %s\n", m.Topic)
	fmt.Fprintf(cc.Out, "Start:    %s (%s)\n", m.StartTime, m.Timezone)
	fmt.Fprintf(cc.Out, "Join:     %s\n", m.JoinURL)

	if m.Password != "" {
		fmt.Fprintf(cc.Out, "Password: %s\n", m.Password)
	}

	if out.AnnouncementID != "" {
		cc.Statusf("Announced in %q.\n", crs.Name)
	}

	return nil
}
