package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/course"
)

func newCourseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "List, show, and create courses",
	}

	cmd.AddCommand(newCourseListCmd())
	cmd.AddCommand(newCourseShowCmd())
	cmd.AddCommand(newCourseCreateCmd())

	return cmd
}

func newCourseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active courses",
		Args:  cobra.NoArgs,
		RunE:  runCourseList,
	}
}

func newCourseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id-or-name]",
		Short: "Show one course (defaults to the selected course)",
		Long: `Show one course. The argument is matched as a course id first and then
as a case-insensitive name. Without an argument the --course selection is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCourseShow,
	}
}

func newCourseCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a course owned by you",
		Long: `Create a course owned by the authenticated user.

This is not idempotent: running it twice creates two courses.`,
		Args: cobra.NoArgs,
		RunE: runCourseCreate,
	}

	cmd.Flags().String("name", "", "course name (required)")
	cmd.Flags().String("section", "", "section")
	cmd.Flags().String("room", "", "room")
	cmd.Flags().String("description", "", "description")
	cmd.Flags().String("heading", "", "description heading")

	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}

	return cmd
}

// courseJSON is the JSON schema for course output.
type courseJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Section        string `json:"section,omitempty"`
	Room           string `json:"room,omitempty"`
	Description    string `json:"description,omitempty"`
	State          string `json:"state,omitempty"`
	EnrollmentCode string `json:"enrollment_code,omitempty"`
	Link           string `json:"link,omitempty"`
}

func toCourseJSON(c *classroom.Course) courseJSON {
	return courseJSON{
		ID:             c.ID,
		Name:           c.Name,
		Section:        c.Section,
		Room:           c.Room,
		Description:    c.Description,
		State:          c.State,
		EnrollmentCode: c.EnrollmentCode,
		Link:           c.AlternateLink,
	}
}

func runCourseList(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	s, err := cc.session(ctx)
	if err != nil {
		return err
	}

	if err := s.Courses.Load(ctx); err != nil {
		return err
	}

	courses := s.Courses.Courses()

	if cc.Flags.JSON {
		out := make([]courseJSON, 0, len(courses))
		for i := range courses {
			out = append(out, toCourseJSON(&courses[i]))
		}

		return printJSON(cc.Out, out)
	}

	if len(courses) == 0 {
		cc.Statusf("No active courses.\n")
		return nil
	}

	rows := make([][]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, []string{c.ID, c.Name, c.Section})
	}

	printTable(cc.Out, []string{"ID", "NAME", "SECTION"}, rows)

	return nil
}

func runCourseShow(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	if len(args) == 1 {
		cc.Cfg.Course = args[0]
	}

	s, err := cc.session(ctx)
	if err != nil {
		return err
	}

	c, err := s.currentCourse(ctx)
	if err != nil {
		return err
	}

	printCourse(cc, &c)

	return nil
}

func runCourseCreate(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	spec := course.Spec{}
	spec.Name, _ = cmd.Flags().GetString("name")
	spec.Section, _ = cmd.Flags().GetString("section")
	spec.Room, _ = cmd.Flags().GetString("room")
	spec.Description, _ = cmd.Flags().GetString("description")
	spec.DescriptionHeading, _ = cmd.Flags().GetString("heading")

	// Fail on bad input before any browser flow or network call.
	if err := spec.Validate(); err != nil {
		return err
	}

	s, err := cc.session(ctx)
	if err != nil {
		return err
	}

	created, err := s.Courses.Create(ctx, spec)
	if err != nil {
		return err
	}

	cc.Statusf("Created course %q.\n", created.Name)
	printCourse(cc, created)

	return nil
}

func printCourse(cc *CLIContext, c *classroom.Course) {
	if cc.Flags.JSON {
		if err := printJSON(cc.Out, toCourseJSON(c)); err != nil {
			cc.Logger.Error("writing output", "error", err)
		}

		return
	}

	fmt.Fprintf(cc.Out, "ID:       %s\n", c.ID)
	fmt.Fprintf(cc.Out, "Name:     %s\n", c.Name)

	if c.Section != "" {
		fmt.Fprintf(cc.Out, "Section:  %s\n", c.Section)
	}

	if c.Room != "" {
		fmt.Fprintf(cc.Out, "Room:     %s\n", c.Room)
	}

	if c.State != "" {
		fmt.Fprintf(cc.Out, "State:    %s\n", c.State)
	}

	if c.EnrollmentCode != "" {
		fmt.Fprintf(cc.Out, "Code:     %s\n", c.EnrollmentCode)
	}

	if c.AlternateLink != "" {
		fmt.Fprintf(cc.Out, "Link:     %s\n", c.AlternateLink)
	}
}
