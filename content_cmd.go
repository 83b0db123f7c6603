package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/content"
)

func newTopicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "List and create topics in the selected course",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List topics",
		Args:  cobra.NoArgs,
		RunE:  runTopicList,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure <name>",
		Short: "Create a topic unless one with that name exists",
		Long: `Return the topic with the given name, ignoring case, creating it if missing.

Two concurrent runs with the same name can both create it.`,
		Args: cobra.ExactArgs(1),
		RunE: runTopicEnsure,
	})

	return cmd
}

func newAnnounceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "announce <text>",
		Short: "Post an announcement to every student",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnnounce,
	}

	addAttachmentFlags(cmd)

	return cmd
}

func newMaterialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "material",
		Short: "Post course materials",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Post a course work material",
		Args:  cobra.NoArgs,
		RunE:  runMaterialCreate,
	}

	create.Flags().String("title", "", "material title (required)")
	create.Flags().String("description", "", "material description")
	create.Flags().String("topic", "", "topic name; created if missing")
	create.Flags().Bool("draft", false, "save as a draft instead of publishing")
	addAttachmentFlags(create)

	if err := create.MarkFlagRequired("title"); err != nil {
		panic(err)
	}

	cmd.AddCommand(create)

	return cmd
}

func addAttachmentFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("link", nil, "attach a URL (repeatable)")
	cmd.Flags().StringArray("drive-file", nil, "attach a Drive file by id (repeatable)")
	cmd.Flags().StringArray("youtube", nil, "attach a YouTube video by id (repeatable)")
}

// attachments builds materials from the attachment flags, in flag order:
// links, then Drive files, then videos.
func attachments(cmd *cobra.Command) []classroom.Material {
	var out []classroom.Material

	links, _ := cmd.Flags().GetStringArray("link")
	for _, u := range links {
		out = append(out, classroom.LinkMaterial(u))
	}

	files, _ := cmd.Flags().GetStringArray("drive-file")
	for _, id := range files {
		out = append(out, classroom.DriveFileMaterial(id))
	}

	videos, _ := cmd.Flags().GetStringArray("youtube")
	for _, id := range videos {
		out = append(out, classroom.YouTubeMaterial(id))
	}

	return out
}

// contentFor resolves the selected course and returns a content manager.
func (cc *CLIContext) contentFor(ctx context.Context) (*content.Manager, classroom.Course, error) {
	s, err := cc.session(ctx)
	if err != nil {
		return nil, classroom.Course{}, err
	}

	crs, err := s.currentCourse(ctx)
	if err != nil {
		return nil, classroom.Course{}, err
	}

	return s.content(), crs, nil
}

type topicJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created bool   `json:"created,omitempty"`
}

func runTopicList(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	mgr, crs, err := cc.contentFor(ctx)
	if err != nil {
		return err
	}

	topics, err := mgr.ListTopics(ctx, crs.ID)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		out := make([]topicJSON, 0, len(topics))
		for _, t := range topics {
			out = append(out, topicJSON{ID: t.ID, Name: t.Name})
		}

		return printJSON(cc.Out, out)
	}

	if len(topics) == 0 {
		cc.Statusf("No topics.\n")
		return nil
	}

	rows := make([][]string, 0, len(topics))
	for _, t := range topics {
		rows = append(rows, []string{t.ID, t.Name})
	}

	printTable(cc.Out, []string{"ID", "NAME"}, rows)

	return nil
}

func runTopicEnsure(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	mgr, crs, err := cc.contentFor(ctx)
	if err != nil {
		return err
	}

	id, created, err := mgr.FindOrCreateTopic(ctx, crs.ID, args[0])
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, topicJSON{ID: id, Name: args[0], Created: created})
	}

	if created {
		cc.Statusf("Created topic %q.\n", args[0])
	} else {
		cc.Statusf("Topic %q already exists.\n", args[0])
	}

	fmt.Fprintln(cc.Out, id)

	return nil
}

type postJSON struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	TopicID  string `json:"topic_id,omitempty"`
}

func runAnnounce(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	mgr, crs, err := cc.contentFor(ctx)
	if err != nil {
		return err
	}

	id, err := mgr.CreateAnnouncement(ctx, crs.ID, args[0], attachments(cmd))
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, postJSON{ID: id, CourseID: crs.ID})
	}

	cc.Statusf("Announcement posted to %q.\n", crs.Name)
	fmt.Fprintln(cc.Out, id)

	return nil
}

func runMaterialCreate(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	spec := content.MaterialSpec{
		Materials: attachments(cmd),
		State:     classroom.StatePublished,
	}
	spec.Title, _ = cmd.Flags().GetString("title")
	spec.Description, _ = cmd.Flags().GetString("description")

	if draft, _ := cmd.Flags().GetBool("draft"); draft {
		spec.State = classroom.StateDraft
	}

	mgr, crs, err := cc.contentFor(ctx)
	if err != nil {
		return err
	}

	if topic, _ := cmd.Flags().GetString("topic"); topic != "" {
		spec.TopicID, _, err = mgr.FindOrCreateTopic(ctx, crs.ID, topic)
		if err != nil {
			return err
		}
	}

	id, err := mgr.CreateMaterial(ctx, crs.ID, spec)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, postJSON{ID: id, CourseID: crs.ID, TopicID: spec.TopicID})
	}

	cc.Statusf("Material %q posted to %q.\n", spec.Title, crs.Name)
	fmt.Fprintln(cc.Out, id)

	return nil
}
