package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/classroom-go/internal/auth"
	"github.com/tonimelisma/classroom-go/internal/classroom"
	"github.com/tonimelisma/classroom-go/internal/config"
	"github.com/tonimelisma/classroom-go/internal/ledger"
	"github.com/tonimelisma/classroom-go/internal/roster"
)

func TestWhoami_JSON(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("--json", "whoami")

	var got whoamiOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "teacher@school.edu", got.Email)
	assert.Equal(t, "Ada Teacher", got.FullName)
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	env := newCLIEnv(t, "")
	_, _, err := env.run("logout")
	require.NoError(t, err)

	_, _, err = env.run("whoami")
	assert.ErrorContains(t, err, "not logged in")
}

func TestConfigShow_JSON(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("--json", "config", "show")
	assert.Contains(t, out, `"Course": "Algebra I"`)
}

func TestCourseList(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("course", "list")
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Algebra I")
	assert.Contains(t, out, "Period 2")
}

func TestCourseShow_ByNameIgnoringCase(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("--json", "course", "show", "algebra i")

	var got courseJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "c1", got.ID)
}

func TestCourseShow_Unknown(t *testing.T) {
	env := newCLIEnv(t, "")

	_, _, err := env.run("course", "show", "Chemistry")
	assert.Error(t, err)
}

func TestCourseCreate_ValidatesBeforeCalling(t *testing.T) {
	env := newCLIEnv(t, "")

	_, _, err := env.run("course", "create", "--name", "   ")
	assert.Error(t, err)

	out := env.mustRun("--json", "course", "create", "--name", "Biology", "--section", "B")

	var got courseJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "c2", got.ID)
	assert.Equal(t, "Biology", got.Name)
}

func TestStudentsAdd_Idempotent(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("students", "add", "ann@school.edu", "bob@school.edu")
	assert.Contains(t, out, "ann@school.edu: added")
	assert.Contains(t, out, "bob@school.edu: added")

	out = env.mustRun("students", "add", "ann@school.edu")
	assert.Contains(t, out, "ann@school.edu: already_enrolled")

	assert.Equal(t, []string{"ann@school.edu", "bob@school.edu"}, env.fake.enrolled())
}

func TestStudentsAdd_InvalidEmailFails(t *testing.T) {
	env := newCLIEnv(t, "")

	out, _, err := env.run("students", "add", "not-an-email", "ann@school.edu")
	require.ErrorIs(t, err, errSomeFailed)
	assert.Contains(t, out, "not-an-email: failed")
	assert.Contains(t, out, "ann@school.edu: added")
}

func TestStudentsAdd_Invite(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("--json", "students", "add", "--invite", "ann@school.edu")

	var got []enrollJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "invited", got[0].Result)
	assert.Empty(t, env.fake.enrolled())
}

func TestStudentsAdd_NoCourse(t *testing.T) {
	env := newCLIEnv(t, "")
	require.NoError(t, os.WriteFile(env.configPath, []byte(strings.Replace(
		readFile(t, env.configPath), `default_course = "Algebra I"`, "", 1)), 0o600))

	_, _, err := env.run("students", "add", "ann@school.edu")
	assert.ErrorIs(t, err, errNoCourse)
}

func TestStudentsImport_RecordsLedgerRun(t *testing.T) {
	env := newCLIEnv(t, "")
	env.fake.failEmails["denied@school.edu"] = true

	src := env.writeFile("roster.csv", "name,email\n"+
		"Ann,ann@school.edu\n"+
		"Nobody,\n"+
		"Denied,denied@school.edu\n"+
		"Ann again,ann@school.edu\n")

	out, _, err := env.run("--json", "students", "import", src)
	require.ErrorIs(t, err, errSomeFailed)

	var got importJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Stats.Added)
	assert.Equal(t, 1, got.Stats.AlreadyExists)
	assert.Equal(t, 2, got.Stats.Failed)
	require.NotEmpty(t, got.RunID)

	out = env.mustRun("--json", "students", "history", got.RunID)

	var detail runDetailJSON
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, "c1", detail.Run.CourseID)
	assert.Equal(t, src, detail.Run.Source)
	require.Len(t, detail.Outcomes, 4)
	assert.Equal(t, "added", detail.Outcomes[0].Result)
	assert.Equal(t, "failed", detail.Outcomes[1].Result)
	assert.Equal(t, "failed", detail.Outcomes[2].Result)
	assert.Equal(t, "already_enrolled", detail.Outcomes[3].Result)

	out = env.mustRun("--json", "students", "history")

	var runs []ledger.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, got.RunID, runs[0].ID)
}

func TestStudentsImport_LedgerDisabled(t *testing.T) {
	env := newCLIEnv(t, "enabled = false\n")

	src := env.writeFile("roster.json", `[{"email": "ann@school.edu"}]`)

	out := env.mustRun("--json", "students", "import", src)

	var got importJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Empty(t, got.RunID)
	assert.Equal(t, 1, got.Stats.Added)
	assert.NoFileExists(t, env.ledgerPath)

	_, _, err := env.run("students", "history")
	assert.ErrorContains(t, err, "disabled")
}

func TestStudentsImport_UnsupportedExtension(t *testing.T) {
	env := newCLIEnv(t, "")

	src := env.writeFile("roster.xlsx", "")

	_, _, err := env.run("students", "import", src)
	assert.ErrorContains(t, err, "unsupported file format")
}

func TestStudentsImport_Encoding(t *testing.T) {
	env := newCLIEnv(t, "")

	// "email\nann@school.edu\n" in UTF-16LE with a byte order mark.
	var data []byte
	data = append(data, 0xFF, 0xFE)

	for _, r := range "email\nann@school.edu\n" {
		data = append(data, byte(r), 0)
	}

	path := filepath.Join(env.dir, "utf16.csv")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	env.mustRun("students", "import", "--encoding", "utf-16le", path)
	assert.Equal(t, []string{"ann@school.edu"}, env.fake.enrolled())
}

func TestStudentsListAndExport(t *testing.T) {
	env := newCLIEnv(t, "")
	env.mustRun("students", "add", "ann@school.edu", "bob@school.edu")

	out := env.mustRun("students", "list")
	assert.Contains(t, out, "ann@school.edu")
	assert.Contains(t, out, "bob@school.edu")

	dst := filepath.Join(env.dir, "export.csv")
	_, stderr, err := env.run("students", "export", dst)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Exported 2 students")

	data := readFile(t, dst)
	assert.True(t, strings.HasPrefix(data, "user_id,email,full_name\n"))
	assert.Contains(t, data, "u1,ann@school.edu,ann\n")
}

func TestStudentsExport_EmptyRoster(t *testing.T) {
	env := newCLIEnv(t, "")

	dst := filepath.Join(env.dir, "export.json")
	_, stderr, err := env.run("students", "export", dst)
	require.NoError(t, err)
	assert.Contains(t, stderr, "No students to export")
	assert.NoFileExists(t, dst)
}

func TestTopicEnsure_Idempotent(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("--json", "topic", "ensure", "Week 1")

	var first topicJSON
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.True(t, first.Created)

	out = env.mustRun("--json", "topic", "ensure", "WEEK 1")

	var second topicJSON
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)
}

func TestAnnounce_WithLink(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("announce", "Quiz on Friday", "--link", "https://example.com/quiz")
	assert.Equal(t, "a1\n", out)

	post := env.fake.lastPost()
	require.NotNil(t, post)
	assert.Equal(t, "Quiz on Friday", post["text"])
	assert.Equal(t, "PUBLISHED", post["state"])
	assert.Equal(t, "ALL_STUDENTS", post["assigneeMode"])

	materials, ok := post["materials"].([]any)
	require.True(t, ok)
	require.Len(t, materials, 1)
}

func TestAnnounce_BlankTextRejected(t *testing.T) {
	env := newCLIEnv(t, "")

	_, _, err := env.run("announce", "  ")
	assert.Error(t, err)
	assert.Nil(t, env.fake.lastPost())
}

func TestMaterialCreate_WithTopicAndDraft(t *testing.T) {
	env := newCLIEnv(t, "")

	out := env.mustRun("--json", "material", "create",
		"--title", "Reading list", "--topic", "Week 2", "--draft")

	var got postJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "t1", got.TopicID)

	post := env.fake.lastPost()
	require.NotNil(t, post)
	assert.Equal(t, "DRAFT", post["state"])
	assert.Equal(t, "t1", post["topicId"])
	assert.Equal(t, []any{}, post["materials"])
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

// clockToken is a bearer token that expires when its clock passes expiry.
type clockToken struct {
	now    *time.Time
	expiry time.Time
}

func (c clockToken) Token() (string, error) {
	if !c.now.Before(c.expiry) {
		return "", auth.ErrCredentialExpired
	}

	return "test-access", nil
}

func TestImportJob_RerunAfterExpiryUsesFreshCredential(t *testing.T) {
	env := newCLIEnv(t, "")

	cfg, err := config.Resolve(config.EnvOverrides{}, config.CLIOverrides{ConfigPath: env.configPath})
	require.NoError(t, err)

	var out bytes.Buffer
	cc := &CLIContext{Cfg: cfg, Logger: discardLogger(), Out: &out, Err: &out}

	clock := time.Now()
	stale := classroom.NewClient(cfg.Classroom.BaseURL, nil,
		clockToken{now: &clock, expiry: clock.Add(time.Hour)}, cc.Logger, "")

	path := env.writeFile("roster.csv", "email\nann@school.edu\n")
	job := &importJob{
		cc:       cc,
		mgr:      roster.NewManager(stale, "c1", cfg.Classroom.PageSize, cc.Logger),
		courseID: "c1",
		path:     path,
		mode:     roster.Add,
	}

	stats, err := job.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)

	// Two hours on, the first credential is dead.
	clock = clock.Add(2 * time.Hour)

	require.NoError(t, os.WriteFile(path, []byte("email\nann@school.edu\nbob@school.edu\n"), 0o600))
	require.NoError(t, job.rerun(context.Background()))

	assert.Equal(t, []string{"ann@school.edu", "bob@school.edu"}, env.fake.enrolled())
	assert.Contains(t, out.String(), "Added 1, already present 1, failed 0.")
}
