package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/classroom-go/internal/auth"
	"github.com/tonimelisma/classroom-go/internal/tokenfile"
)

// fakeClassroom is an in-memory Classroom API with one course. Creating a
// student or invitation twice answers 409 like the real service.
type fakeClassroom struct {
	mu sync.Mutex

	course      map[string]string
	students    []string
	invitations map[string]bool
	topics      map[string]string
	posts       []map[string]any
	failEmails  map[string]bool
}

func newFakeClassroom() *fakeClassroom {
	return &fakeClassroom{
		course: map[string]string{
			"id":      "c1",
			"name":    "Algebra I",
			"section": "Period 2",
		},
		invitations: map[string]bool{},
		topics:      map[string]string{},
		failEmails:  map[string]bool{},
	}
}

func (f *fakeClassroom) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /courses", func(w http.ResponseWriter, _ *http.Request) {
		writeFakeJSON(w, http.StatusOK, map[string]any{"courses": []any{f.course}})
	})

	mux.HandleFunc("POST /courses", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["id"] = "c2"
		body["courseState"] = "PROVISIONED"
		writeFakeJSON(w, http.StatusOK, body)
	})

	mux.HandleFunc("GET /userProfiles/me", func(w http.ResponseWriter, _ *http.Request) {
		writeFakeJSON(w, http.StatusOK, map[string]any{
			"id":           "u0",
			"emailAddress": "teacher@school.edu",
			"name":         map[string]string{"fullName": "Ada Teacher"},
		})
	})

	mux.HandleFunc("GET /courses/c1/students", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		list := make([]any, 0, len(f.students))
		for i, email := range f.students {
			list = append(list, map[string]any{
				"courseId": "c1",
				"userId":   fmt.Sprintf("u%d", i+1),
				"profile": map[string]any{
					"emailAddress": email,
					"name":         map[string]string{"fullName": strings.Split(email, "@")[0]},
				},
			})
		}

		writeFakeJSON(w, http.StatusOK, map[string]any{"students": list})
	})

	mux.HandleFunc("POST /courses/c1/students", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID string `json:"userId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()

		if f.failEmails[body.UserID] {
			writeFakeJSON(w, http.StatusForbidden, fakeError(http.StatusForbidden, "PERMISSION_DENIED"))
			return
		}

		for _, s := range f.students {
			if s == body.UserID {
				writeFakeJSON(w, http.StatusConflict, fakeError(http.StatusConflict, "ALREADY_EXISTS"))
				return
			}
		}

		f.students = append(f.students, body.UserID)
		writeFakeJSON(w, http.StatusOK, map[string]any{
			"courseId": "c1",
			"userId":   fmt.Sprintf("u%d", len(f.students)),
			"profile":  map[string]any{"emailAddress": body.UserID},
		})
	})

	mux.HandleFunc("POST /invitations", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()

		if f.invitations[body["userId"]] {
			writeFakeJSON(w, http.StatusConflict, fakeError(http.StatusConflict, "ALREADY_EXISTS"))
			return
		}

		f.invitations[body["userId"]] = true
		writeFakeJSON(w, http.StatusOK, map[string]string{"id": "inv-" + body["userId"]})
	})

	mux.HandleFunc("GET /courses/c1/topics", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		list := make([]any, 0, len(f.topics))
		for name, id := range f.topics {
			list = append(list, map[string]string{"topicId": id, "courseId": "c1", "name": name})
		}

		writeFakeJSON(w, http.StatusOK, map[string]any{"topic": list})
	})

	mux.HandleFunc("POST /courses/c1/topics", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()

		id := fmt.Sprintf("t%d", len(f.topics)+1)
		f.topics[body["name"]] = id
		writeFakeJSON(w, http.StatusOK, map[string]string{"topicId": id, "courseId": "c1", "name": body["name"]})
	})

	mux.HandleFunc("POST /courses/c1/announcements", f.recordPost("a"))
	mux.HandleFunc("POST /courses/c1/courseWorkMaterials", f.recordPost("m"))

	return mux
}

func (f *fakeClassroom) recordPost(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()

		f.posts = append(f.posts, body)
		body["id"] = fmt.Sprintf("%s%d", prefix, len(f.posts))
		body["courseId"] = "c1"
		writeFakeJSON(w, http.StatusOK, body)
	}
}

func (f *fakeClassroom) enrolled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.students...)
}

func (f *fakeClassroom) lastPost() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.posts) == 0 {
		return nil
	}

	return f.posts[len(f.posts)-1]
}

func fakeError(code int, status string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": status, "status": status}}
}

func writeFakeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// cliEnv is an isolated CLI environment: a saved token that needs no
// refresh, a config file pointing at the fake API, and private XDG dirs.
type cliEnv struct {
	t          *testing.T
	fake       *fakeClassroom
	dir        string
	configPath string
	ledgerPath string
}

func newCLIEnv(t *testing.T, extraConfig string) *cliEnv {
	t.Helper()

	fake := newFakeClassroom()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("CLASSROOM_GO_CONFIG", "")
	t.Setenv("CLASSROOM_GO_COURSE", "")

	tokenPath := filepath.Join(dir, "token.json")
	require.NoError(t, tokenfile.Save(tokenPath, &tokenfile.File{
		Token: &oauth2.Token{
			AccessToken: "test-access",
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		},
		Scopes:  auth.DefaultScopes,
		Account: "teacher@school.edu",
	}))

	ledgerPath := filepath.Join(dir, "history.db")
	configPath := filepath.Join(dir, "config.toml")

	cfg := fmt.Sprintf(`[auth]
token_path = %q
secret_path = %q

[classroom]
base_url = %q
default_course = "Algebra I"

[ledger]
path = %q
`, tokenPath, filepath.Join(dir, "missing_secret.json"), srv.URL, ledgerPath) + extraConfig

	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	orig := openBrowser
	openBrowser = func(string) error {
		t.Error("browser flow started in a test")
		return fmt.Errorf("no browser in tests")
	}

	t.Cleanup(func() { openBrowser = orig })

	return &cliEnv{t: t, fake: fake, dir: dir, configPath: configPath, ledgerPath: ledgerPath}
}

// run executes the CLI with args and returns stdout, stderr and the error.
func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

// mustRun is run that fails the test on error.
func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()

	stdout, stderr, err := e.run(args...)
	require.NoError(e.t, err, "stderr: %s", stderr)

	return stdout
}

func (e *cliEnv) writeFile(name, content string) string {
	e.t.Helper()

	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o600))

	return path
}
