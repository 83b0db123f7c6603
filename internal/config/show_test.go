package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEffective_Defaults(t *testing.T) {
	r := &Resolved{Config: *DefaultConfig(), Path: "/home/user/.config/classroom-go/config.toml"}

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(r, &buf))

	output := buf.String()
	assert.Contains(t, output, `"/home/user/.config/classroom-go/config.toml"`)
	assert.NotContains(t, output, "# course")

	for _, section := range []string{"[auth]", "[classroom]", "[network]", "[logging]", "[import]", "[ledger]", "[zoom]"} {
		assert.Contains(t, output, section)
	}

	assert.Contains(t, output, "page_size = 100")
	assert.NotContains(t, output, "default_course")
	assert.NotContains(t, output, "user_agent")
	assert.NotContains(t, output, "log_file")
	assert.NotContains(t, output, "env_file")
}

func TestRenderEffective_OptionalFieldsShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classroom.DefaultCourse = "Algebra"
	cfg.Network.UserAgent = "school-tools/1.0"
	cfg.Logging.LogFile = "/tmp/classroom.log"
	cfg.Zoom.EnvFile = "/etc/zoom.env"

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(&Resolved{Config: *cfg, Course: "Algebra"}, &buf))

	output := buf.String()
	assert.Contains(t, output, `# course = "Algebra"`)
	assert.Contains(t, output, `default_course = "Algebra"`)
	assert.Contains(t, output, `user_agent = "school-tools/1.0"`)
	assert.Contains(t, output, "log_file")
	assert.Contains(t, output, "env_file")
}

type failWriter struct{ n int }

func (f *failWriter) Write(p []byte) (int, error) {
	f.n++
	return 0, errors.New("disk full")
}

func TestRenderEffective_StopsOnFirstWriteError(t *testing.T) {
	w := &failWriter{}
	err := RenderEffective(&Resolved{Config: *DefaultConfig()}, w)
	require.Error(t, err)
	assert.Equal(t, 1, w.n)
}
