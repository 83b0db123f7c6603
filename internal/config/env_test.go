package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvCourse, "Algebra")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "Algebra", overrides.Course)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvCourse, "")

	overrides := ReadEnvOverrides()
	assert.Empty(t, overrides.ConfigPath)
	assert.Empty(t, overrides.Course)
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "CLASSROOM_GO_CONFIG", EnvConfig)
	assert.Equal(t, "CLASSROOM_GO_COURSE", EnvCourse)
}

// clearZoomEnv makes sure the test starts without Zoom variables and that
// anything godotenv sets is removed afterwards.
func clearZoomEnv(t *testing.T) {
	t.Helper()

	for _, k := range []string{EnvZoomAPIKey, EnvZoomAPISecret, EnvZoomUserID} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestReadZoomSecrets_FromEnvFile(t *testing.T) {
	clearZoomEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ZOOM_API_KEY=key\nZOOM_API_SECRET=secret\n"), 0o600))

	s, err := ReadZoomSecrets(path)
	require.NoError(t, err)
	assert.Equal(t, "key", s.APIKey)
	assert.Equal(t, "secret", s.APISecret)
	assert.Empty(t, s.UserID)
}

func TestReadZoomSecrets_EnvironmentWins(t *testing.T) {
	clearZoomEnv(t)
	t.Setenv(EnvZoomAPIKey, "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ZOOM_API_KEY=from-file\n"), 0o600))

	s, err := ReadZoomSecrets(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.APIKey)
}

func TestReadZoomSecrets_MissingFileIsFine(t *testing.T) {
	clearZoomEnv(t)
	t.Setenv(EnvZoomUserID, "host@school.org")

	s, err := ReadZoomSecrets(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "host@school.org", s.UserID)
	assert.Empty(t, s.APIKey)
}
