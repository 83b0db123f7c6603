package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names for overrides.
const (
	EnvConfig = "CLASSROOM_GO_CONFIG"
	EnvCourse = "CLASSROOM_GO_COURSE"
)

// Environment variables carrying meeting API credentials.
const (
	EnvZoomAPIKey    = "ZOOM_API_KEY"
	EnvZoomAPISecret = "ZOOM_API_SECRET"
	EnvZoomUserID    = "ZOOM_USER_ID"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // CLASSROOM_GO_CONFIG: override config file path
	Course     string // CLASSROOM_GO_COURSE: course id or name
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Course:     os.Getenv(EnvCourse),
	}
}

// ZoomSecrets are the meeting API credentials.
type ZoomSecrets struct {
	APIKey    string
	APISecret string
	UserID    string
}

// ReadZoomSecrets loads envFile into the environment (variables already set
// win) and then reads the meeting credentials. A missing envFile is not an
// error; an empty envFile means the environment only.
func ReadZoomSecrets(envFile string) (ZoomSecrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ZoomSecrets{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	return ZoomSecrets{
		APIKey:    os.Getenv(EnvZoomAPIKey),
		APISecret: os.Getenv(EnvZoomAPISecret),
		UserID:    os.Getenv(EnvZoomUserID),
	}, nil
}
