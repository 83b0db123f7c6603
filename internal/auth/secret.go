package auth

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const scopePrefix = "https://www.googleapis.com/auth/"

// DefaultScopes is everything the CLI needs: roster and profile access,
// course management, posts, and calendar for meeting links.
var DefaultScopes = []string{
	scopePrefix + "classroom.rosters",
	scopePrefix + "classroom.profile.emails",
	scopePrefix + "classroom.profile.photos",
	scopePrefix + "classroom.courses",
	scopePrefix + "classroom.coursework.students",
	scopePrefix + "classroom.courseworkmaterials",
	scopePrefix + "classroom.topics",
	scopePrefix + "classroom.announcements",
	scopePrefix + "calendar",
}

// loadSecret builds an oauth2.Config from a Google client-secret file
// ("installed" or "web" application). Any failure wraps ErrAuthConfig.
func loadSecret(path string, scopes []string) (*oauth2.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no client secret file configured", ErrAuthConfig)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrAuthConfig, path, err)
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrAuthConfig, path, err)
	}

	return cfg, nil
}
