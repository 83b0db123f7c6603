// Package testutil provides shared environment helpers for the live E2E
// tests, which run the built binary and cannot import internal/.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvAllowedCourses lists the course ids live tests may write to.
const EnvAllowedCourses = "CLASSROOM_GO_ALLOWED_TEST_COURSES"

// LoadDotEnv loads KEY=VALUE pairs from envPath. A missing file is not an
// error (CI sets variables directly) and variables already set win.
func LoadDotEnv(envPath string) {
	if _, err := os.Stat(envPath); err != nil {
		return
	}

	if err := godotenv.Load(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parsing %s: %v\n", envPath, err)
		os.Exit(1)
	}
}

// ValidateAllowlist exits the process unless the course named by
// courseEnvVar is listed in CLASSROOM_GO_ALLOWED_TEST_COURSES. Live tests
// create topics and posts, so they must never touch a real class.
func ValidateAllowlist(courseEnvVar string) string {
	allowlist := os.Getenv(EnvAllowedCourses)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvAllowedCourses)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=123456789012\n", EnvAllowedCourses)
		os.Exit(1)
	}

	course := os.Getenv(courseEnvVar)
	if course == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", courseEnvVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == course {
			return course
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n",
		courseEnvVar, course, EnvAllowedCourses, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// FindTestCredentialDir locates .testdata/ under the module root. It
// holds token.json and client_secret.json for the test account.
func FindTestCredentialDir(moduleRoot string) string {
	dir := filepath.Join(moduleRoot, ".testdata")

	if _, err := os.Stat(dir); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL: .testdata/ directory not found at "+dir)
		fmt.Fprintln(os.Stderr, "Run 'classroom-go login' with [auth] token_path pointing there.")
		os.Exit(1)
	}

	return dir
}

// CopyFile copies src to dst with the given permissions, exiting the
// process on failure because tests cannot proceed without the file.
func CopyFile(src, dst string, perm os.FileMode) {
	data, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot read %s: %v\n", src, err)
		os.Exit(1)
	}

	if err := os.WriteFile(dst, data, perm); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing %s: %v\n", dst, err)
		os.Exit(1)
	}
}
