package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName names the per-user directories.
const appName = "classroom-go"

const configFileName = "config.toml"

// baseDir is an XDG base directory: the variable that overrides it and
// its location under the home directory when the variable is unset.
type baseDir struct {
	env      string
	fallback []string
}

var (
	configBase = baseDir{env: "XDG_CONFIG_HOME", fallback: []string{".config"}}
	dataBase   = baseDir{env: "XDG_DATA_HOME", fallback: []string{".local", "share"}}
)

// appDir places the application directory for goos. macOS keeps config
// and data together under Application Support; everywhere else follows
// the XDG base directory layout. An empty home yields "".
func appDir(goos, home string, base baseDir) string {
	if home == "" {
		return ""
	}

	if goos == "darwin" {
		return filepath.Join(home, "Library", "Application Support", appName)
	}

	if xdg := os.Getenv(base.env); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(append(append([]string{home}, base.fallback...), appName)...)
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return home
}

// DefaultConfigDir holds config.toml and the OAuth client secret.
func DefaultConfigDir() string {
	return appDir(runtime.GOOS, userHome(), configBase)
}

// DefaultDataDir holds the saved token, the import history and watch locks.
func DefaultDataDir() string {
	return appDir(runtime.GOOS, userHome(), dataBase)
}

// DefaultConfigPath is the config file read when neither
// CLASSROOM_GO_CONFIG nor --config is given.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}
