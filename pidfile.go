package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tonimelisma/classroom-go/internal/config"
)

// lockFilePermissions matches the standard config file permissions (owner rw, group/other r).
const lockFilePermissions = 0o644

// lockDirPermissions matches the standard directory permissions (owner rwx, group/other rx).
const lockDirPermissions = 0o755

// watchLockPath returns the lock file guarding watch mode for one course.
// Two watchers on the same course would enroll the same file twice.
func watchLockPath(courseID string) string {
	return filepath.Join(config.DefaultDataDir(), "watch-"+courseID+".pid")
}

// acquireWatchLock writes the current process ID to path and takes an
// exclusive flock on it. The returned cleanup removes the file and
// releases the lock. If the lock is held, another watcher is running.
func acquireWatchLock(path string) (cleanup func(), err error) {
	if path == "" {
		return nil, fmt.Errorf("lock file path is empty: cannot determine data directory")
	}

	if err := os.MkdirAll(filepath.Dir(path), lockDirPermissions); err != nil {
		return nil, fmt.Errorf("creating lock file directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// Non-blocking: fail at once if another process holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		pid, _ := readLockPID(path)
		if pid > 0 {
			return nil, fmt.Errorf("another students import --watch is already running for this course (PID %d)", pid)
		}

		return nil, fmt.Errorf("another students import --watch is already running for this course (could not lock %s)", path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return nil, fmt.Errorf("syncing lock file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readLockPID reads the PID recorded in a lock file.
func readLockPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}
