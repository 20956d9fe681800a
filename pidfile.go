package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// pidFilePermissions matches the standard config file permissions (owner rw, group/other r).
const pidFilePermissions = 0o644

// pidDirPermissions matches the standard directory permissions (owner rwx, group/other rx).
const pidDirPermissions = 0o755

// loginLockName is the lock file held for the duration of a login. The
// provider hint is a single persisted value, so two logins in flight would
// overwrite each other's hint.
const loginLockName = "login.pid"

// errLoginInProgress is returned when another process holds the login lock.
var errLoginInProgress = errors.New("another login is already in progress")

// acquireLoginLock writes the current process ID to path and acquires an
// exclusive flock. Returns a release function that removes the file and
// releases the lock.
func acquireLoginLock(path string) (release func(), err error) {
	if path == "" {
		return nil, fmt.Errorf("login lock path is empty, cannot determine data directory")
	}

	dir := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(dir, pidDirPermissions); mkdirErr != nil {
		return nil, fmt.Errorf("creating lock directory: %w", mkdirErr)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, pidFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening login lock: %w", err)
	}

	// Non-blocking exclusive lock: fails immediately if another process holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		holder := ""
		if pid, readErr := readLockHolder(path); readErr == nil {
			holder = fmt.Sprintf(" (PID %d)", pid)
		}

		return nil, fmt.Errorf("%w%s", errLoginInProgress, holder)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating login lock: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing login lock: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return nil, fmt.Errorf("syncing login lock: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readLockHolder reads the PID recorded in the lock file.
func readLockHolder(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading login lock: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}
