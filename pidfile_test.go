package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLoginLock_WritesCurrentPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), loginLockName)

	release, err := acquireLoginLock(path)
	require.NoError(t, err)
	require.NotNil(t, release)

	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireLoginLock_SecondAcquisitionFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), loginLockName)

	release, err := acquireLoginLock(path)
	require.NoError(t, err)

	defer release()

	again, err := acquireLoginLock(path)
	require.ErrorIs(t, err, errLoginInProgress)
	assert.Nil(t, again)
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getpid()))
}

func TestAcquireLoginLock_ReleaseRemovesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), loginLockName)

	release, err := acquireLoginLock(path)
	require.NoError(t, err)

	release()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Free again once released.
	release, err = acquireLoginLock(path)
	require.NoError(t, err)
	release()
}

func TestAcquireLoginLock_EmptyPath(t *testing.T) {
	t.Parallel()

	release, err := acquireLoginLock("")
	assert.Error(t, err)
	assert.Nil(t, release)
	assert.Contains(t, err.Error(), "empty")
}

func TestAcquireLoginLock_CreatesParentDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", loginLockName)

	release, err := acquireLoginLock(path)
	require.NoError(t, err)

	defer release()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestReadLockHolder_InvalidContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), loginLockName)
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o644))

	_, err := readLockHolder(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID")
}
