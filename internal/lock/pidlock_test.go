//go:build unix

package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePIDLockWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "run", "buildmaster.lock")
	l, err := AcquirePIDLock(lockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	b, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(b)))
	assert.Equal(t, lockPath, l.Path())
}

func TestAcquirePIDLockIsExclusive(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "buildmaster.lock")
	first, err := AcquirePIDLock(lockPath)
	require.NoError(t, err)

	// flock locks belong to the open file description, so a second open in
	// the same process conflicts.
	_, err = AcquirePIDLock(lockPath)
	require.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getpid()))

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	again, err := AcquirePIDLock(lockPath)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquirePIDLockEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := AcquirePIDLock("")
	assert.Error(t, err)
}
