package runlock

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pidPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "chanharvest.pid")
}

func TestAcquireRelease(t *testing.T) {
	path := pidPath(t)
	g := New(path, nil)

	require.NoError(t, g.Acquire())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(raw))

	g.Release()
	assert.NoFileExists(t, path)
}

func TestAcquireWhileHeld(t *testing.T) {
	path := pidPath(t)
	g := New(path, nil)
	require.NoError(t, g.Acquire())
	defer g.Release()

	// the holder is this very process, which is certainly alive
	err := New(path, nil).Acquire()
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquireStalePID(t *testing.T) {
	path := pidPath(t)
	// pids roll over well below this on linux
	require.NoError(t, os.WriteFile(path, []byte("4194999\n"), 0o644))

	g := New(path, nil)
	require.NoError(t, g.Acquire())
	defer g.Release()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(raw))
}

func TestAcquireGarbagePIDFile(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid\n"), 0o644))

	g := New(path, nil)
	require.NoError(t, g.Acquire())
	defer g.Release()
}

func TestReleaseLeavesForeignPIDFile(t *testing.T) {
	path := pidPath(t)
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))

	New(path, nil).Release()
	assert.FileExists(t, path)
}
