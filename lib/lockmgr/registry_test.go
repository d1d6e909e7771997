package lockmgr

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/lockstore/dirstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signalChildEnv carries the lock root into the re-executed test binary that
// stands in for an externally terminated holder process.
const signalChildEnv = "DLOCK_TEST_SIGNAL_CHILD_ROOT"

func TestExitCleanupOnNormalReturn(t *testing.T) {
	mgr, _ := newTestManager(t)
	stop := RegisterExitCleanup(mgr)

	require.NoError(t, mgr.Acquire("a", time.Second))
	require.NoError(t, mgr.Acquire("b", time.Second))

	stop()

	for _, resource := range []string{"a", "b"} {
		locked, err := mgr.IsLocked(resource)
		require.NoError(t, err)
		assert.False(t, locked, "stop must drain lock %q", resource)
	}

	infos, err := mgr.ListLocks()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestExitCleanupStopIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t)
	stop := RegisterExitCleanup(mgr)

	require.NoError(t, mgr.Acquire("once", time.Second))

	stop()
	assert.NotPanics(t, stop, "calling stop twice must be a no-op")
}

func TestExitCleanupWithEmptyRegistry(t *testing.T) {
	mgr, _ := newTestManager(t)
	stop := RegisterExitCleanup(mgr)

	// Nothing acquired; draining an empty registry must be silent.
	assert.NotPanics(t, stop)
}

// TestExitCleanupSignalChild is the helper process for
// TestExitCleanupOnSignal. It only does anything when re-executed by that
// test with the root env set; in a normal test run it is skipped.
func TestExitCleanupSignalChild(t *testing.T) {
	root := os.Getenv(signalChildEnv)
	if root == "" {
		t.Skip("helper process for TestExitCleanupOnSignal")
	}

	store, err := dirstore.NewDirStore(root)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	mgr := NewLockManager(store, testConfig())

	// Register before acquiring so the handler is live the moment the parent
	// can observe any lock.
	RegisterExitCleanup(mgr)
	if err := mgr.Acquire("a", time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := mgr.Acquire("b", time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "ready"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// The parent terminates us via SIGTERM; the handler exits the process.
	// Returning normally here means the signal never arrived.
	time.Sleep(30 * time.Second)
	t.Fatal("expected to be terminated by the parent")
}

func TestExitCleanupOnSignal(t *testing.T) {
	root := t.TempDir()

	child := exec.Command(os.Args[0], "-test.run=^TestExitCleanupSignalChild$")
	child.Env = append(os.Environ(), signalChildEnv+"="+root)
	require.NoError(t, child.Start())

	// Wait until the child signals it holds both locks.
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(root, "ready")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			_ = child.Process.Kill()
			t.Fatal("child never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.NoError(t, child.Process.Signal(syscall.SIGTERM))
	err := child.Wait()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr, "child must exit non-zero after SIGTERM")
	assert.Equal(t, 128+int(syscall.SIGTERM), exitErr.ExitCode(),
		"signal handler must exit with the conventional 128+signal status")

	for _, resource := range []string{"a", "b"} {
		_, statErr := os.Stat(filepath.Join(root, resource+".lock"))
		assert.True(t, os.IsNotExist(statErr),
			"signal handler must drain lock %q", resource)
	}
}
