package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned when another daemon holds the work directory lock
var ErrAlreadyRunning = errors.New("daemon already running")

const (
	// socketMode lets any local user send commands
	socketMode = 0o666

	// workDirMode lets other users reach the socket without listing the directory
	workDirMode = 0o711
)

// PrepareWorkDir creates dir (0711), makes sure other users can traverse it,
// checks that it is writable and makes it the process working directory.
func PrepareWorkDir(dir string) error {
	if err := os.MkdirAll(dir, workDirMode); err != nil {
		return fmt.Errorf("failed to create work directory %s: %w", dir, err)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat work directory %s: %w", dir, err)
	}
	// The umask may have stripped the search bits
	if perm := stat.Mode().Perm(); perm&0o011 != 0o011 {
		if err := os.Chmod(dir, perm|0o011); err != nil {
			return fmt.Errorf("failed to set work directory permissions: %w", err)
		}
	}

	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("work directory %s is not writable: %w", dir, err)
	}

	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("failed to enter work directory %s: %w", dir, err)
	}

	return nil
}

// AcquireLock takes the single-instance lock at path without blocking
func AcquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held on %s)", ErrAlreadyRunning, path)
	}
	return lock, nil
}

// ReleaseLock unlocks the lock file and leaves it in place, so every daemon
// contends for the same inode.
func ReleaseLock(lock *flock.Flock) error {
	if lock == nil {
		return nil
	}
	if err := lock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", lock.Path(), err)
	}
	return nil
}

// Listen binds the control socket. A leftover socket file from a previous run is
// removed first; callers must hold the instance lock.
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}

	if err := os.Chmod(path, socketMode); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return ln, nil
}
