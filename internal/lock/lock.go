// Package lock keeps a single monitoring instance per host.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning means another process holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// HeldError reports lock contention together with the holder's PID, which is
// zero when the lock file could not be read.
type HeldError struct {
	Path string
	PID  int
}

func (e *HeldError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("%s (pid %d holds %s)", ErrAlreadyRunning, e.PID, e.Path)
	}
	return fmt.Sprintf("%s (%s is locked)", ErrAlreadyRunning, e.Path)
}

func (e *HeldError) Unwrap() error { return ErrAlreadyRunning }

// Handle owns an acquired lock file.
type Handle struct {
	path string
	file *os.File
	once sync.Once
	err  error
}

// Path returns the lock file in use, which may be the per-user fallback.
func (h *Handle) Path() string { return h.path }

// maxAttempts bounds the retries when the lock file is replaced between
// open and flock by a releasing holder.
const maxAttempts = 5

// errStale means the flocked file is no longer the one at the lock path.
var errStale = errors.New("lock file replaced")

// Acquire takes an exclusive, non-blocking lock on path. When the directory
// of path is not writable the per-user fallback location is used instead.
func Acquire(path string) (*Handle, error) {
	path = Location(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open lock %s: %w", path, err)
		}
		err = lockFile(f, path)
		if errors.Is(err, errStale) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := writePID(f); err != nil {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			_ = f.Close()
			return nil, fmt.Errorf("record pid in %s: %w", path, err)
		}
		return &Handle{path: path, file: f}, nil
	}
	return nil, fmt.Errorf("lock %s: %w after %d attempts", path, errStale, maxAttempts)
}

// lockFile flocks f and checks that f is still the file at path. A holder
// removes the file on release, so a lock taken on a descriptor opened before
// that removal guards nothing; it is dropped and errStale returned. On any
// error f is closed.
func lockFile(f *os.File, path string) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return &HeldError{Path: path, PID: readPID(path)}
		}
		return fmt.Errorf("lock %s: %w", path, err)
	}

	held, err := f.Stat()
	if err != nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		return fmt.Errorf("stat lock %s: %w", path, err)
	}
	current, err := os.Stat(path)
	if err != nil || !os.SameFile(held, current) {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		return errStale
	}
	return nil
}

// Release unlocks and removes the lock file. Only the first call has an
// effect; later calls return the first result.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		// Removed while still locked; contenders re-check the inode in lockFile.
		errRemove := os.Remove(h.path)
		if errors.Is(errRemove, os.ErrNotExist) {
			errRemove = nil
		}
		errUnlock := unix.Flock(int(h.file.Fd()), unix.LOCK_UN)
		errClose := h.file.Close()
		h.err = errors.Join(errRemove, errUnlock, errClose)
	})
	return h.err
}

// Location returns path when its directory is writable and the per-user
// fallback otherwise.
func Location(path string) string {
	if path != "" && unix.Access(filepath.Dir(path), unix.W_OK) == nil {
		return path
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" || unix.Access(dir, unix.W_OK) != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("wifi-watchdog-%d.lock", os.Getuid()))
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return err
	}
	return f.Sync()
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}
