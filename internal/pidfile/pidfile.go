// Package pidfile keeps a single collector per pid file. The pid is written
// to the file itself while an exclusive lock is held on a companion
// "<path>.lock" file for the lifetime of the process.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

var (
	// ErrLocked means another process holds the pid file.
	ErrLocked = errors.New("pid file is locked by another process")
	// ErrNotRunning means the pid file names no live process.
	ErrNotRunning = errors.New("collector is not running")
)

type PidFile struct {
	path string
	lock *flock.Flock
}

// Acquire locks path and writes the current pid into it.
func Acquire(path string) (*PidFile, error) {
	lock := flock.New(path + ".lock")

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	pid := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(path, []byte(pid), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	return &PidFile{path: path, lock: lock}, nil
}

func (p *PidFile) Path() string {
	return p.path
}

// Release removes the pid file and drops the lock.
func (p *PidFile) Release() error {
	removeErr := os.Remove(p.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}

	// The lock file stays so that every process locks the same inode.
	if err := p.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", p.lock.Path(), err)
	}

	return removeErr
}

// Read returns the pid stored in path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", path, ErrNotRunning)
		}
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %s: malformed content %q", path, strings.TrimSpace(string(data)))
	}

	return pid, nil
}

// Signal delivers sig to the process named by path.
func Signal(path string, sig syscall.Signal) (int, error) {
	pid, err := Read(path)
	if err != nil {
		return 0, err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("find process %d: %w", pid, err)
	}

	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return pid, fmt.Errorf("pid %d: %w", pid, ErrNotRunning)
		}
		return pid, fmt.Errorf("signal pid %d: %w", pid, err)
	}

	return pid, nil
}
