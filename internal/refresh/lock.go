package refresh

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"cogsensor/internal/cogerr"
)

// Lock is the advisory, PID-carrying refresh lock (spec §5/§9): exactly one
// refresh may hold it at a time. A lock file left behind by a process that
// is no longer running is taken over rather than treated as held.
type Lock struct {
	path string
}

// AcquireLock takes the refresh lock at path, writing this process's PID.
// If a lock file already exists, it is taken over when the PID it names is
// no longer running; otherwise this returns a RefreshInProgress error.
func AcquireLock(path string) (*Lock, error) {
	if err := tryTakeoverStaleLock(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, cogerr.Wrap(cogerr.KindRefreshInProgress, "AcquireLock",
				"refresh lock %s is held by a running process", path)
		}
		return nil, cogerr.New(cogerr.KindCorpusError, "AcquireLock", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		os.Remove(path)
		return nil, cogerr.New(cogerr.KindCorpusError, "AcquireLock", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call once; callers typically defer
// it immediately after a successful AcquireLock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return cogerr.New(cogerr.KindCorpusError, "Lock.Release", err)
	}
	return nil
}

// tryTakeoverStaleLock removes path if it names a PID that is no longer
// running. A malformed or unreadable lock file is left alone — AcquireLock
// will then fail on O_EXCL the same as a live lock, which is the safe
// default when the file's provenance is unclear.
func tryTakeoverStaleLock(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nil
	}

	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil {
		return nil
	}
	if processAlive(pid) {
		return nil
	}
	os.Remove(path)
	return nil
}

// processAlive reports whether pid names a running process, using the
// signal-0 probe convention (sending signal 0 performs existence/permission
// checks without delivering anything).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
