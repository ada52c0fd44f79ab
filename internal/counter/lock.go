package counter

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/demobank/transaction-notifier/internal/domain"
)

// Lock is a run lock serializing detector cycles within one host. The
// scheduler is expected to serialize runs already; the lock turns a
// misconfigured overlap into a fast failure instead of a counter race.
type Lock struct {
	path string
}

func NewLock(path string) *Lock {
	return &Lock{path: path}
}

// Acquire creates the lock file exclusively. A second concurrent cycle
// gets domain.ErrCycleInProgress. A lock file whose recorded holder is
// no longer running (crash, OOM kill) is reclaimed, so a dead cycle
// never wedges the schedule.
func (l *Lock) Acquire() error {
	err := l.create()
	if !errors.Is(err, domain.ErrCycleInProgress) {
		return err
	}

	if !l.stale() {
		return err
	}

	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("%w: reclaiming stale lock file: %v", domain.ErrCounterIO, rmErr)
	}

	return l.create()
}

func (l *Lock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		return fmt.Errorf("%w: lock file %s exists", domain.ErrCycleInProgress, l.path)
	}
	if err != nil {
		return fmt.Errorf("%w: creating lock file: %v", domain.ErrCounterIO, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("%w: writing lock file: %v", domain.ErrCounterIO, err)
	}

	return nil
}

// stale reports whether the lock file's recorded pid is dead. An
// unreadable or garbled pid also counts as stale: whoever wrote it
// never finished writing, so nothing is running under it.
func (l *Lock) stale() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		// Holder released between our create attempt and the read.
		return os.IsNotExist(err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}

	sigErr := proc.Signal(syscall.Signal(0))
	if sigErr == nil {
		return false
	}
	// EPERM means the pid is alive but owned by someone else.
	return !errors.Is(sigErr, syscall.EPERM)
}

func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("%w: removing lock file: %v", domain.ErrCounterIO, err)
	}
	return nil
}
