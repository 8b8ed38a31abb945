//go:build linux || darwin

package filelock

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// fastPathSupported is true on platforms where unix.Flock is available.
const fastPathSupported = true

// fastLocker implements the fast path: an OS-level advisory exclusive lock
// (flock(2)) on a dedicated lock file, polled non-blocking so the deadline
// is honored.
type fastLocker struct {
	path string
}

func newFastLocker(path string) Locker {
	return &fastLocker{path: path}
}

func (l *fastLocker) Mode() Mode { return ModeFast }

func (l *fastLocker) Lock(deadline time.Duration) (func() error, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	deadlineAt := time.Now().Add(deadline)
	backoff := time.Millisecond
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if time.Now().After(deadlineAt) {
			f.Close()
			return nil, ErrBusy
		}
		time.Sleep(backoff)
		if backoff < 50*time.Millisecond {
			backoff *= 2
		}
	}

	unlocked := false
	return func() error {
		if unlocked {
			return nil
		}
		unlocked = true
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return f.Close()
	}, nil
}
