package filelock

import (
	"encoding/json"
	"os"
	"syscall"
	"time"

	"github.com/cuemby/workclaim/pkg/log"
)

// holder is the payload written into the rendezvous file, identifying whose
// lock it is for staleness probing.
type holder struct {
	PID        int    `json:"pid"`
	Hostname   string `json:"hostname"`
	AcquiredAt string `json:"acquired_at"`
}

// safeLocker implements the fallback path: a rendezvous file created with
// O_CREAT|O_EXCL. The file's existence IS the lock; staleness is detected by
// probing the recorded PID with signal 0.
type safeLocker struct {
	path string
}

func newSafeLocker(path string) Locker {
	return &safeLocker{path: path + ".lock"}
}

func (l *safeLocker) Mode() Mode { return ModeSafe }

func (l *safeLocker) Lock(deadline time.Duration) (func() error, error) {
	deadlineAt := time.Now().Add(deadline)
	backoff := 5 * time.Millisecond

	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			hostname, _ := os.Hostname()
			enc := json.NewEncoder(f)
			_ = enc.Encode(holder{PID: os.Getpid(), Hostname: hostname, AcquiredAt: time.Now().UTC().Format(time.RFC3339Nano)})
			f.Close()

			unlocked := false
			return func() error {
				if unlocked {
					return nil
				}
				unlocked = true
				return os.Remove(l.path)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, err
		}

		if l.removeIfStale() {
			continue
		}

		if time.Now().After(deadlineAt) {
			return nil, ErrBusy
		}
		time.Sleep(backoff)
		if backoff < 100*time.Millisecond {
			backoff *= 2
		}
	}
}

// removeIfStale reads the recorded holder and, if its PID no longer exists
// on this host, removes the rendezvous file and reports true. Rendezvous
// files from a different host can never be proven stale this way and are
// left alone — that is the single-host-of-truth limitation of this mode.
func (l *safeLocker) removeIfStale() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	var h holder
	if err := json.Unmarshal(data, &h); err != nil {
		return false
	}
	hostname, _ := os.Hostname()
	if h.Hostname != hostname {
		return false
	}
	if processAlive(h.PID) {
		return false
	}
	log.WithComponent("filelock").Warn().
		Int("stale_pid", h.PID).
		Str("path", l.path).
		Msg("removing stale rendezvous lock file")
	return os.Remove(l.path) == nil
}

// processAlive reports whether pid refers to a running process, probed via
// signal 0 (no-op signal that still validates existence/permission).
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
