package maintenance

import (
	"sync"
	"time"

	"github.com/cuemby/workclaim/pkg/log"
)

// token is the single-flight "maintenance token" (§4.7): only one
// maintenance job runs at a time on a host. A watchdog ticker force-releases
// it after a bounded hold time and raises an error span, since this piece —
// unlike the jobs' own cadences — has nothing to do with cron-style
// scheduling and is kept as a plain time.Ticker loop.
type token struct {
	mu        sync.Mutex
	held      bool
	holder    string
	heldSince time.Time
	maxHold   time.Duration

	stop chan struct{}
	wg   sync.WaitGroup

	onForceRelease func(holder string)
}

func newToken(maxHold time.Duration, onForceRelease func(holder string)) *token {
	t := &token{maxHold: maxHold, onForceRelease: onForceRelease}
	t.startWatchdog()
	return t
}

// tryAcquire attempts to take the token for job, returning false if already
// held by another job.
func (t *token) tryAcquire(job string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.held {
		return false
	}
	t.held = true
	t.holder = job
	t.heldSince = time.Now()
	return true
}

// release gives up the token, a no-op if not currently held by job.
func (t *token) release(job string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.held && t.holder == job {
		t.held = false
		t.holder = ""
	}
}

func (t *token) startWatchdog() {
	t.stop = make(chan struct{})
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.maxHold / 4)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.checkStale()
			}
		}
	}()
}

func (t *token) checkStale() {
	t.mu.Lock()
	stale := t.held && time.Since(t.heldSince) > t.maxHold
	holder := t.holder
	if stale {
		t.held = false
		t.holder = ""
	}
	t.mu.Unlock()

	if stale {
		log.WithComponent("maintenance").Error().
			Str("job", holder).
			Msg("maintenance token force-released by watchdog after exceeding bounded hold time")
		if t.onForceRelease != nil {
			t.onForceRelease(holder)
		}
	}
}

func (t *token) Stop() {
	close(t.stop)
	t.wg.Wait()
}
