// Package claimengine implements the coordinator's nine mutating
// operations (register_agent, heartbeat, create_work, claim, progress,
// block/unblock, complete, fail/cancel) plus their invariants. Every
// operation is expressed as a small command applied under
// statestore.WithExclusiveLock — the same "apply one op, atomically,
// under the only available consensus primitive" shape the teacher uses for
// its Raft FSM, here substituting the shared-filesystem advisory lock for a
// replicated log.
package claimengine

import (
	"context"
	"math/rand"
	"time"

	"github.com/cuemby/workclaim/pkg/metrics"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/tracing"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// Config tunes the engine's retry and capacity behavior.
type Config struct {
	// RetryBudget bounds how many times a BUSY lock timeout is retried
	// internally before it is surfaced to the caller (§7 propagation
	// policy).
	RetryBudget int
	// RetryBaseDelay seeds the jittered exponential backoff between BUSY
	// retries.
	RetryBaseDelay time.Duration
	// HeartbeatTimeout is how stale last_heartbeat_at may get before an
	// agent is considered for the stale-heartbeat sweep. Not read by the
	// engine itself: StaleHeartbeatSweep takes its timeout as an argument,
	// which pkg/maintenance supplies from its own Config.
	HeartbeatTimeout time.Duration
}

// DefaultConfig returns the engine's default retry/capacity tuning.
func DefaultConfig() Config {
	return Config{
		RetryBudget:      5,
		RetryBaseDelay:   20 * time.Millisecond,
		HeartbeatTimeout: 90 * time.Second,
	}
}

// Engine is the claim engine: it applies every work-item and agent lifecycle
// operation on active-claims and agent-registry. The one other writer of
// those documents is registry.Deregister.
type Engine struct {
	store  *statestore.Store
	tracer *tracing.Tracer
	cfg    Config
}

// New constructs an Engine backed by store, emitting spans via tracer.
func New(store *statestore.Store, tracer *tracing.Tracer, cfg Config) *Engine {
	return &Engine{store: store, tracer: tracer, cfg: cfg}
}

// withLock runs fn under statestore.WithExclusiveLock, retrying a BUSY lock
// timeout internally up to the engine's configured retry budget with
// jittered backoff before surfacing BUSY to the caller.
func (e *Engine) withLock(scope statestore.Scope, fn func(*statestore.Snapshot) error) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ClaimLatency)

	delay := e.cfg.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt <= e.cfg.RetryBudget; attempt++ {
		err := e.store.WithExclusiveLock(scope, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if workerr.KindOf(err) != workerr.Busy {
			return err
		}
		metrics.LockBusyTotal.Inc()
		if attempt == e.cfg.RetryBudget {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(delay)))
		time.Sleep(delay + jitter)
		if delay < time.Second {
			delay *= 2
		}
	}
	return lastErr
}

// span starts a span for operationName, returning the handle and a done
// func that ends it with the given error (nil => ok).
func (e *Engine) span(ctx context.Context, operationName string, attrs map[string]string) (tracing.SpanHandle, func(err error, extra map[string]string)) {
	h := e.tracer.StartSpan(ctx, operationName, attrs)
	return h, func(err error, extra map[string]string) {
		status := statusFor(err)
		if extra == nil {
			extra = map[string]string{}
		}
		if err != nil {
			extra["error_kind"] = string(workerr.KindOf(err))
			extra["error_message"] = err.Error()
		}
		e.tracer.EndSpan(h, status, extra)
	}
}
