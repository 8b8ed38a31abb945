// Package maintenance implements the coordinator's periodic jobs:
// health_check, archive_completed, rotate_span_log, reality_verify,
// stale_heartbeat_sweep, rebalance, optimize_work_queue, status_report.
// Each job is idempotent, traced, and observes a single-flight
// "maintenance token" so only one job runs at a time on a host.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/log"
	"github.com/cuemby/workclaim/pkg/metrics"
	"github.com/cuemby/workclaim/pkg/queueview"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/tracing"
	"github.com/cuemby/workclaim/pkg/types"
)

// Cadences holds one cron expression per job. DefaultCadences gives spec
// §4.7's table; an empty or invalid expression makes Start fail.
type Cadences struct {
	HealthCheck         string
	ArchiveCompleted    string
	RotateSpanLog       string
	RealityVerify       string
	StaleHeartbeatSweep string
	Rebalance           string
	OptimizeWorkQueue   string
	StatusReport        string
}

// DefaultCadences returns the spec's default cadence table.
func DefaultCadences() Cadences {
	return Cadences{
		HealthCheck:         "*/15 * * * *",
		ArchiveCompleted:    "0 2 * * *",
		RotateSpanLog:       "0 3 * * *",
		RealityVerify:       "0 * * * *",
		StaleHeartbeatSweep: "*/15 * * * *",
		Rebalance:           "30 * * * *",
		OptimizeWorkQueue:   "0 */4 * * *",
		StatusReport:        "0 4 * * *",
	}
}

// Config tunes the scheduler.
type Config struct {
	Cadences                Cadences
	HeartbeatTimeout        time.Duration
	CompletedRetentionDays  int
	SpanLogMaxBytes         int64
	SpanLogPath             string
	RebalanceRatioThreshold float64
	HealthScoreThreshold    int
	MaxTokenHold            time.Duration
}

// DefaultConfig returns the scheduler's default tuning.
func DefaultConfig() Config {
	return Config{
		Cadences:                DefaultCadences(),
		HeartbeatTimeout:        90 * time.Second,
		CompletedRetentionDays:  30,
		SpanLogMaxBytes:         64 * 1024 * 1024,
		RebalanceRatioThreshold: 3.0,
		HealthScoreThreshold:    50,
		MaxTokenHold:            2 * time.Minute,
	}
}

// Scheduler drives the eight maintenance jobs on cron cadences.
type Scheduler struct {
	store      *statestore.Store
	engine     *claimengine.Engine
	view       *queueview.View
	tracer     *tracing.Tracer
	spanWriter *tracing.FileWriter
	cfg        Config

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	token   *token
	raised  bool // true while the last health_check score was below threshold
}

// New constructs a Scheduler. spanWriter may be nil, in which case
// rotate_span_log is a no-op (the CLI wires a real *tracing.FileWriter).
func New(store *statestore.Store, engine *claimengine.Engine, view *queueview.View, tracer *tracing.Tracer, spanWriter *tracing.FileWriter, cfg Config) *Scheduler {
	return &Scheduler{store: store, engine: engine, view: view, tracer: tracer, spanWriter: spanWriter, cfg: cfg}
}

// Start begins running every job on its configured cadence. Safe to call
// once; a second call is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.token = newToken(s.cfg.MaxTokenHold, func(job string) {
		log.WithComponent("maintenance").Warn().Str("job", job).Msg("watchdog reclaimed maintenance token")
		h := s.tracer.StartSpan(ctx, "maintenance.token_watchdog", map[string]string{"job": job})
		s.tracer.EndSpan(h, types.SpanError, map[string]string{"error": "maintenance token force-released after exceeding max hold"})
	})

	c := cron.New()
	jobs := []struct {
		name    string
		cadence string
		run     func(context.Context) error
	}{
		{"health_check", s.cfg.Cadences.HealthCheck, s.runHealthCheck},
		{"archive_completed", s.cfg.Cadences.ArchiveCompleted, s.runArchiveCompleted},
		{"rotate_span_log", s.cfg.Cadences.RotateSpanLog, s.runRotateSpanLog},
		{"reality_verify", s.cfg.Cadences.RealityVerify, s.runRealityVerify},
		{"stale_heartbeat_sweep", s.cfg.Cadences.StaleHeartbeatSweep, s.runStaleHeartbeatSweep},
		{"rebalance", s.cfg.Cadences.Rebalance, s.runRebalance},
		{"optimize_work_queue", s.cfg.Cadences.OptimizeWorkQueue, s.runOptimizeWorkQueue},
		{"status_report", s.cfg.Cadences.StatusReport, s.runStatusReport},
	}

	for _, j := range jobs {
		j := j
		if _, err := c.AddFunc(j.cadence, func() { s.dispatch(ctx, j.name, j.run) }); err != nil {
			return fmt.Errorf("maintenance: invalid cadence for %s (%q): %w", j.name, j.cadence, err)
		}
	}

	c.Start()
	s.cron = c
	s.running = true
	log.WithComponent("maintenance").Info().Msg("maintenance scheduler started")
	return nil
}

// Stop halts the cron loop and the token watchdog.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.token.Stop()
	s.running = false
	log.WithComponent("maintenance").Info().Msg("maintenance scheduler stopped")
	return nil
}

// RunNow runs one named job immediately, outside its cron cadence — the
// path the CLI's "maintenance <job-name>" verb uses.
func (s *Scheduler) RunNow(ctx context.Context, job string) error {
	run, ok := s.jobByName(job)
	if !ok {
		return fmt.Errorf("maintenance: unknown job %q", job)
	}
	return s.runOnce(ctx, job, run)
}

func (s *Scheduler) jobByName(job string) (func(context.Context) error, bool) {
	switch job {
	case "health_check":
		return s.runHealthCheck, true
	case "archive_completed":
		return s.runArchiveCompleted, true
	case "rotate_span_log":
		return s.runRotateSpanLog, true
	case "reality_verify":
		return s.runRealityVerify, true
	case "stale_heartbeat_sweep":
		return s.runStaleHeartbeatSweep, true
	case "rebalance":
		return s.runRebalance, true
	case "optimize_work_queue":
		return s.runOptimizeWorkQueue, true
	case "status_report":
		return s.runStatusReport, true
	default:
		return nil, false
	}
}

// dispatch is the cron-triggered entry point: acquire the token or skip.
func (s *Scheduler) dispatch(ctx context.Context, name string, run func(context.Context) error) {
	if s.token == nil || !s.token.tryAcquire(name) {
		log.WithComponent("maintenance").Debug().Str("job", name).Msg("skipping tick: maintenance token busy")
		return
	}
	defer s.token.release(name)
	if err := s.runLocked(ctx, name, run); err != nil {
		log.WithComponent("maintenance").Error().Err(err).Str("job", name).Msg("maintenance job failed")
	}
}

// runOnce is used by RunNow, which acquires the token itself (an operator
// explicitly asked for this job to run right now) rather than skipping on
// contention.
func (s *Scheduler) runOnce(ctx context.Context, name string, run func(context.Context) error) error {
	if s.token != nil {
		for !s.token.tryAcquire(name) {
			time.Sleep(10 * time.Millisecond)
		}
		defer s.token.release(name)
	}
	return s.runLocked(ctx, name, run)
}

func (s *Scheduler) runLocked(ctx context.Context, name string, run func(context.Context) error) error {
	h := s.tracer.StartSpan(ctx, "maintenance."+name, map[string]string{"job": name})
	timer := metrics.NewTimer()
	err := run(h.Context())
	status := outcomeStatus(err)
	recordMaintenanceMetrics(name, status, timer.Duration().Seconds())
	extra := map[string]string{}
	if err != nil {
		extra["error"] = err.Error()
	}
	s.tracer.EndSpan(h, status, extra)
	return err
}
