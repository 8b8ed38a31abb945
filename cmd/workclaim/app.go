package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/clock"
	"github.com/cuemby/workclaim/pkg/config"
	"github.com/cuemby/workclaim/pkg/log"
	"github.com/cuemby/workclaim/pkg/maintenance"
	"github.com/cuemby/workclaim/pkg/queueview"
	"github.com/cuemby/workclaim/pkg/registry"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/tracing"
)

// app holds the wired-up components every verb's RunE needs. One app is
// built per process invocation (§5: each CLI invocation is an independent,
// short-lived process), never shared across invocations.
type app struct {
	cfg        config.Config
	store      *statestore.Store
	tracer     *tracing.Tracer
	spanWriter *tracing.FileWriter
	cache      *statestore.DashboardCache
	engine     *claimengine.Engine
	registry   *registry.Registry
	view       *queueview.View
	scheduler  *maintenance.Scheduler

	jsonMode bool
	agentID  string
	timeout  time.Duration
}

// newApp resolves config (flag > env > file > default) and wires every
// component bottom-up: statestore, then tracing, then claimengine/registry/
// queueview, then maintenance — mirroring the dependency order spec.md §2
// lists its modules in.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	jsonFlag, _ := cmd.Flags().GetBool("json")
	jsonMode := jsonFlag || cfg.OutputFormat == "json"

	agentID := cfg.AgentID
	if a, _ := cmd.Flags().GetString("agent"); a != "" {
		agentID = a
	}

	timeout := cfg.LockWait
	if t, _ := cmd.Flags().GetDuration("timeout"); t > 0 {
		timeout = t
	}

	lockMode, _ := cfg.LockMode() // empty mode -> filelock.New auto-detects per lock file

	store, err := statestore.Open(statestore.Config{
		Dir:      cfg.CoordinationDir,
		LockWait: timeout,
		LockMode: lockMode,
	})
	if err != nil {
		return nil, err
	}

	spanWriter, err := tracing.NewFileWriter(cfg.CoordinationDir+"/span-log.ndjson", 0)
	if err != nil {
		return nil, err
	}
	tracer := tracing.New("workclaim", spanWriter)

	cache, err := statestore.OpenDashboardCache(cfg.CoordinationDir)
	if err != nil {
		log.WithComponent("cli").Warn().Err(err).Msg("dashboard cache unavailable; queries will recompute every call")
		cache = nil
	}

	engineCfg := claimengine.DefaultConfig()
	engine := claimengine.New(store, tracer, engineCfg)
	reg := registry.New(store, engine)
	view := queueview.New(store, cache)
	sched := maintenance.New(store, engine, view, tracer, spanWriter, cfg.MaintenanceConfig())

	return &app{
		cfg:        cfg,
		store:      store,
		tracer:     tracer,
		spanWriter: spanWriter,
		cache:      cache,
		engine:     engine,
		registry:   reg,
		view:       view,
		scheduler:  sched,
		jsonMode:   jsonMode,
		agentID:    agentID,
		timeout:    timeout,
	}, nil
}

// close flushes the span writer and releases the dashboard cache, run via
// defer from main after every verb completes (§5's shutdown hook draining
// any buffered spans).
func (a *app) close() {
	if a.spanWriter != nil {
		_ = a.spanWriter.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
}

// context builds the root context for one operation, carrying trace/parent
// span propagation from TRACE_ID/PARENT_SPAN_ID (§6) and a deadline derived
// from --timeout.
func (a *app) context() (context.Context, context.CancelFunc) {
	ctx := context.Background()
	if a.cfg.TraceID != "" || a.cfg.ParentSpanID != "" {
		ctx = tracing.WithTrace(ctx, a.cfg.TraceID, a.cfg.ParentSpanID)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// run drives one operation end-to-end: starts the timer, invokes fn, emits
// the envelope/text output, and returns the process exit code.
func (a *app) run(cmd *cobra.Command, operation string, fn func(ctx context.Context) (any, error)) int {
	ctx, cancel := a.context()
	defer cancel()

	start := time.Now()
	data, err := fn(ctx)
	elapsed := time.Since(start).Milliseconds()

	requestID := clock.NewSpanID()
	traceID := tracing.TraceID(ctx)
	return emit(a.jsonMode, operation, a.agentID, traceID, requestID, elapsed, data, err)
}
