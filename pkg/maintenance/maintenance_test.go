package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/queueview"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/tracing"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/stretchr/testify/require"
)

type discardWriter struct{}

func (discardWriter) Write(types.Span) error { return nil }

func newTestScheduler(t *testing.T) (*Scheduler, *statestore.Store, *claimengine.Engine, *queueview.View) {
	t.Helper()
	store, err := statestore.Open(statestore.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	tracer := tracing.New("workclaim", discardWriter{})
	engine := claimengine.New(store, tracer, claimengine.DefaultConfig())
	view := queueview.New(store, nil)
	cfg := DefaultConfig()
	s := New(store, engine, view, tracer, nil, cfg)
	return s, store, engine, view
}

func TestRunNowUnknownJobFails(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	err := s.RunNow(context.Background(), "not_a_real_job")
	require.Error(t, err)
}

func TestRunNowEachJobSucceedsOnEmptyStore(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	ctx := context.Background()
	for _, job := range []string{
		"health_check", "archive_completed", "rotate_span_log",
		"reality_verify", "stale_heartbeat_sweep", "rebalance",
		"optimize_work_queue", "status_report",
	} {
		require.NoError(t, s.RunNow(ctx, job), "job=%s", job)
	}
}

func TestRunNowSerializesViaMaintenanceToken(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	ctx := context.Background()

	require.True(t, s.token == nil)
	s.token = newToken(2*time.Minute, func(string) {})
	defer s.token.Stop()

	require.True(t, s.token.tryAcquire("status_report"))
	err := make(chan error, 1)
	go func() { err <- s.runOnce(ctx, "health_check", s.runHealthCheck) }()

	select {
	case <-err:
		t.Fatal("runOnce completed despite the token being held")
	case <-time.After(50 * time.Millisecond):
	}
	s.token.release("status_report")
	require.NoError(t, <-err)
}

func TestRealityVerifyFlagsDuplicateClaimant(t *testing.T) {
	s, store, _, _ := newTestScheduler(t)
	ctx := context.Background()

	now := time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	tampered := statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry}
	err := store.WithExclusiveLock(tampered, func(snap *statestore.Snapshot) error {
		snap.AgentRegistry["agent-1"] = types.Agent{
			AgentID: "agent-1", Team: "A", Role: "dev",
			CapacityMax: 5, CurrentWorkload: 2, Status: types.AgentActive,
			LastHeartbeatAt: now, RegisteredAt: now,
		}
		snap.ActiveClaims = append(snap.ActiveClaims,
			types.WorkItem{WorkID: "w1", Status: types.WorkActive, AssignedAgentID: "agent-1", CreatedAt: now},
			types.WorkItem{WorkID: "w1", Status: types.WorkActive, AssignedAgentID: "agent-1", CreatedAt: now},
		)
		return nil
	})
	require.NoError(t, err)

	verifyErr := s.RunNow(ctx, "reality_verify")
	require.Error(t, verifyErr)
}

func TestStaleHeartbeatSweepJobReassignsWork(t *testing.T) {
	s, _, engine, view := newTestScheduler(t)
	ctx := context.Background()

	_, err := engine.RegisterAgent(ctx, claimengine.RegisterAgentParams{AgentID: "a1", Team: "A", Role: "dev", CapacityMax: 2})
	require.NoError(t, err)
	work, err := engine.CreateWork(ctx, claimengine.CreateWorkParams{WorkType: "bug", Description: "d", Priority: types.PriorityMedium, Team: "A"})
	require.NoError(t, err)
	_, err = engine.Claim(ctx, claimengine.ClaimParams{WorkID: work.WorkID, AgentID: "a1"})
	require.NoError(t, err)

	s.cfg.HeartbeatTimeout = 0
	require.NoError(t, s.RunNow(ctx, "stale_heartbeat_sweep"))

	items, err := view.ListWork(queueview.Filter{Status: types.WorkPending})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, work.WorkID, items[0].WorkID)
	require.Empty(t, items[0].AssignedAgentID)
}
