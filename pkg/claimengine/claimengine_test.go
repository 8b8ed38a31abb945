package claimengine

import (
	"context"
	"testing"

	"github.com/cuemby/workclaim/pkg/queueview"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/tracing"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
	"github.com/stretchr/testify/require"
)

type discardWriter struct{}

func (discardWriter) Write(types.Span) error { return nil }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, _ := newTestEngineAndStore(t)
	return e
}

func newTestEngineAndStore(t *testing.T) (*Engine, *statestore.Store) {
	t.Helper()
	store, err := statestore.Open(statestore.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	tracer := tracing.New("workclaim", discardWriter{})
	return New(store, tracer, DefaultConfig()), store
}

func registerAgent(t *testing.T, e *Engine, agentID string, capacity int) {
	t.Helper()
	_, err := e.RegisterAgent(context.Background(), RegisterAgentParams{
		AgentID: agentID, Team: "A", Role: "dev", CapacityMax: capacity,
	})
	require.NoError(t, err)
}

func TestRegisterClaimProgressComplete(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	agent, err := e.RegisterAgent(ctx, RegisterAgentParams{AgentID: "a1", Team: "A", Role: "dev", CapacityMax: 3})
	require.NoError(t, err)
	require.Equal(t, 0, agent.CurrentWorkload)

	work, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "refactor cache", Priority: types.PriorityHigh, Team: "A"})
	require.NoError(t, err)

	claimed, err := e.Claim(ctx, ClaimParams{WorkID: work.WorkID, AgentID: "a1"})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, types.WorkActive, claimed[0].Status)

	_, err = e.Progress(ctx, ProgressParams{WorkID: work.WorkID, ProgressPercent: 50})
	require.NoError(t, err)

	completed, err := e.Complete(ctx, work.WorkID, "ok", 5)
	require.NoError(t, err)
	require.Equal(t, types.WorkCompleted, completed.Status)
	require.Equal(t, 100, completed.ProgressPercent)

	agentAfter, err := e.Heartbeat(ctx, HeartbeatParams{AgentID: "a1"})
	require.NoError(t, err)
	require.Equal(t, 0, agentAfter.CurrentWorkload)
}

func TestClaimTargetedTwiceYieldsStateConflict(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerAgent(t, e, "a1", 3)

	work, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "x", Priority: types.PriorityLow, Team: "A"})
	require.NoError(t, err)

	_, err = e.Claim(ctx, ClaimParams{WorkID: work.WorkID, AgentID: "a1"})
	require.NoError(t, err)

	_, err = e.Claim(ctx, ClaimParams{WorkID: work.WorkID, AgentID: "a1"})
	require.True(t, workerr.Is(err, workerr.StateConflict))
}

func TestClaimNextCapacityExceeded(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerAgent(t, e, "a2", 2)

	for i := 0; i < 3; i++ {
		_, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "x", Priority: types.PriorityMedium, Team: "A"})
		require.NoError(t, err)
	}

	claimed, err := e.Claim(ctx, ClaimParams{WorkType: "feature", AgentID: "a2", DesiredCount: 3})
	require.Error(t, err)
	require.True(t, workerr.Is(err, workerr.CapacityExceeded))
	require.Empty(t, claimed)

	claimed, err = e.Claim(ctx, ClaimParams{WorkType: "feature", AgentID: "a2", DesiredCount: 2})
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	_, err = e.Claim(ctx, ClaimParams{WorkType: "feature", AgentID: "a2", DesiredCount: 1})
	require.True(t, workerr.Is(err, workerr.CapacityExceeded))
}

func TestClaimPriorityOrdering(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerAgent(t, e, "a1", 5)

	low, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "low", Priority: types.PriorityLow, Team: "A"})
	require.NoError(t, err)
	_ = low
	critical, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "critical", Priority: types.PriorityCritical, Team: "A"})
	require.NoError(t, err)

	claimed, err := e.Claim(ctx, ClaimParams{WorkType: "feature", AgentID: "a1", DesiredCount: 1})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, critical.WorkID, claimed[0].WorkID)
}

func TestClaimOnNonexistentWorkIDYieldsNotFound(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerAgent(t, e, "a1", 1)

	_, err := e.Claim(ctx, ClaimParams{WorkID: "work-does-not-exist", AgentID: "a1"})
	require.True(t, workerr.Is(err, workerr.NotFound))
}

func TestClaimNextNoMatchReturnsEmptyNotError(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerAgent(t, e, "a1", 1)

	claimed, err := e.Claim(ctx, ClaimParams{WorkType: "nonexistent", AgentID: "a1"})
	require.NoError(t, err)
	require.Empty(t, claimed)
}

func TestStaleHeartbeatSweepAnalogue_CancelFromActiveReassignsToPending(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerAgent(t, e, "a1", 2)

	work, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "x", Priority: types.PriorityMedium, Team: "A"})
	require.NoError(t, err)
	_, err = e.Claim(ctx, ClaimParams{WorkID: work.WorkID, AgentID: "a1"})
	require.NoError(t, err)

	cancelled, err := e.Cancel(ctx, work.WorkID)
	require.NoError(t, err)
	require.Equal(t, types.WorkPending, cancelled.Status)
	require.Empty(t, cancelled.AssignedAgentID)

	agent, err := e.Heartbeat(ctx, HeartbeatParams{AgentID: "a1"})
	require.NoError(t, err)
	require.Equal(t, 0, agent.CurrentWorkload)
}

func TestCreateWorkCancelListCancelled(t *testing.T) {
	e, store := newTestEngineAndStore(t)
	ctx := context.Background()

	work, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "x", Priority: types.PriorityMedium, Team: "A"})
	require.NoError(t, err)

	cancelled, err := e.Cancel(ctx, work.WorkID)
	require.NoError(t, err)
	require.Equal(t, types.WorkCancelled, cancelled.Status)

	view := queueview.New(store, nil)
	items, err := view.ListWork(queueview.Filter{Status: types.WorkCancelled})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, work.WorkID, items[0].WorkID)
}

func TestProgressRegressionRequiresSubStatus(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerAgent(t, e, "a1", 1)

	work, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "x", Priority: types.PriorityMedium, Team: "A"})
	require.NoError(t, err)
	_, err = e.Claim(ctx, ClaimParams{WorkID: work.WorkID, AgentID: "a1"})
	require.NoError(t, err)
	_, err = e.Progress(ctx, ProgressParams{WorkID: work.WorkID, ProgressPercent: 80})
	require.NoError(t, err)

	_, err = e.Progress(ctx, ProgressParams{WorkID: work.WorkID, ProgressPercent: 40})
	require.True(t, workerr.Is(err, workerr.InvalidArg))

	_, err = e.Progress(ctx, ProgressParams{WorkID: work.WorkID, ProgressPercent: 40, SubStatus: "reverted after review"})
	require.NoError(t, err)
}

func TestBlockUnblockIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerAgent(t, e, "a1", 1)

	work, err := e.CreateWork(ctx, CreateWorkParams{WorkType: "feature", Description: "x", Priority: types.PriorityMedium, Team: "A"})
	require.NoError(t, err)
	_, err = e.Claim(ctx, ClaimParams{WorkID: work.WorkID, AgentID: "a1"})
	require.NoError(t, err)

	blocked, err := e.Block(ctx, work.WorkID, "waiting on review")
	require.NoError(t, err)
	require.Equal(t, types.WorkBlocked, blocked.Status)

	blockedAgain, err := e.Block(ctx, work.WorkID, "waiting on review")
	require.NoError(t, err)
	require.Equal(t, types.WorkBlocked, blockedAgain.Status)

	unblocked, err := e.Unblock(ctx, work.WorkID)
	require.NoError(t, err)
	require.Equal(t, types.WorkActive, unblocked.Status)
}
