package registry

import (
	"context"
	"testing"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/tracing"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/stretchr/testify/require"
)

type discardWriter struct{}

func (discardWriter) Write(types.Span) error { return nil }

func newTestRegistry(t *testing.T) (*Registry, *claimengine.Engine) {
	t.Helper()
	store, err := statestore.Open(statestore.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	tracer := tracing.New("workclaim", discardWriter{})
	engine := claimengine.New(store, tracer, claimengine.DefaultConfig())
	return New(store, engine), engine
}

func TestDeregisterReassignsActiveWork(t *testing.T) {
	r, engine := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, claimengine.RegisterAgentParams{AgentID: "a1", Team: "A", Role: "dev", CapacityMax: 2})
	require.NoError(t, err)

	work, err := engine.CreateWork(ctx, claimengine.CreateWorkParams{WorkType: "feature", Description: "x", Priority: types.PriorityMedium, Team: "A"})
	require.NoError(t, err)
	_, err = engine.Claim(ctx, claimengine.ClaimParams{WorkID: work.WorkID, AgentID: "a1"})
	require.NoError(t, err)

	require.NoError(t, r.Deregister(ctx, "a1"))

	agents, err := r.ListAgents(ctx)
	require.NoError(t, err)
	require.Empty(t, agents)

	claimed, err := engine.Claim(ctx, claimengine.ClaimParams{WorkID: work.WorkID, AgentID: "does-not-matter"})
	_ = claimed
	require.Error(t, err) // agent "does-not-matter" isn't registered, so the claim is rejected before the item is looked at

	_, err = r.RegisterAgent(ctx, claimengine.RegisterAgentParams{AgentID: "a2", Team: "A", Role: "dev", CapacityMax: 1})
	require.NoError(t, err)
	claimed, err = engine.Claim(ctx, claimengine.ClaimParams{WorkID: work.WorkID, AgentID: "a2"})
	require.NoError(t, err) // a targeted claim succeeds only on a pending item
	require.Len(t, claimed, 1)
}

func TestFindByTeam(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, claimengine.RegisterAgentParams{AgentID: "a1", Team: "red", Role: "dev", CapacityMax: 1})
	require.NoError(t, err)
	_, err = r.RegisterAgent(ctx, claimengine.RegisterAgentParams{AgentID: "a2", Team: "blue", Role: "dev", CapacityMax: 1})
	require.NoError(t, err)

	red, err := r.FindByTeam(ctx, "red")
	require.NoError(t, err)
	require.Len(t, red, 1)
	require.Equal(t, "a1", red[0].AgentID)
}
