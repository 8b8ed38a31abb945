// Package registry is the thin agent-management layer over the state
// store: register/heartbeat/status are delegated straight to
// pkg/claimengine; this package adds deregister (with forced reassignment
// of active work, done under its own state-store lock rather than through
// the engine) and the read-only listing/lookup helpers.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// Registry provides agent lifecycle and lookup operations.
type Registry struct {
	store  *statestore.Store
	engine *claimengine.Engine
}

// New constructs a Registry backed by store and engine.
func New(store *statestore.Store, engine *claimengine.Engine) *Registry {
	return &Registry{store: store, engine: engine}
}

// RegisterAgent delegates to the claim engine.
func (r *Registry) RegisterAgent(ctx context.Context, p claimengine.RegisterAgentParams) (types.Agent, error) {
	return r.engine.RegisterAgent(ctx, p)
}

// Heartbeat delegates to the claim engine.
func (r *Registry) Heartbeat(ctx context.Context, p claimengine.HeartbeatParams) (types.Agent, error) {
	return r.engine.Heartbeat(ctx, p)
}

// SetStatus updates an agent's status via Heartbeat's same-field path,
// rejecting a direct transition to offline (deregister is the only path
// there, per A3).
func (r *Registry) SetStatus(ctx context.Context, agentID string, status types.AgentStatus) (types.Agent, error) {
	return r.engine.Heartbeat(ctx, claimengine.HeartbeatParams{AgentID: agentID, Status: &status})
}

// Deregister removes an agent from the registry. A3 requires
// current_workload = 0 before reaching offline; a busy agent's active and
// blocked items are reassigned to pending in the same locked transaction
// rather than left orphaned (mirroring the teacher's reconcileNodes
// pairing, which always mutates the owning resource and its dependent
// records together). Deregister writes no span.
func (r *Registry) Deregister(ctx context.Context, agentID string) error {
	const op = "registry.deregister"
	scope := statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry}
	return r.store.WithExclusiveLock(scope, func(snap *statestore.Snapshot) error {
		if _, found := snap.AgentRegistry[agentID]; !found {
			return workerr.New(op, workerr.NotFound, fmt.Errorf("agent_id %q not registered", agentID))
		}

		for i := range snap.ActiveClaims {
			item := &snap.ActiveClaims[i]
			if item.AssignedAgentID != agentID {
				continue
			}
			if item.Status == types.WorkActive || item.Status == types.WorkBlocked {
				item.Status = types.WorkPending
				item.AssignedAgentID = ""
				item.ClaimedAt = ""
				item.StartedAt = ""
				item.SubStatus = ""
			}
		}

		delete(snap.AgentRegistry, agentID)
		return nil
	})
}

// ListAgents returns every registered agent.
func (r *Registry) ListAgents(ctx context.Context) ([]types.Agent, error) {
	snap, err := r.store.ReadSnapshot(statestore.Scope{statestore.DocAgentRegistry})
	if err != nil {
		return nil, err
	}
	agents := make([]types.Agent, 0, len(snap.AgentRegistry))
	for _, a := range snap.AgentRegistry {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })
	return agents, nil
}

// FindByTeam returns every agent belonging to team.
func (r *Registry) FindByTeam(ctx context.Context, team string) ([]types.Agent, error) {
	agents, err := r.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Agent
	for _, a := range agents {
		if a.Team == team {
			out = append(out, a)
		}
	}
	return out, nil
}

// FindBySpecialization returns every agent with the given specialization.
func (r *Registry) FindBySpecialization(ctx context.Context, specialization string) ([]types.Agent, error) {
	agents, err := r.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Agent
	for _, a := range agents {
		if a.Specialization == specialization {
			out = append(out, a)
		}
	}
	return out, nil
}
