package claimengine

import (
	"context"
	"fmt"

	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// RegisterAgentParams are the inputs to RegisterAgent.
type RegisterAgentParams struct {
	AgentID        string
	Team           string
	Role           string
	CapacityMax    int
	Specialization string
	// AllowTakeover permits re-registering an existing agent_id under a
	// different team/role instead of returning CONFLICT.
	AllowTakeover bool
}

// RegisterAgent upserts an agent record (§4.4.1).
func (e *Engine) RegisterAgent(ctx context.Context, p RegisterAgentParams) (types.Agent, error) {
	const op = "claim_engine.register_agent"
	_, done := e.span(ctx, op, map[string]string{"agent_id": p.AgentID})
	var result types.Agent
	var opErr error
	defer func() { done(opErr, nil) }()

	if !nonEmpty(p.AgentID) || !nonEmpty(p.Team) || !nonEmpty(p.Role) || p.CapacityMax < 1 {
		opErr = workerr.New(op, workerr.InvalidArg, fmt.Errorf("agent_id, team, role required and capacity_max must be >= 1"))
		return result, opErr
	}

	opErr = e.withLock(statestore.Scope{statestore.DocAgentRegistry}, func(snap *statestore.Snapshot) error {
		existing, found := snap.AgentRegistry[p.AgentID]
		if found && !p.AllowTakeover && (existing.Team != p.Team || existing.Role != p.Role) {
			return workerr.New(op, workerr.Conflict, fmt.Errorf("agent_id %q already registered under team=%s role=%s", p.AgentID, existing.Team, existing.Role))
		}

		registeredAt := now()
		if found {
			registeredAt = existing.RegisteredAt
		}

		agent := types.Agent{
			AgentID:         p.AgentID,
			Team:            p.Team,
			Role:            p.Role,
			CapacityMax:     p.CapacityMax,
			CurrentWorkload: 0,
			Status:          types.AgentActive,
			Specialization:  p.Specialization,
			LastHeartbeatAt: now(),
			RegisteredAt:    registeredAt,
		}
		if found {
			agent.CurrentWorkload = existing.CurrentWorkload
		}
		snap.AgentRegistry[p.AgentID] = agent
		result = agent
		return nil
	})
	return result, opErr
}

// HeartbeatParams are the inputs to Heartbeat.
type HeartbeatParams struct {
	AgentID         string
	Status          *types.AgentStatus
	CurrentWorkload *int
}

// Heartbeat refreshes last_heartbeat_at and optionally status/workload
// (§4.4.2).
func (e *Engine) Heartbeat(ctx context.Context, p HeartbeatParams) (types.Agent, error) {
	const op = "claim_engine.heartbeat"
	_, done := e.span(ctx, op, map[string]string{"agent_id": p.AgentID})
	var result types.Agent
	var opErr error
	defer func() { done(opErr, nil) }()

	if !nonEmpty(p.AgentID) {
		opErr = workerr.New(op, workerr.InvalidArg, fmt.Errorf("agent_id required"))
		return result, opErr
	}
	if p.Status != nil && *p.Status == types.AgentOffline {
		opErr = workerr.New(op, workerr.InvalidArg, fmt.Errorf("heartbeat cannot set status=offline; use deregister"))
		return result, opErr
	}

	opErr = e.withLock(statestore.Scope{statestore.DocAgentRegistry}, func(snap *statestore.Snapshot) error {
		agent, found := snap.AgentRegistry[p.AgentID]
		if !found {
			return workerr.New(op, workerr.NotFound, fmt.Errorf("agent_id %q not registered", p.AgentID))
		}
		agent.LastHeartbeatAt = now()
		if p.Status != nil {
			agent.Status = *p.Status
		}
		if p.CurrentWorkload != nil {
			if *p.CurrentWorkload < 0 || *p.CurrentWorkload > agent.CapacityMax {
				return workerr.New(op, workerr.InvalidArg, fmt.Errorf("current_workload %d out of bounds [0,%d]", *p.CurrentWorkload, agent.CapacityMax))
			}
			agent.CurrentWorkload = *p.CurrentWorkload
		}
		snap.AgentRegistry[p.AgentID] = agent
		result = agent
		return nil
	})
	return result, opErr
}
