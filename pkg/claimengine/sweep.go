package claimengine

import (
	"context"
	"time"

	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
)

// SweepResult reports what StaleHeartbeatSweep did.
type SweepResult struct {
	OfflinedAgents    []string
	ReassignedWorkIDs []string
}

// StaleHeartbeatSweep transitions every agent whose last_heartbeat_at is
// older than timeout to offline, reassigning its active/blocked work back
// to pending (priority preserved, since the item's Priority field is left
// untouched) in the same locked transaction. Invoked by
// pkg/maintenance's stale_heartbeat_sweep job; never run directly by the
// scheduler against the files.
func (e *Engine) StaleHeartbeatSweep(ctx context.Context, timeout time.Duration) (SweepResult, error) {
	const op = "claim_engine.stale_heartbeat_sweep"
	_, done := e.span(ctx, op, nil)
	var result SweepResult
	var opErr error
	defer func() { done(opErr, nil) }()

	cutoff := time.Now().Add(-timeout)

	opErr = e.withLock(statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry}, func(snap *statestore.Snapshot) error {
		for id, agent := range snap.AgentRegistry {
			if agent.Status == types.AgentOffline {
				continue
			}
			last, err := parseTimestamp(agent.LastHeartbeatAt)
			if err != nil || last.After(cutoff) {
				continue
			}

			agent.Status = types.AgentOffline
			agent.CurrentWorkload = 0
			snap.AgentRegistry[id] = agent
			result.OfflinedAgents = append(result.OfflinedAgents, id)

			for i := range snap.ActiveClaims {
				item := &snap.ActiveClaims[i]
				if item.AssignedAgentID != id {
					continue
				}
				if item.Status == types.WorkActive || item.Status == types.WorkBlocked {
					item.Status = types.WorkPending
					item.AssignedAgentID = ""
					item.ClaimedAt = ""
					item.StartedAt = ""
					item.SubStatus = ""
					result.ReassignedWorkIDs = append(result.ReassignedWorkIDs, item.WorkID)
				}
			}
		}
		return nil
	})
	return result, opErr
}
