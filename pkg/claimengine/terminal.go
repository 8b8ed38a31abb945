package claimengine

import (
	"context"
	"fmt"

	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// terminate is the shared bookkeeping for complete/fail: move the item out
// of active-claims into a terminal status, decrement the owning agent's
// workload, and append a CompletedWorkRecord. Cancel has its own path
// below.
func (e *Engine) terminate(ctx context.Context, op, workID string, newStatus types.WorkStatus, result, reason string, velocityPoints int, allowFromPending bool) (types.WorkItem, error) {
	_, done := e.span(ctx, op, map[string]string{"work_id": workID})
	var item types.WorkItem
	var opErr error
	defer func() { done(opErr, nil) }()

	scope := statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry, statestore.DocCompletedLog}
	opErr = e.withLock(scope, func(snap *statestore.Snapshot) error {
		idx := findWork(snap.ActiveClaims, workID)
		if idx < 0 {
			return workerr.New(op, workerr.NotFound, fmt.Errorf("work_id %q not found", workID))
		}
		found := snap.ActiveClaims[idx]

		validFrom := found.Status == types.WorkActive || found.Status == types.WorkBlocked
		if allowFromPending && found.Status == types.WorkPending {
			validFrom = true
		}
		if !validFrom {
			return workerr.New(op, workerr.StateConflict, fmt.Errorf("work_id %q cannot transition to %s from status=%s", workID, newStatus, found.Status))
		}

		ts := now()
		found.Status = newStatus
		found.CompletedAt = ts
		found.Result = result
		if newStatus == types.WorkCompleted {
			found.ProgressPercent = 100
			found.VelocityPoints = velocityPoints
		}
		if reason != "" {
			found.BlockReason = reason
		}

		wasAssigned := found.AssignedAgentID != ""
		if wasAssigned {
			if agent, ok := snap.AgentRegistry[found.AssignedAgentID]; ok {
				if agent.CurrentWorkload > 0 {
					agent.CurrentWorkload--
				}
				if agent.Status == types.AgentBusy && agent.CurrentWorkload < agent.CapacityMax {
					agent.Status = types.AgentActive
				}
				snap.AgentRegistry[found.AssignedAgentID] = agent
			}
		}

		snap.ActiveClaims = append(snap.ActiveClaims[:idx], snap.ActiveClaims[idx+1:]...)
		snap.CompletedLog = append(snap.CompletedLog, types.CompletedWorkRecord{
			WorkItem:   found,
			DurationMs: durationMs(found.CreatedAt, found.CompletedAt),
		})

		item = found
		return nil
	})
	return item, opErr
}

// Complete marks a work item as successfully finished (§4.4.7).
func (e *Engine) Complete(ctx context.Context, workID, result string, velocityPoints int) (types.WorkItem, error) {
	return e.terminate(ctx, "claim_engine.complete", workID, types.WorkCompleted, result, "", velocityPoints, false)
}

// Fail marks a work item as terminally failed (§4.4.8).
func (e *Engine) Fail(ctx context.Context, workID, reason string) (types.WorkItem, error) {
	return e.terminate(ctx, "claim_engine.fail", workID, types.WorkFailed, "failure", reason, 0, false)
}

// Cancel marks a work item cancelled, permitted from pending or active/blocked
// (§4.4.8). The engine resolves the "cancel from active" open question by
// auto-reassigning the item to pending instead of dropping it, recorded via
// a cancel_policy=reassign span attribute.
func (e *Engine) Cancel(ctx context.Context, workID string) (types.WorkItem, error) {
	const op = "claim_engine.cancel"
	_, done := e.span(ctx, op, map[string]string{"work_id": workID, "cancel_policy": "reassign"})
	var item types.WorkItem
	var opErr error
	defer func() { done(opErr, nil) }()

	scope := statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry, statestore.DocCompletedLog}
	opErr = e.withLock(scope, func(snap *statestore.Snapshot) error {
		idx := findWork(snap.ActiveClaims, workID)
		if idx < 0 {
			return workerr.New(op, workerr.NotFound, fmt.Errorf("work_id %q not found", workID))
		}
		found := &snap.ActiveClaims[idx]
		if found.Status.Terminal() {
			return workerr.New(op, workerr.StateConflict, fmt.Errorf("work_id %q is already terminal (status=%s)", workID, found.Status))
		}

		if found.Status == types.WorkPending {
			found.Status = types.WorkCancelled
			found.CompletedAt = now()
			found.Result = "cancelled"
			item = *found
			snap.ActiveClaims = append(snap.ActiveClaims[:idx], snap.ActiveClaims[idx+1:]...)
			snap.CompletedLog = append(snap.CompletedLog, types.CompletedWorkRecord{
				WorkItem:   item,
				DurationMs: durationMs(item.CreatedAt, item.CompletedAt),
			})
			return nil
		}

		// active or blocked: release the claim back to pending instead of
		// terminating the item outright.
		if found.AssignedAgentID != "" {
			if agent, ok := snap.AgentRegistry[found.AssignedAgentID]; ok {
				if agent.CurrentWorkload > 0 {
					agent.CurrentWorkload--
				}
				if agent.Status == types.AgentBusy && agent.CurrentWorkload < agent.CapacityMax {
					agent.Status = types.AgentActive
				}
				snap.AgentRegistry[found.AssignedAgentID] = agent
			}
		}
		found.Status = types.WorkPending
		found.AssignedAgentID = ""
		found.ClaimedAt = ""
		found.StartedAt = ""
		found.ProgressPercent = 0
		found.SubStatus = ""
		item = *found
		return nil
	})
	return item, opErr
}

// durationMs computes the elapsed time between two ISO-8601 timestamps,
// returning 0 if either fails to parse (best-effort; the authoritative
// duration lives on the span, not the archived record).
func durationMs(createdAt, completedAt string) int64 {
	start, err1 := parseTimestamp(createdAt)
	end, err2 := parseTimestamp(completedAt)
	if err1 != nil || err2 != nil {
		return 0
	}
	return end.Sub(start).Milliseconds()
}
