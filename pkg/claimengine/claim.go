package claimengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// ClaimParams are the inputs to Claim. Set WorkID for a targeted claim;
// leave it empty for next-claim mode, in which case WorkType/Team filter
// the candidate pool.
type ClaimParams struct {
	WorkID          string
	WorkType        string
	Team            string
	Priority        types.Priority
	AgentID         string
	DesiredCount    int
	RequireNonempty bool
}

// Claim is the central operation (§4.4.4): either a targeted claim of one
// pending work_id, or a next-claim scan over the pending pool in priority
// order.
func (e *Engine) Claim(ctx context.Context, p ClaimParams) ([]types.WorkItem, error) {
	const op = "claim_engine.claim"
	if p.DesiredCount <= 0 {
		p.DesiredCount = 1
	}

	attrs := map[string]string{"agent_id": p.AgentID, "work_type": p.WorkType, "team": p.Team}
	if p.WorkID != "" {
		attrs["work_id"] = p.WorkID
	}
	_, done := e.span(ctx, op, attrs)

	var claimed []types.WorkItem
	var opErr error
	defer func() {
		extra := map[string]string{}
		if len(claimed) > 0 {
			extra["claimed_count"] = fmt.Sprint(len(claimed))
		}
		done(opErr, extra)
	}()

	if !nonEmpty(p.AgentID) {
		opErr = workerr.New(op, workerr.InvalidArg, fmt.Errorf("agent_id required"))
		return nil, opErr
	}

	opErr = e.withLock(statestore.Scope{statestore.DocActiveClaims, statestore.DocAgentRegistry}, func(snap *statestore.Snapshot) error {
		agent, found := snap.AgentRegistry[p.AgentID]
		if !found {
			return workerr.New(op, workerr.NotFound, fmt.Errorf("agent_id %q not registered", p.AgentID))
		}
		if agent.Status == types.AgentOffline {
			return workerr.New(op, workerr.InvalidArg, fmt.Errorf("agent %q is offline", p.AgentID))
		}

		remaining := agent.CapacityMax - agent.CurrentWorkload
		if p.DesiredCount > remaining {
			return workerr.New(op, workerr.CapacityExceeded, fmt.Errorf("requested %d exceeds remaining capacity %d", p.DesiredCount, remaining))
		}

		var indices []int
		if p.WorkID != "" {
			idx := findWork(snap.ActiveClaims, p.WorkID)
			if idx < 0 {
				return workerr.New(op, workerr.NotFound, fmt.Errorf("work_id %q not found", p.WorkID))
			}
			if snap.ActiveClaims[idx].Status != types.WorkPending {
				return workerr.New(op, workerr.StateConflict, fmt.Errorf("work_id %q is not pending (status=%s)", p.WorkID, snap.ActiveClaims[idx].Status))
			}
			indices = []int{idx}
		} else {
			indices = candidateIndices(snap.ActiveClaims, p.WorkType, p.Team, p.Priority, p.DesiredCount)
			if len(indices) == 0 && p.RequireNonempty {
				return workerr.New(op, workerr.NoWork, fmt.Errorf("no pending work matched the filter"))
			}
		}

		ts := now()
		for _, idx := range indices {
			snap.ActiveClaims[idx].Status = types.WorkActive
			snap.ActiveClaims[idx].AssignedAgentID = p.AgentID
			snap.ActiveClaims[idx].ClaimedAt = ts
			snap.ActiveClaims[idx].StartedAt = ts
			claimed = append(claimed, snap.ActiveClaims[idx])
		}

		agent.CurrentWorkload += len(indices)
		if agent.CurrentWorkload == agent.CapacityMax {
			agent.Status = types.AgentBusy
		}
		snap.AgentRegistry[p.AgentID] = agent
		return nil
	})

	if opErr != nil {
		return nil, opErr
	}

	// §4.4.4 step 7: one span per claimed item, in addition to the
	// overarching operation span above.
	for _, item := range claimed {
		e.tracer.LogEvent(ctx, op, map[string]string{
			"work_id":   item.WorkID,
			"agent_id":  p.AgentID,
			"priority":  string(item.Priority),
			"team":      item.Team,
			"work_type": item.WorkType,
		})
	}
	return claimed, nil
}

// candidateIndices selects up to desiredCount pending items matching
// workType/team (either filter empty matches anything), ordered by
// priority (critical > high > medium > low), then ascending created_at,
// then ascending work_id — the deterministic tie-break spec §4.4.4
// requires.
func candidateIndices(items []types.WorkItem, workType, team string, priority types.Priority, desiredCount int) []int {
	type cand struct {
		idx  int
		item types.WorkItem
	}
	var cands []cand
	for i, item := range items {
		if item.Status != types.WorkPending {
			continue
		}
		if workType != "" && item.WorkType != workType {
			continue
		}
		if team != "" && item.Team != team {
			continue
		}
		if priority != "" && item.Priority != priority {
			continue
		}
		cands = append(cands, cand{idx: i, item: item})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].item, cands[j].item
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.WorkID < b.WorkID
	})

	if len(cands) > desiredCount {
		cands = cands[:desiredCount]
	}
	indices := make([]int, len(cands))
	for i, c := range cands {
		indices[i] = c.idx
	}
	return indices
}
