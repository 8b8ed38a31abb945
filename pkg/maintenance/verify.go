package maintenance

import (
	"fmt"

	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
)

// invariantViolation is one concrete breach found by checkInvariants.
type invariantViolation struct {
	tag    string
	detail string
}

// checkInvariants walks a snapshot and checks every invariant that is
// decidable from state alone (I1, I2, I4, A1, A2, A3 — the §3/§9 per-document
// invariants; P1-P5 restate the same constraints over active-claims and are
// covered by the same checks). I3, P6, P7, and P8 require the span log's
// history rather than a point-in-time snapshot and are left to an auditor
// reading the span log directly; reality_verify never auto-repairs any of
// these in any case.
func checkInvariants(snap *statestore.Snapshot) []invariantViolation {
	var violations []invariantViolation

	claimants := map[string]int{}
	workloadByAgent := map[string]int{}

	for _, w := range snap.ActiveClaims {
		if w.Status == types.WorkActive || w.Status == types.WorkBlocked {
			claimants[w.WorkID]++
			workloadByAgent[w.AssignedAgentID]++
		}

		if w.Status == types.WorkActive {
			if w.AssignedAgentID == "" {
				violations = append(violations, invariantViolation{"I2", fmt.Sprintf("work_id=%s status=active has no assigned_agent_id", w.WorkID)})
			} else if agent, ok := snap.AgentRegistry[w.AssignedAgentID]; !ok {
				violations = append(violations, invariantViolation{"I2", fmt.Sprintf("work_id=%s assigned to unregistered agent %s", w.WorkID, w.AssignedAgentID)})
			} else if agent.Status == types.AgentOffline {
				violations = append(violations, invariantViolation{"I2", fmt.Sprintf("work_id=%s assigned to offline agent %s", w.WorkID, w.AssignedAgentID)})
			}
		}

		if w.ProgressPercent < 0 || w.ProgressPercent > 100 {
			violations = append(violations, invariantViolation{"I4", fmt.Sprintf("work_id=%s progress_percent=%d out of bounds", w.WorkID, w.ProgressPercent)})
		}
		if w.Status == types.WorkCompleted && w.ProgressPercent != 100 {
			violations = append(violations, invariantViolation{"I4", fmt.Sprintf("work_id=%s status=completed but progress_percent=%d", w.WorkID, w.ProgressPercent)})
		}
	}

	for id, count := range claimants {
		if count > 1 {
			violations = append(violations, invariantViolation{"I1", fmt.Sprintf("work_id=%s has %d active/blocked claimants", id, count)})
		}
	}

	for id, agent := range snap.AgentRegistry {
		if agent.CurrentWorkload < 0 || agent.CurrentWorkload > agent.CapacityMax {
			violations = append(violations, invariantViolation{"A1", fmt.Sprintf("agent_id=%s current_workload=%d capacity_max=%d", id, agent.CurrentWorkload, agent.CapacityMax)})
		}
		if want := workloadByAgent[id]; agent.CurrentWorkload != want {
			violations = append(violations, invariantViolation{"A2", fmt.Sprintf("agent_id=%s current_workload=%d but %d active/blocked items assigned", id, agent.CurrentWorkload, want)})
		}
		if agent.Status == types.AgentOffline && agent.CurrentWorkload != 0 {
			violations = append(violations, invariantViolation{"A3", fmt.Sprintf("agent_id=%s status=offline but current_workload=%d", id, agent.CurrentWorkload)})
		}
	}

	return violations
}
