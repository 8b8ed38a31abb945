package claimengine

import (
	"context"
	"fmt"

	"github.com/cuemby/workclaim/pkg/clock"
	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// CreateWorkParams are the inputs to CreateWork.
type CreateWorkParams struct {
	WorkType          string
	Description       string
	Priority          types.Priority
	Team              string
	EstimatedDuration string
}

// CreateWork mints a pending WorkItem (§4.4.3).
func (e *Engine) CreateWork(ctx context.Context, p CreateWorkParams) (types.WorkItem, error) {
	const op = "claim_engine.create_work"
	_, done := e.span(ctx, op, map[string]string{"work_type": p.WorkType, "team": p.Team, "priority": string(p.Priority)})
	var result types.WorkItem
	var opErr error
	defer func() { done(opErr, map[string]string{"work_id": result.WorkID}) }()

	if !nonEmpty(p.WorkType) || !nonEmpty(p.Description) || !nonEmpty(p.Team) || !p.Priority.Valid() {
		opErr = workerr.New(op, workerr.InvalidArg, fmt.Errorf("work_type, description, team required and priority must be one of critical|high|medium|low"))
		return result, opErr
	}

	opErr = e.withLock(statestore.Scope{statestore.DocActiveClaims}, func(snap *statestore.Snapshot) error {
		item := types.WorkItem{
			WorkID:            clock.NewEntityID("work"),
			WorkType:          p.WorkType,
			Description:       p.Description,
			Priority:          p.Priority,
			Team:              p.Team,
			Status:            types.WorkPending,
			ProgressPercent:   0,
			CreatedAt:         now(),
			TraceID:           clock.NewTraceID(),
			EstimatedDuration: p.EstimatedDuration,
		}
		snap.ActiveClaims = append(snap.ActiveClaims, item)
		result = item
		return nil
	})
	return result, opErr
}
