package claimengine

import (
	"context"
	"fmt"

	"github.com/cuemby/workclaim/pkg/statestore"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// ProgressParams are the inputs to Progress.
type ProgressParams struct {
	WorkID          string
	ProgressPercent int
	SubStatus       string
}

// Progress updates an active item's progress (§4.4.5). A regression in
// progress_percent is accepted only when SubStatus explicitly names the
// downgrade.
func (e *Engine) Progress(ctx context.Context, p ProgressParams) (types.WorkItem, error) {
	const op = "claim_engine.progress"
	_, done := e.span(ctx, op, map[string]string{"work_id": p.WorkID})
	var result types.WorkItem
	var opErr error
	defer func() { done(opErr, nil) }()

	if p.ProgressPercent < 0 || p.ProgressPercent > 100 {
		opErr = workerr.New(op, workerr.InvalidArg, fmt.Errorf("progress_percent %d out of bounds [0,100]", p.ProgressPercent))
		return result, opErr
	}

	opErr = e.withLock(statestore.Scope{statestore.DocActiveClaims}, func(snap *statestore.Snapshot) error {
		idx := findWork(snap.ActiveClaims, p.WorkID)
		if idx < 0 {
			return workerr.New(op, workerr.NotFound, fmt.Errorf("work_id %q not found", p.WorkID))
		}
		item := &snap.ActiveClaims[idx]
		if item.Status.Terminal() {
			return workerr.New(op, workerr.StateConflict, fmt.Errorf("work_id %q is terminal (status=%s)", p.WorkID, item.Status))
		}
		if p.ProgressPercent < item.ProgressPercent && p.SubStatus == "" {
			return workerr.New(op, workerr.InvalidArg, fmt.Errorf("progress regression from %d to %d requires an explicit sub_status", item.ProgressPercent, p.ProgressPercent))
		}
		item.ProgressPercent = p.ProgressPercent
		if p.SubStatus != "" {
			item.SubStatus = p.SubStatus
		}
		result = *item
		return nil
	})
	return result, opErr
}

// Block transitions an active item to blocked (§4.4.6). Idempotent: calling
// Block on an already-blocked item with the same reason succeeds without
// mutating anything further.
func (e *Engine) Block(ctx context.Context, workID, reason string) (types.WorkItem, error) {
	const op = "claim_engine.block"
	_, done := e.span(ctx, op, map[string]string{"work_id": workID})
	var result types.WorkItem
	var opErr error
	defer func() { done(opErr, nil) }()

	opErr = e.withLock(statestore.Scope{statestore.DocActiveClaims}, func(snap *statestore.Snapshot) error {
		idx := findWork(snap.ActiveClaims, workID)
		if idx < 0 {
			return workerr.New(op, workerr.NotFound, fmt.Errorf("work_id %q not found", workID))
		}
		item := &snap.ActiveClaims[idx]
		switch item.Status {
		case types.WorkBlocked:
			// already blocked: idempotent no-op on the state machine.
		case types.WorkActive:
			item.Status = types.WorkBlocked
			item.BlockReason = reason
		default:
			return workerr.New(op, workerr.StateConflict, fmt.Errorf("work_id %q cannot block from status=%s", workID, item.Status))
		}
		result = *item
		return nil
	})
	return result, opErr
}

// Unblock transitions a blocked item back to active (§4.4.6). Idempotent.
func (e *Engine) Unblock(ctx context.Context, workID string) (types.WorkItem, error) {
	const op = "claim_engine.unblock"
	_, done := e.span(ctx, op, map[string]string{"work_id": workID})
	var result types.WorkItem
	var opErr error
	defer func() { done(opErr, nil) }()

	opErr = e.withLock(statestore.Scope{statestore.DocActiveClaims}, func(snap *statestore.Snapshot) error {
		idx := findWork(snap.ActiveClaims, workID)
		if idx < 0 {
			return workerr.New(op, workerr.NotFound, fmt.Errorf("work_id %q not found", workID))
		}
		item := &snap.ActiveClaims[idx]
		switch item.Status {
		case types.WorkActive:
			// already active: idempotent no-op.
		case types.WorkBlocked:
			item.Status = types.WorkActive
			item.BlockReason = ""
		default:
			return workerr.New(op, workerr.StateConflict, fmt.Errorf("work_id %q cannot unblock from status=%s", workID, item.Status))
		}
		result = *item
		return nil
	})
	return result, opErr
}
