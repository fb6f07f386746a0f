package orchestrator

import (
	"context"
	"fmt"

	"github.com/plotpilot/server/internal/assistant/model"
	logx "github.com/plotpilot/server/pkg/logger"
)

// Confirm resolves a parked write action. The pending record terminates by
// exactly one of executed, cancelled, or expiry; once resolved it is gone and
// a repeat confirm yields not_found. Deletion happens before execution via an
// atomic claim so two racing confirms cannot both execute.
func (o *Orchestrator) Confirm(ctx context.Context, farmID, blockID, actionID string, approved bool) (*model.ConfirmResult, error) {
	action, err := o.pending.Load(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("load pending action: %w", err)
	}
	if action == nil {
		return notFoundResult(), nil
	}

	// A confirm scoped to the wrong farm/block must not see, resolve, or
	// destroy someone else's action.
	if action.FarmID != farmID || action.BlockID != blockID {
		logx.Warn().
			Str("action_id", actionID).
			Str("farm_id", farmID).
			Str("block_id", blockID).
			Msg("confirm rejected: action bound to a different farm/block")
		return notFoundResult(), nil
	}

	claimed, err := o.pending.Claim(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("claim pending action: %w", err)
	}
	if claimed == nil {
		// Lost the race against another confirm or the TTL.
		return notFoundResult(), nil
	}

	if !approved {
		logx.Info().Str("action_id", actionID).Str("tool", claimed.ToolName).Msg("pending action denied")
		return &model.ConfirmResult{
			Status:  model.ConfirmCancelled,
			Message: fmt.Sprintf("Cancelled: %s.", claimed.Description),
		}, nil
	}

	result, execErr := o.executor.ExecuteWrite(ctx, claimed.FarmID, claimed.BlockID, claimed.ToolName, claimed.ToolInput)
	if execErr != nil {
		// The confirmation itself succeeded even though the device call did
		// not, so the status stays "executed" with the failure embedded.
		logx.Error().Err(execErr).Str("action_id", actionID).Str("tool", claimed.ToolName).Msg("confirmed action failed at the device hub")
		return &model.ConfirmResult{
			Status:  model.ConfirmExecuted,
			Message: fmt.Sprintf("Approved: %s, but the device call failed: %v", claimed.Description, execErr),
			Result:  map[string]string{"error": execErr.Error()},
		}, nil
	}

	logx.Info().Str("action_id", actionID).Str("tool", claimed.ToolName).Msg("pending action executed")
	return &model.ConfirmResult{
		Status:  model.ConfirmExecuted,
		Message: fmt.Sprintf("Done: %s.", claimed.Description),
		Result:  result,
	}, nil
}

func notFoundResult() *model.ConfirmResult {
	return &model.ConfirmResult{
		Status:  model.ConfirmNotFound,
		Message: "This action was not found. It may have expired (actions wait at most 5 minutes) or was already resolved.",
	}
}
