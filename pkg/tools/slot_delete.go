package tools

import (
	"context"

	"github.com/agentmem/memcore/internal/memerr"
)

// SlotDeleteInput are the memory_slot_delete parameters.
type SlotDeleteInput struct {
	Key   string
	Scope ScopeTier
}

// SlotDelete implements the memory_slot_delete tool.
func SlotDelete(ctx context.Context, deps *Deps, sessionUserID, agentID string, in SlotDeleteInput) Result {
	if in.Key == "" {
		return errResult(memerr.KindValidation, "key is required", memerr.ErrInvalidInput)
	}

	sc := resolveScopes(sessionUserID, agentID, in.Scope)[0]
	deleted, err := deps.Slots.Delete(ctx, sc.User, sc.Agent, in.Key)
	if err != nil {
		return errResult(memerr.KindStorageUnavailable, "failed to delete slot", err)
	}

	if deleted {
		return Result{Summary: "slot deleted", Details: true}
	}
	return Result{Summary: "no such slot", Details: false}
}
