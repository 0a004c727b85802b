package tools

import (
	"context"
	"fmt"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/pkg/slotstore"
)

// SlotSetInput are the memory_slot_set parameters.
type SlotSetInput struct {
	Key      string
	Value    any
	Category slotstore.Category
	Source   slotstore.Source
	Scope    ScopeTier
}

// SlotSet implements the memory_slot_set tool: an upsert via the slot
// store's versioned Set path.
func SlotSet(ctx context.Context, deps *Deps, sessionUserID, agentID string, in SlotSetInput) Result {
	if in.Key == "" {
		return errResult(memerr.KindValidation, "key is required", memerr.ErrInvalidInput)
	}
	if in.Value == nil {
		return errResult(memerr.KindValidation, "value is required", memerr.ErrInvalidInput)
	}

	scopes := resolveScopes(sessionUserID, agentID, in.Scope)
	sc := scopes[0]

	source := in.Source
	if source == "" {
		source = slotstore.SourceTool
	}

	slot, err := deps.Slots.Set(ctx, sc.User, sc.Agent, slotstore.SetInput{
		Key:      in.Key,
		Value:    in.Value,
		Category: in.Category,
		Source:   source,
	})
	if err != nil {
		if e, ok := memerr.As(err); ok && e.Kind == memerr.KindValidation {
			return errResult(memerr.KindValidation, e.Err.Error(), err)
		}
		return errResult(memerr.KindStorageUnavailable, "failed to write slot", err)
	}

	return Result{
		Summary: fmt.Sprintf("set %s to version %d", slot.Key, slot.Version),
		Details: slot,
	}
}
