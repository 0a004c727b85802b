package tools

import (
	"context"
	"fmt"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/pkg/slotstore"
)

// SlotGetInput are the memory_slot_get parameters.
type SlotGetInput struct {
	Key      string
	Category slotstore.Category
	Scope    ScopeTier
}

// SlotGet implements the memory_slot_get tool: a single slot lookup by
// key, or a category listing, across the requested scope tier(s).
func SlotGet(ctx context.Context, deps *Deps, sessionUserID, agentID string, in SlotGetInput) Result {
	scopes := resolveScopes(sessionUserID, agentID, in.Scope)

	type scoped struct {
		Scope string        `json:"scope"`
		Slots []*slotstore.Slot `json:"slots"`
	}
	var results []scoped

	for _, sc := range scopes {
		var slots []*slotstore.Slot
		var err error
		switch {
		case in.Key != "":
			var slot *slotstore.Slot
			slot, err = deps.Slots.Get(ctx, sc.User, sc.Agent, in.Key)
			if slot != nil {
				slots = []*slotstore.Slot{slot}
			}
		case in.Category != "":
			slots, err = deps.Slots.GetByCategory(ctx, sc.User, sc.Agent, in.Category)
		default:
			slots, err = deps.Slots.GetAll(ctx, sc.User, sc.Agent)
		}
		if err != nil {
			return errResult(memerr.KindStorageUnavailable, "failed to read slots", err)
		}
		results = append(results, scoped{Scope: string(sc.User) + ":" + sc.Agent, Slots: slots})
	}

	total := 0
	for _, r := range results {
		total += len(r.Slots)
	}
	if total == 0 {
		return Result{Summary: "no matching slots found", Details: results}
	}
	return Result{Summary: fmt.Sprintf("found %d slot(s)", total), Details: results}
}
