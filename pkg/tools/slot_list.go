package tools

import (
	"context"
	"fmt"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/pkg/slotstore"
)

// SlotListInput are the memory_slot_list parameters.
type SlotListInput struct {
	Category slotstore.Category
	Prefix   string
	Scope    ScopeTier
}

// SlotListGroup is one scope's slice of the grouped listing.
type SlotListGroup struct {
	Scope string            `json:"scope"`
	Slots []*slotstore.Slot `json:"slots"`
}

// SlotList implements the memory_slot_list tool: a grouped-per-scope
// listing filtered by category and/or key prefix.
func SlotList(ctx context.Context, deps *Deps, sessionUserID, agentID string, in SlotListInput) Result {
	scopes := resolveScopes(sessionUserID, agentID, in.Scope)

	var groups []SlotListGroup
	total := 0
	for _, sc := range scopes {
		slots, err := deps.Slots.List(ctx, sc.User, sc.Agent, slotstore.ListFilter{
			Category: in.Category,
			Prefix:   in.Prefix,
		})
		if err != nil {
			return errResult(memerr.KindStorageUnavailable, "failed to list slots", err)
		}
		groups = append(groups, SlotListGroup{Scope: sc.User + ":" + sc.Agent, Slots: slots})
		total += len(slots)
	}

	return Result{
		Summary: fmt.Sprintf("listed %d slot(s) across %d scope(s)", total, len(groups)),
		Details: groups,
	}
}
