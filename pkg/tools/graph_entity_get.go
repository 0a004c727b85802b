package tools

import (
	"context"
	"fmt"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/internal/scope"
	"github.com/agentmem/memcore/pkg/graphstore"
)

// GraphEntityGetInput are the memory_graph_entity_get parameters. Either
// ID, or Type/Name (used as a filter), may be set.
type GraphEntityGetInput struct {
	ID   string
	Type string
	Name string
}

// GraphEntityGet implements the memory_graph_entity_get tool.
func GraphEntityGet(ctx context.Context, deps *Deps, sessionUserID, agentID string, in GraphEntityGetInput) Result {
	sc := scope.Resolve(sessionUserID, agentID)

	if in.ID != "" {
		entity, err := deps.Graph.GetEntity(ctx, sc.User, sc.Agent, in.ID)
		if err != nil {
			return errResult(memerr.KindStorageUnavailable, "failed to read entity", err)
		}
		if entity == nil {
			return Result{Summary: "no such entity", Details: nil}
		}
		return Result{Summary: fmt.Sprintf("found entity %q", entity.Name), Details: entity}
	}

	entities, err := deps.Graph.ListEntities(ctx, sc.User, sc.Agent, graphstore.EntityFilter{
		Type:        in.Type,
		NameContain: in.Name,
	})
	if err != nil {
		return errResult(memerr.KindStorageUnavailable, "failed to list entities", err)
	}
	return Result{Summary: fmt.Sprintf("found %d entit(ies)", len(entities)), Details: entities}
}
