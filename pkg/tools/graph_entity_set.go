package tools

import (
	"context"
	"fmt"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/internal/scope"
)

// GraphEntitySetInput are the memory_graph_entity_set parameters. ID is
// optional: empty means create, non-empty means update.
type GraphEntitySetInput struct {
	ID         string
	Name       string
	Type       string
	Properties map[string]any
}

// GraphEntitySet implements the memory_graph_entity_set tool.
func GraphEntitySet(ctx context.Context, deps *Deps, sessionUserID, agentID string, in GraphEntitySetInput) Result {
	if in.Name == "" || in.Type == "" {
		return errResult(memerr.KindValidation, "name and type are required", memerr.ErrInvalidInput)
	}
	sc := scope.Resolve(sessionUserID, agentID)

	if in.ID == "" {
		entity, err := deps.Graph.CreateEntity(ctx, sc.User, sc.Agent, in.Name, in.Type, in.Properties)
		if err != nil {
			return errResult(memerr.KindStorageUnavailable, "failed to create entity", err)
		}
		return Result{Summary: fmt.Sprintf("created entity %q", entity.Name), Details: entity}
	}

	entity, err := deps.Graph.UpdateEntity(ctx, sc.User, sc.Agent, in.ID, in.Name, in.Type, in.Properties)
	if err != nil {
		return errResult(memerr.KindStorageUnavailable, "failed to update entity", err)
	}
	if entity == nil {
		return errResult(memerr.KindNotFound, "no such entity", memerr.ErrNotFound)
	}
	return Result{Summary: fmt.Sprintf("updated entity %q", entity.Name), Details: entity}
}
