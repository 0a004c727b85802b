package tools

import (
	"context"
	"fmt"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/internal/scope"
	"github.com/agentmem/memcore/pkg/graphstore"
)

// GraphSearchInput are the memory_graph_search parameters.
type GraphSearchInput struct {
	EntityID     string
	Depth        int
	RelationType string
}

// GraphSearch implements the memory_graph_search tool: a bounded BFS
// from entity_id, depth clamped to [1,3] (default 2).
func GraphSearch(ctx context.Context, deps *Deps, sessionUserID, agentID string, in GraphSearchInput) Result {
	if in.EntityID == "" {
		return errResult(memerr.KindValidation, "entity_id is required", memerr.ErrInvalidInput)
	}
	depth := in.Depth
	switch {
	case depth <= 0:
		depth = 2
	case depth > 3:
		depth = 3
	}

	sc := scope.Resolve(sessionUserID, agentID)
	traversal, err := deps.Graph.TraverseGraph(ctx, sc.User, sc.Agent, in.EntityID, depth)
	if err != nil {
		return errResult(memerr.KindStorageUnavailable, "traversal failed", err)
	}

	edges := traversal.Edges
	if in.RelationType != "" {
		filtered := make([]*graphstore.Relationship, 0, len(edges))
		for _, e := range edges {
			if e.RelationType == in.RelationType {
				filtered = append(filtered, e)
			}
		}
		edges = filtered
	}

	return Result{
		Summary: fmt.Sprintf("visited %d entit(ies), %d relationship(s)", len(traversal.Entities), len(edges)),
		Details: map[string]any{"entities": traversal.Entities, "relationships": edges},
	}
}
