package tools

import (
	"context"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/internal/scope"
)

// GraphRelRemoveInput are the memory_graph_rel_remove parameters: the
// full (SourceID, TargetID, RelationType) triple. The spec's id-only
// path is not accepted here; see DESIGN.md for why.
type GraphRelRemoveInput struct {
	SourceID     string
	TargetID     string
	RelationType string
}

// GraphRelRemove implements the memory_graph_rel_remove tool.
func GraphRelRemove(ctx context.Context, deps *Deps, sessionUserID, agentID string, in GraphRelRemoveInput) Result {
	if in.SourceID == "" || in.TargetID == "" || in.RelationType == "" {
		return errResult(memerr.KindValidation, "source_id, target_id, and relation_type are required", memerr.ErrInvalidInput)
	}
	sc := scope.Resolve(sessionUserID, agentID)

	deleted, err := deps.Graph.DeleteRelationship(ctx, sc.User, sc.Agent, in.SourceID, in.TargetID, in.RelationType)
	if err != nil {
		return errResult(memerr.KindStorageUnavailable, "failed to delete relationship", err)
	}
	if deleted {
		return Result{Summary: "relationship removed", Details: true}
	}
	return Result{Summary: "no such relationship", Details: false}
}
