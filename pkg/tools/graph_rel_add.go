package tools

import (
	"context"
	"fmt"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/internal/scope"
)

// GraphRelAddInput are the memory_graph_rel_add parameters.
type GraphRelAddInput struct {
	SourceID     string
	TargetID     string
	RelationType string
	Weight       float64
	Properties   map[string]any
}

// GraphRelAdd implements the memory_graph_rel_add tool: create-or-upsert
// on the unique (source, target, relation_type) triple.
func GraphRelAdd(ctx context.Context, deps *Deps, sessionUserID, agentID string, in GraphRelAddInput) Result {
	if in.SourceID == "" || in.TargetID == "" || in.RelationType == "" {
		return errResult(memerr.KindValidation, "source_id, target_id, and relation_type are required", memerr.ErrInvalidInput)
	}
	sc := scope.Resolve(sessionUserID, agentID)

	rel, err := deps.Graph.CreateRelationship(ctx, sc.User, sc.Agent, in.SourceID, in.TargetID, in.RelationType, in.Weight, in.Properties)
	if err != nil {
		if e, ok := memerr.As(err); ok && e.Kind == memerr.KindValidation {
			return errResult(memerr.KindValidation, "both endpoints must exist in scope", err)
		}
		return errResult(memerr.KindStorageUnavailable, "failed to create relationship", err)
	}
	return Result{Summary: fmt.Sprintf("relationship %s --%s--> %s", in.SourceID, in.RelationType, in.TargetID), Details: rel}
}
