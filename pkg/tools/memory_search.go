package tools

import (
	"context"
	"fmt"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

// MemorySearchInput are the memory_search parameters.
type MemorySearchInput struct {
	Query       string
	Limit       int
	Namespace   string
	SessionID   string
	UserID      string
	MinScore    float64
	SourceAgent string
}

// MemorySearch implements the memory_search tool: an embed-then-filtered
// k-NN search through the vector gateway.
func MemorySearch(ctx context.Context, deps *Deps, sessionUserID, agentID string, in MemorySearchInput) Result {
	if in.Query == "" {
		return errResult(memerr.KindValidation, "query is required", memerr.ErrInvalidInput)
	}

	limit := in.Limit
	switch {
	case limit <= 0:
		limit = 5
	case limit > 20:
		limit = 20
	}
	minScore := in.MinScore
	if minScore == 0 {
		minScore = 0.7
	}

	var must []vectorgateway.Condition
	if in.Namespace != "" {
		must = append(must, vectorgateway.Match("namespace", in.Namespace))
	}
	if in.SessionID != "" {
		must = append(must, vectorgateway.Match("sessionId", in.SessionID))
	}
	userID := in.UserID
	if userID == "" {
		userID = sessionUserID
	}
	if userID != "" {
		must = append(must, vectorgateway.Match("userId", userID))
	}
	if in.SourceAgent != "" {
		must = append(must, vectorgateway.Match("source_agent", in.SourceAgent))
	}

	vector := deps.Embedder.Embed(ctx, in.Query)
	hits, err := deps.Vectors.Search(ctx, vector, vectorgateway.SearchOptions{
		Limit:  limit,
		Filter: vectorgateway.Filter{Must: must},
	})
	if err != nil {
		return errResult(memerr.KindRemoteTransient, "search failed", err)
	}

	kept := make([]vectorgateway.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= minScore {
			kept = append(kept, h)
		}
	}

	return Result{Summary: fmt.Sprintf("found %d matching memor(y/ies)", len(kept)), Details: kept}
}
