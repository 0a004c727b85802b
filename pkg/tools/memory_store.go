package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmem/memcore/internal/idgen"
	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/pkg/dedupe"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

const maxMemoryStoreTextLen = 10000

// MemoryStoreInput are the memory_store parameters.
type MemoryStoreInput struct {
	Text      string
	Namespace string
	SessionID string
	UserID    string
	Metadata  map[string]any
}

// MemoryStore implements the memory_store tool: embed, dedupe-check
// against the target namespace, then insert or upsert-in-place.
func MemoryStore(ctx context.Context, deps *Deps, sessionUserID, agentID string, in MemoryStoreInput) Result {
	if in.Text == "" {
		return errResult(memerr.KindValidation, "text is required", memerr.ErrInvalidInput)
	}
	if len(in.Text) > maxMemoryStoreTextLen {
		return errResult(memerr.KindValidation, "text exceeds 10000 characters", memerr.ErrInvalidInput)
	}

	namespace := in.Namespace
	if namespace == "" {
		namespace = "agent_decisions"
	}
	userID := in.UserID
	if userID == "" {
		userID = sessionUserID
	}

	vector := deps.Embedder.Embed(ctx, in.Text)

	hits, err := deps.Vectors.Search(ctx, vector, vectorgateway.SearchOptions{
		Limit: 5,
		Filter: vectorgateway.Filter{Must: []vectorgateway.Condition{
			vectorgateway.Match("namespace", namespace),
			vectorgateway.Match("userId", userID),
		}},
	})
	if err != nil {
		return errResult(memerr.KindRemoteTransient, "duplicate check failed", err)
	}

	candidates := make([]dedupe.Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, dedupe.Candidate{ID: h.ID, Score: h.Score, Text: h.Payload.Text})
	}

	now := time.Now()
	payload := vectorgateway.Payload{
		Text:        in.Text,
		Namespace:   namespace,
		SourceAgent: agentID,
		SourceType:  "tool_call",
		UserID:      userID,
		SessionID:   in.SessionID,
		Timestamp:   now,
		UpdatedAt:   now,
		Metadata:    in.Metadata,
	}

	id := dedupe.FindDuplicate(candidates, dedupe.DefaultThreshold)
	summary := "stored new memory"
	if id == "" {
		id = idgen.New()
	} else {
		summary = "updated existing memory (duplicate detected)"
	}

	if err := deps.Vectors.Upsert(ctx, []vectorgateway.Point{{ID: id, Vector: vector, Payload: payload}}); err != nil {
		return errResult(memerr.KindRemoteTransient, "store failed", err)
	}

	return Result{Summary: fmt.Sprintf("%s (id=%s)", summary, id), Details: map[string]any{"id": id, "namespace": namespace}}
}
