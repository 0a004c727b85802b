package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmem/memcore/internal/idgen"
	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/internal/scope"
	"github.com/agentmem/memcore/pkg/dedupe"
	"github.com/agentmem/memcore/pkg/slotstore"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

// MemoryAutoCaptureInput are the memory_auto_capture parameters.
type MemoryAutoCaptureInput struct {
	Text   string
	UseLLM bool
}

// MemoryAutoCapture implements the memory_auto_capture tool: an
// explicit, tool-invoked run of extraction against caller-supplied text,
// bypassing AutoCapture's noise filter and re-entrancy guard since the
// caller has already decided this text is worth capturing.
func MemoryAutoCapture(ctx context.Context, deps *Deps, sessionUserID, agentID string, in MemoryAutoCaptureInput) Result {
	if in.Text == "" {
		return errResult(memerr.KindValidation, "text is required", memerr.ErrInvalidInput)
	}
	sc := scope.Resolve(sessionUserID, agentID)

	if !in.UseLLM {
		id, err := storeAsMemory(ctx, deps, sc, agentID, in.Text)
		if err != nil {
			return errResult(memerr.KindRemoteTransient, "store failed", err)
		}
		return Result{Summary: "stored 1 memory (no extraction)", Details: map[string]any{"memoryIds": []string{id}}}
	}

	if deps.Extractor == nil {
		return errResult(memerr.KindExtractionFailure, "no extractor configured", memerr.ErrExtractionFailed)
	}

	currentSlots, err := deps.Slots.GetCurrentState(ctx, sc.User, sc.Agent)
	if err != nil {
		return errResult(memerr.KindStorageUnavailable, "failed to read current slots", err)
	}

	result := deps.Extractor.Extract(ctx, in.Text, currentSlots)

	removed := 0
	for _, r := range result.SlotRemovals {
		if ok, err := deps.Slots.Delete(ctx, sc.User, sc.Agent, r.Key); err == nil && ok {
			removed++
		}
	}

	updated := 0
	for _, u := range result.SlotUpdates {
		if u.Confidence < deps.MinConfidence {
			continue
		}
		if _, err := deps.Slots.Set(ctx, sc.User, sc.Agent, slotstore.SetInput{
			Key:      u.Key,
			Value:    u.Value,
			Category: slotstore.Category(u.Category),
			Source:   slotstore.SourceAutoCapture,
		}); err == nil {
			updated++
		}
	}

	var memoryIDs []string
	for _, m := range result.Memories {
		id, err := storeAsMemory(ctx, deps, sc, agentID, m.Text)
		if err == nil {
			memoryIDs = append(memoryIDs, id)
		}
	}

	return Result{
		Summary: fmt.Sprintf("extracted %d slot update(s), %d removal(s), %d memor(y/ies)", updated, removed, len(memoryIDs)),
		Details: map[string]any{"slotUpdates": updated, "slotRemovals": removed, "memoryIds": memoryIDs},
	}
}

func storeAsMemory(ctx context.Context, deps *Deps, sc scope.Key, agentID, text string) (string, error) {
	vector := deps.Embedder.Embed(ctx, text)
	hits, err := deps.Vectors.Search(ctx, vector, vectorgateway.SearchOptions{
		Limit: 5,
		Filter: vectorgateway.Filter{Must: []vectorgateway.Condition{
			vectorgateway.Match("userId", sc.User),
		}},
	})
	if err != nil {
		return "", err
	}
	candidates := make([]dedupe.Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, dedupe.Candidate{ID: h.ID, Score: h.Score, Text: h.Payload.Text})
	}

	id := dedupe.FindDuplicate(candidates, deps.DupThreshold)
	if id == "" {
		id = idgen.New()
	}

	now := time.Now()
	payload := vectorgateway.Payload{
		Text:        text,
		Namespace:   "agent_decisions",
		SourceAgent: agentID,
		SourceType:  "tool_call",
		UserID:      sc.User,
		Timestamp:   now,
		UpdatedAt:   now,
	}
	if err := deps.Vectors.Upsert(ctx, []vectorgateway.Point{{ID: id, Vector: vector, Payload: payload}}); err != nil {
		return "", err
	}
	return id, nil
}
