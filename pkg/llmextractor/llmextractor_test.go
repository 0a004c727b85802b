package llmextractor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/memcore/pkg/llmextractor"
	"github.com/agentmem/memcore/pkg/llmprovider"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, system string, messages []llmprovider.Message) (string, error) {
	return f.response, f.err
}
func (f *fakeLLM) Close() error { return nil }

func TestExtractFiltersLowConfidenceUpdatesAndMemories(t *testing.T) {
	llm := &fakeLLM{response: `{
		"slot_updates": [
			{"key": "profile.name", "value": "Alice", "confidence": 0.9, "category": "profile"},
			{"key": "profile.mood", "value": "curious", "confidence": 0.2, "category": "profile"}
		],
		"slot_removals": [{"key": "project.current_task", "reason": "task completed"}],
		"memories": [
			{"text": "Alice prefers dark mode", "namespace": "user_profile", "confidence": 0.8},
			{"text": "guess", "namespace": "user_profile", "confidence": 0.1}
		]
	}`}
	extractor := llmextractor.New(llm, 0.7)

	result := extractor.Extract(context.Background(), "conversation text", map[string]map[string]any{})

	require.Len(t, result.SlotUpdates, 1)
	assert.Equal(t, "profile.name", result.SlotUpdates[0].Key)

	require.Len(t, result.Memories, 1)
	assert.Equal(t, "Alice prefers dark mode", result.Memories[0].Text)

	require.Len(t, result.SlotRemovals, 1)
	assert.Equal(t, "project.current_task", result.SlotRemovals[0].Key)
}

func TestExtractReturnsEmptyOnLLMFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("boom")}
	extractor := llmextractor.New(llm, 0.7)

	result := extractor.Extract(context.Background(), "text", nil)
	assert.Empty(t, result.SlotUpdates)
	assert.Empty(t, result.SlotRemovals)
	assert.Empty(t, result.Memories)
}

func TestExtractReturnsEmptyOnUnparsableResponse(t *testing.T) {
	llm := &fakeLLM{response: "not json at all"}
	extractor := llmextractor.New(llm, 0.7)

	result := extractor.Extract(context.Background(), "text", nil)
	assert.Empty(t, result.SlotUpdates)
	assert.Empty(t, result.SlotRemovals)
	assert.Empty(t, result.Memories)
}

func TestExtractToleratesFencedCodeBlock(t *testing.T) {
	llm := &fakeLLM{response: "```json\n{\"slot_updates\":[],\"slot_removals\":[],\"memories\":[{\"text\":\"note\",\"namespace\":\"agent_decisions\",\"confidence\":0.95}]}\n```"}
	extractor := llmextractor.New(llm, 0.7)

	result := extractor.Extract(context.Background(), "text", nil)
	require.Len(t, result.Memories, 1)
	assert.Equal(t, "note", result.Memories[0].Text)
}

func TestSlotRemovalsAreNotConfidenceFiltered(t *testing.T) {
	// slot_removals carries no confidence field at all; the extractor
	// must pass every removal through regardless.
	llm := &fakeLLM{response: `{"slot_updates":[],"slot_removals":[{"key":"a","reason":"r1"},{"key":"b","reason":"r2"}],"memories":[]}`}
	extractor := llmextractor.New(llm, 0.99)

	result := extractor.Extract(context.Background(), "text", nil)
	assert.Len(t, result.SlotRemovals, 2)
}
