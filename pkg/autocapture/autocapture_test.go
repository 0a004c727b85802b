package autocapture_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/memcore/pkg/autocapture"
	"github.com/agentmem/memcore/pkg/contextwindow"
	"github.com/agentmem/memcore/pkg/embedgateway"
	"github.com/agentmem/memcore/pkg/llmextractor"
	"github.com/agentmem/memcore/pkg/llmprovider"
	"github.com/agentmem/memcore/pkg/slotstore"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

type fakeSlots struct {
	sets     []slotstore.SetInput
	deleted  []string
	state    map[string]map[string]any
}

func (f *fakeSlots) Set(ctx context.Context, user, agent string, in slotstore.SetInput) (*slotstore.Slot, error) {
	f.sets = append(f.sets, in)
	return &slotstore.Slot{User: user, Agent: agent, Key: in.Key, Value: in.Value, Version: 1}, nil
}
func (f *fakeSlots) Get(ctx context.Context, user, agent, key string) (*slotstore.Slot, error) {
	return nil, nil
}
func (f *fakeSlots) GetByCategory(ctx context.Context, user, agent string, category slotstore.Category) ([]*slotstore.Slot, error) {
	return nil, nil
}
func (f *fakeSlots) GetAll(ctx context.Context, user, agent string) ([]*slotstore.Slot, error) {
	return nil, nil
}
func (f *fakeSlots) List(ctx context.Context, user, agent string, filter slotstore.ListFilter) ([]*slotstore.Slot, error) {
	return nil, nil
}
func (f *fakeSlots) Delete(ctx context.Context, user, agent, key string) (bool, error) {
	f.deleted = append(f.deleted, key)
	return true, nil
}
func (f *fakeSlots) GetCurrentState(ctx context.Context, user, agent string) (map[string]map[string]any, error) {
	if f.state == nil {
		return map[string]map[string]any{}, nil
	}
	return f.state, nil
}
func (f *fakeSlots) Count(ctx context.Context, user, agent string) (int, error) { return 0, nil }
func (f *fakeSlots) Close() error                                              { return nil }

type fakeVectors struct {
	upserted []vectorgateway.Point
	hits     []vectorgateway.SearchHit
}

func (f *fakeVectors) EnsureCollection(ctx context.Context) error { return nil }
func (f *fakeVectors) Upsert(ctx context.Context, points []vectorgateway.Point) error {
	f.upserted = append(f.upserted, points...)
	return nil
}
func (f *fakeVectors) Search(ctx context.Context, vector []float32, opts vectorgateway.SearchOptions) ([]vectorgateway.SearchHit, error) {
	return f.hits, nil
}
func (f *fakeVectors) Get(ctx context.Context, id string) (*vectorgateway.Point, error) {
	return nil, nil
}
func (f *fakeVectors) DeleteByFilter(ctx context.Context, filter vectorgateway.Filter) error {
	return nil
}
func (f *fakeVectors) Close() error { return nil }

type fakeLLM struct{ response string }

func (f *fakeLLM) Generate(ctx context.Context, system string, messages []llmprovider.Message) (string, error) {
	return f.response, nil
}
func (f *fakeLLM) Close() error { return nil }

func newDeps(response string) (autocapture.Deps, *fakeSlots, *fakeVectors) {
	slots := &fakeSlots{}
	vectors := &fakeVectors{}
	extractor := llmextractor.New(&fakeLLM{response: response}, 0.7)
	embedder := embedgateway.New(nil, 8)

	deps := autocapture.Deps{
		Slots:         slots,
		Vectors:       vectors,
		Embedder:      embedder,
		Extractor:     extractor,
		MinConfidence: 0.7,
		DupThreshold:  0.95,
	}
	return deps, slots, vectors
}

func TestRunAppliesUpdatesRemovalsAndMemories(t *testing.T) {
	response := `{
		"slot_updates": [{"key": "profile.name", "value": "Alice", "confidence": 0.9, "category": "profile"}],
		"slot_removals": [{"key": "project.current_task", "reason": "done"}],
		"memories": [{"text": "Alice likes dark mode", "namespace": "user_profile", "confidence": 0.85}]
	}`
	deps, slots, vectors := newDeps(response)

	autocapture.Run(context.Background(), deps, autocapture.Event{
		SessionUserID: "alice",
		AgentID:       "assistant",
		Messages: []contextwindow.Message{
			{Role: "user", Content: "My name is Alice and I like dark mode."},
		},
	})

	require.Len(t, slots.sets, 1)
	assert.Equal(t, "profile.name", slots.sets[0].Key)
	require.Len(t, slots.deleted, 1)
	assert.Equal(t, "project.current_task", slots.deleted[0])
	require.Len(t, vectors.upserted, 1)
	assert.Equal(t, "Alice likes dark mode", vectors.upserted[0].Payload.Text)
}

func TestRunSkipsBlockedAgent(t *testing.T) {
	deps, slots, vectors := newDeps(`{"slot_updates":[],"slot_removals":[],"memories":[]}`)

	autocapture.Run(context.Background(), deps, autocapture.Event{
		SessionUserID: "alice",
		AgentID:       "benchmark",
		Messages:      []contextwindow.Message{{Role: "user", Content: "anything"}},
	})

	assert.Empty(t, slots.sets)
	assert.Empty(t, vectors.upserted)
}

func TestRunSkipsSelfTriggerLoop(t *testing.T) {
	deps, slots, _ := newDeps(`{"slot_updates":[{"key":"a","value":"b","confidence":0.9,"category":"custom"}],"slot_removals":[],"memories":[]}`)

	autocapture.Run(context.Background(), deps, autocapture.Event{
		SessionUserID: "alice",
		AgentID:       "assistant",
		Messages:      []contextwindow.Message{{Role: "assistant", Content: "[AutoCapture] Memory stored successfully"}},
	})

	assert.Empty(t, slots.sets)
}

func TestRunSkipsNoiseText(t *testing.T) {
	deps, slots, _ := newDeps(`{"slot_updates":[{"key":"a","value":"b","confidence":0.9,"category":"custom"}],"slot_removals":[],"memories":[]}`)

	autocapture.Run(context.Background(), deps, autocapture.Event{
		SessionUserID: "alice",
		AgentID:       "assistant",
		Messages:      []contextwindow.Message{{Role: "user", Content: "thanks"}},
	})

	assert.Empty(t, slots.sets)
}
