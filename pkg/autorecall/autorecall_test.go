package autorecall_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/memcore/internal/scope"
	"github.com/agentmem/memcore/pkg/autorecall"
	"github.com/agentmem/memcore/pkg/embedgateway"
	"github.com/agentmem/memcore/pkg/graphstore"
	"github.com/agentmem/memcore/pkg/slotstore"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

type fakeSlots struct {
	byScope map[string][]*slotstore.Slot
}

func key(user, agent string) string { return user + "|" + agent }

func (f *fakeSlots) Set(ctx context.Context, user, agent string, in slotstore.SetInput) (*slotstore.Slot, error) {
	return nil, nil
}
func (f *fakeSlots) Get(ctx context.Context, user, agent, key string) (*slotstore.Slot, error) {
	return nil, nil
}
func (f *fakeSlots) GetByCategory(ctx context.Context, user, agent string, category slotstore.Category) ([]*slotstore.Slot, error) {
	return nil, nil
}
func (f *fakeSlots) GetAll(ctx context.Context, user, agent string) ([]*slotstore.Slot, error) {
	return f.byScope[key(user, agent)], nil
}
func (f *fakeSlots) List(ctx context.Context, user, agent string, filter slotstore.ListFilter) ([]*slotstore.Slot, error) {
	return nil, nil
}
func (f *fakeSlots) Delete(ctx context.Context, user, agent, key string) (bool, error) {
	return false, nil
}
func (f *fakeSlots) GetCurrentState(ctx context.Context, user, agent string) (map[string]map[string]any, error) {
	return nil, nil
}
func (f *fakeSlots) Count(ctx context.Context, user, agent string) (int, error) { return 0, nil }
func (f *fakeSlots) Close() error                                              { return nil }

type fakeGraph struct {
	entities []*graphstore.Entity
	edges    map[string][]*graphstore.Relationship
}

func (f *fakeGraph) CreateEntity(ctx context.Context, user, agent, name, entityType string, properties map[string]any) (*graphstore.Entity, error) {
	return nil, nil
}
func (f *fakeGraph) GetEntity(ctx context.Context, user, agent, id string) (*graphstore.Entity, error) {
	for _, e := range f.entities {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}
func (f *fakeGraph) ListEntities(ctx context.Context, user, agent string, filter graphstore.EntityFilter) ([]*graphstore.Entity, error) {
	return f.entities, nil
}
func (f *fakeGraph) UpdateEntity(ctx context.Context, user, agent, id, name, entityType string, properties map[string]any) (*graphstore.Entity, error) {
	return nil, nil
}
func (f *fakeGraph) DeleteEntity(ctx context.Context, user, agent, id string) (bool, error) {
	return false, nil
}
func (f *fakeGraph) CreateRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string, weight float64, properties map[string]any) (*graphstore.Relationship, error) {
	return nil, nil
}
func (f *fakeGraph) GetRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string) (*graphstore.Relationship, error) {
	return nil, nil
}
func (f *fakeGraph) GetRelationships(ctx context.Context, user, agent, entityID string, direction graphstore.Direction) ([]*graphstore.Relationship, error) {
	return f.edges[entityID], nil
}
func (f *fakeGraph) DeleteRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string) (bool, error) {
	return false, nil
}
func (f *fakeGraph) TraverseGraph(ctx context.Context, user, agent, start string, maxDepth int) (*graphstore.Traversal, error) {
	return nil, nil
}
func (f *fakeGraph) Close() error { return nil }

type fakeVectors struct {
	hits []vectorgateway.SearchHit
}

func (f *fakeVectors) EnsureCollection(ctx context.Context) error { return nil }
func (f *fakeVectors) Upsert(ctx context.Context, points []vectorgateway.Point) error { return nil }
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

func TestRunMergesFreshestValueAcrossScopes(t *testing.T) {
	private := scope.Resolve("alice", "assistant")
	team := scope.ForTier(private, scope.Team)

	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	slots := &fakeSlots{byScope: map[string][]*slotstore.Slot{
		key(private.User, private.Agent): {
			{Category: "profile", Key: "name", Value: "Alice (stale)", UpdatedAt: older},
		},
		key(team.User, team.Agent): {
			{Category: "profile", Key: "name", Value: "Alice (fresh)", UpdatedAt: newer},
		},
	}}
	graph := &fakeGraph{}
	vectors := &fakeVectors{}
	embedder := embedgateway.New(nil, 8)

	deps := autorecall.Deps{Slots: slots, Graph: graph, Vectors: vectors, Embedder: embedder}
	result := autorecall.Run(context.Background(), deps, autorecall.Event{
		SessionUserID: "alice",
		AgentID:       "assistant",
	})

	// The stale slot still legitimately appears under <recent-updates>
	// (the five newest slots across all scopes), so the freshness merge is
	// checked on the <current-state> section alone.
	start := strings.Index(result, "<current-state>")
	end := strings.Index(result, "</current-state>")
	require.True(t, start >= 0 && end > start, "result has a current-state section")
	currentState := result[start:end]

	assert.Contains(t, currentState, "Alice (fresh)")
	assert.NotContains(t, currentState, "Alice (stale)")
}

func TestRunPrependsWhenNoExistingPrompt(t *testing.T) {
	private := scope.Resolve("alice", "assistant")
	slots := &fakeSlots{byScope: map[string][]*slotstore.Slot{
		key(private.User, private.Agent): {
			{Category: "profile", Key: "name", Value: "Alice", UpdatedAt: time.Now()},
		},
	}}
	deps := autorecall.Deps{Slots: slots, Graph: &fakeGraph{}, Vectors: &fakeVectors{}, Embedder: embedgateway.New(nil, 8)}

	result := autorecall.Run(context.Background(), deps, autorecall.Event{SessionUserID: "alice", AgentID: "assistant"})
	require.NotEmpty(t, result)
	assert.Contains(t, result, "<current-state>")
}

func TestRunSplicesAfterSystemClosingMarker(t *testing.T) {
	private := scope.Resolve("alice", "assistant")
	slots := &fakeSlots{byScope: map[string][]*slotstore.Slot{
		key(private.User, private.Agent): {
			{Category: "profile", Key: "name", Value: "Alice", UpdatedAt: time.Now()},
		},
	}}
	deps := autorecall.Deps{Slots: slots, Graph: &fakeGraph{}, Vectors: &fakeVectors{}, Embedder: embedgateway.New(nil, 8)}

	existing := "<system>base instructions</system>\nrest of prompt"
	result := autorecall.Run(context.Background(), deps, autorecall.Event{
		SessionUserID:        "alice",
		AgentID:              "assistant",
		ExistingSystemPrompt: existing,
	})

	idx := len("<system>base instructions</system>")
	assert.True(t, len(result) > len(existing))
	assert.Equal(t, existing[:idx], result[:idx])
	assert.Contains(t, result, "rest of prompt")
}

func TestRunReturnsExistingPromptWhenNothingToRecall(t *testing.T) {
	deps := autorecall.Deps{Slots: &fakeSlots{}, Graph: &fakeGraph{}, Vectors: &fakeVectors{}, Embedder: embedgateway.New(nil, 8)}
	result := autorecall.Run(context.Background(), deps, autorecall.Event{
		SessionUserID:        "alice",
		AgentID:              "assistant",
		ExistingSystemPrompt: "unchanged",
	})
	assert.Equal(t, "unchanged", result)
}

func TestRunIncludesGraphSummaryWithEdges(t *testing.T) {
	private := scope.Resolve("alice", "assistant")
	a := &graphstore.Entity{ID: "a", Name: "Alice", Type: "person"}
	b := &graphstore.Entity{ID: "b", Name: "Bob", Type: "person"}
	graph := &fakeGraph{
		entities: []*graphstore.Entity{a, b},
		edges:    map[string][]*graphstore.Relationship{"a": {{SourceID: "a", TargetID: "b", RelationType: "knows"}}},
	}
	slots := &fakeSlots{byScope: map[string][]*slotstore.Slot{}}
	deps := autorecall.Deps{Slots: slots, Graph: graph, Vectors: &fakeVectors{}, Embedder: embedgateway.New(nil, 8)}

	_ = private
	result := autorecall.Run(context.Background(), deps, autorecall.Event{SessionUserID: "alice", AgentID: "assistant"})
	assert.Contains(t, result, "<knowledge-graph>")
	assert.Contains(t, result, "Bob")
}

func TestRunDropsLowerPrioritySectionsUnderTokenBudget(t *testing.T) {
	private := scope.Resolve("alice", "assistant")
	a := &graphstore.Entity{ID: "a", Name: "Alice", Type: "person"}
	b := &graphstore.Entity{ID: "b", Name: "Bob", Type: "person"}
	graph := &fakeGraph{
		entities: []*graphstore.Entity{a, b},
		edges:    map[string][]*graphstore.Relationship{"a": {{SourceID: "a", TargetID: "b", RelationType: "knows"}}},
	}
	slots := &fakeSlots{byScope: map[string][]*slotstore.Slot{
		key(private.User, private.Agent): {
			{Category: "profile", Key: "name", Value: "Alice", UpdatedAt: time.Now()},
		},
	}}
	deps := autorecall.Deps{
		Slots:       slots,
		Graph:       graph,
		Vectors:     &fakeVectors{},
		Embedder:    embedgateway.New(nil, 8),
		TokenBudget: 1,
	}

	result := autorecall.Run(context.Background(), deps, autorecall.Event{SessionUserID: "alice", AgentID: "assistant"})
	assert.Contains(t, result, "<current-state>")
	assert.NotContains(t, result, "<knowledge-graph>")
}

func TestRunIncludesSemanticMemoriesAboveThreshold(t *testing.T) {
	vectors := &fakeVectors{hits: []vectorgateway.SearchHit{
		{ID: "1", Score: 0.9, Payload: vectorgateway.Payload{Text: "relevant memory", Namespace: "agent_decisions"}},
		{ID: "2", Score: 0.3, Payload: vectorgateway.Payload{Text: "irrelevant memory", Namespace: "agent_decisions"}},
	}}
	deps := autorecall.Deps{Slots: &fakeSlots{}, Graph: &fakeGraph{}, Vectors: vectors, Embedder: embedgateway.New(nil, 8)}

	result := autorecall.Run(context.Background(), deps, autorecall.Event{
		SessionUserID:     "alice",
		AgentID:           "assistant",
		LatestUserMessage: "what do you know about me?",
	})

	assert.Contains(t, result, "relevant memory")
	assert.NotContains(t, result, "irrelevant memory")
}
