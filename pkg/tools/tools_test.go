package tools_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/memcore/internal/sqlstore"
	"github.com/agentmem/memcore/pkg/embedgateway"
	"github.com/agentmem/memcore/pkg/graphstore"
	graphsqlite "github.com/agentmem/memcore/pkg/graphstore/sqlite"
	slotsqlite "github.com/agentmem/memcore/pkg/slotstore/sqlite"
	"github.com/agentmem/memcore/pkg/tools"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

type fakeVectors struct {
	points map[string]vectorgateway.Point
}

func newFakeVectors() *fakeVectors { return &fakeVectors{points: map[string]vectorgateway.Point{}} }

func (f *fakeVectors) EnsureCollection(ctx context.Context) error { return nil }
func (f *fakeVectors) Upsert(ctx context.Context, points []vectorgateway.Point) error {
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}
func (f *fakeVectors) Search(ctx context.Context, vector []float32, opts vectorgateway.SearchOptions) ([]vectorgateway.SearchHit, error) {
	var hits []vectorgateway.SearchHit
	for id, p := range f.points {
		score := embedgateway.CosineSimilarity(vector, p.Vector)
		hits = append(hits, vectorgateway.SearchHit{ID: id, Score: score, Payload: p.Payload})
	}
	return hits, nil
}
func (f *fakeVectors) Get(ctx context.Context, id string) (*vectorgateway.Point, error) {
	if p, ok := f.points[id]; ok {
		return &p, nil
	}
	return nil, nil
}
func (f *fakeVectors) DeleteByFilter(ctx context.Context, filter vectorgateway.Filter) error { return nil }
func (f *fakeVectors) Close() error                                                          { return nil }

func newTestDeps(t *testing.T) *tools.Deps {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlstore.Open(dir + "/tools.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	slots, err := slotsqlite.New(db)
	require.NoError(t, err)
	graph, err := graphsqlite.New(db)
	require.NoError(t, err)

	return &tools.Deps{
		Slots:         slots,
		Graph:         graph,
		Vectors:       newFakeVectors(),
		Embedder:      embedgateway.New(nil, 16),
		MinConfidence: 0.7,
		DupThreshold:  0.95,
	}
}

func TestSlotSetGetDeleteRoundTrip(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	setResult := tools.SlotSet(ctx, deps, "alice", "assistant", tools.SlotSetInput{Key: "profile.name", Value: "Alice"})
	assert.False(t, setResult.IsError)

	getResult := tools.SlotGet(ctx, deps, "alice", "assistant", tools.SlotGetInput{Key: "profile.name"})
	assert.False(t, getResult.IsError)
	assert.Contains(t, getResult.Summary, "found")

	deleteResult := tools.SlotDelete(ctx, deps, "alice", "assistant", tools.SlotDeleteInput{Key: "profile.name"})
	assert.False(t, deleteResult.IsError)
	assert.Equal(t, true, deleteResult.Details)
}

func TestSlotSetRequiresKeyAndValue(t *testing.T) {
	deps := newTestDeps(t)
	result := tools.SlotSet(context.Background(), deps, "alice", "assistant", tools.SlotSetInput{})
	assert.True(t, result.IsError)
}

func TestGraphEntitySetAndRelAdd(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	a := tools.GraphEntitySet(ctx, deps, "alice", "assistant", tools.GraphEntitySetInput{Name: "A", Type: "concept"})
	require.False(t, a.IsError)
	b := tools.GraphEntitySet(ctx, deps, "alice", "assistant", tools.GraphEntitySetInput{Name: "B", Type: "concept"})
	require.False(t, b.IsError)

	aEntity := a.Details.(*graphstore.Entity)
	bEntity := b.Details.(*graphstore.Entity)

	rel := tools.GraphRelAdd(ctx, deps, "alice", "assistant", tools.GraphRelAddInput{
		SourceID: aEntity.ID, TargetID: bEntity.ID, RelationType: "knows",
	})
	assert.False(t, rel.IsError)
}

func TestGraphRelAddRejectsMissingEndpoint(t *testing.T) {
	deps := newTestDeps(t)
	result := tools.GraphRelAdd(context.Background(), deps, "alice", "assistant", tools.GraphRelAddInput{
		SourceID: "missing-a", TargetID: "missing-b", RelationType: "knows",
	})
	assert.True(t, result.IsError)
}

func TestMemoryStoreDetectsDuplicate(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	first := tools.MemoryStore(ctx, deps, "alice", "assistant", tools.MemoryStoreInput{Text: "Alice likes dark mode"})
	require.False(t, first.IsError)

	second := tools.MemoryStore(ctx, deps, "alice", "assistant", tools.MemoryStoreInput{Text: "Alice likes dark mode"})
	require.False(t, second.IsError)

	firstID := first.Details.(map[string]any)["id"]
	secondID := second.Details.(map[string]any)["id"]
	assert.Equal(t, firstID, secondID)
}

func TestMemoryStoreRejectsOversizedText(t *testing.T) {
	deps := newTestDeps(t)
	huge := make([]byte, 10001)
	for i := range huge {
		huge[i] = 'a'
	}
	result := tools.MemoryStore(context.Background(), deps, "alice", "assistant", tools.MemoryStoreInput{Text: string(huge)})
	assert.True(t, result.IsError)
}
