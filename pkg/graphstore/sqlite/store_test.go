package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/memcore/internal/sqlstore"
	"github.com/agentmem/memcore/pkg/graphstore"
	graphsqlite "github.com/agentmem/memcore/pkg/graphstore/sqlite"
)

func newTestStore(t *testing.T) *graphsqlite.Store {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlstore.Open(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := graphsqlite.New(db)
	require.NoError(t, err)
	return store
}

func TestCreateAndGetEntityRoundTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateEntity(ctx, "alice", "assistant", "Bob", "person", map[string]any{"role": "colleague"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.GetEntity(ctx, "alice", "assistant", created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Type, got.Type)
	assert.Equal(t, "colleague", got.Properties["role"])
}

func TestCreateRelationshipRequiresBothEndpoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.CreateEntity(ctx, "alice", "assistant", "A", "concept", nil)
	require.NoError(t, err)

	_, err = store.CreateRelationship(ctx, "alice", "assistant", a.ID, "missing-id", "knows", 1.0, nil)
	assert.Error(t, err)
}

func TestCreateRelationshipUpsertsOnSecondCall(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.CreateEntity(ctx, "alice", "assistant", "A", "concept", nil)
	require.NoError(t, err)
	b, err := store.CreateEntity(ctx, "alice", "assistant", "B", "concept", nil)
	require.NoError(t, err)

	first, err := store.CreateRelationship(ctx, "alice", "assistant", a.ID, b.ID, "knows", 0.5, map[string]any{"n": 1})
	require.NoError(t, err)

	second, err := store.CreateRelationship(ctx, "alice", "assistant", a.ID, b.ID, "knows", 0.9, map[string]any{"n": 2})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.9, second.Weight)

	rels, err := store.GetRelationships(ctx, "alice", "assistant", a.ID, graphstore.Outgoing)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func TestDeleteEntityCascadesEdgesOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.CreateEntity(ctx, "alice", "assistant", "A", "person", nil)
	require.NoError(t, err)
	b, err := store.CreateEntity(ctx, "alice", "assistant", "B", "person", nil)
	require.NoError(t, err)
	_, err = store.CreateRelationship(ctx, "alice", "assistant", a.ID, b.ID, "knows", 1.0, nil)
	require.NoError(t, err)

	deleted, err := store.DeleteEntity(ctx, "alice", "assistant", a.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	stillThere, err := store.GetEntity(ctx, "alice", "assistant", b.ID)
	require.NoError(t, err)
	assert.NotNil(t, stillThere)

	rels, err := store.GetRelationships(ctx, "alice", "assistant", b.ID, graphstore.Both)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestTraverseGraphBoundedBFS(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, _ := store.CreateEntity(ctx, "alice", "assistant", "A", "concept", nil)
	b, _ := store.CreateEntity(ctx, "alice", "assistant", "B", "concept", nil)
	c, _ := store.CreateEntity(ctx, "alice", "assistant", "C", "concept", nil)
	_, err := store.CreateRelationship(ctx, "alice", "assistant", a.ID, b.ID, "linked", 1.0, nil)
	require.NoError(t, err)
	_, err = store.CreateRelationship(ctx, "alice", "assistant", b.ID, c.ID, "linked", 1.0, nil)
	require.NoError(t, err)

	depthOne, err := store.TraverseGraph(ctx, "alice", "assistant", a.ID, 1)
	require.NoError(t, err)
	assert.Len(t, depthOne.Entities, 2)
	assert.Len(t, depthOne.Edges, 1)

	depthTwo, err := store.TraverseGraph(ctx, "alice", "assistant", a.ID, 2)
	require.NoError(t, err)
	assert.Len(t, depthTwo.Entities, 3)
	assert.Len(t, depthTwo.Edges, 2)
}

func TestTraverseGraphMissingStartReturnsEmpty(t *testing.T) {
	store := newTestStore(t)
	result, err := store.TraverseGraph(context.Background(), "alice", "assistant", "does-not-exist", 3)
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Edges)
}

func TestListEntitiesFiltersByTypeAndName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _ = store.CreateEntity(ctx, "alice", "assistant", "Bob Smith", "person", nil)
	_, _ = store.CreateEntity(ctx, "alice", "assistant", "Golang", "technology", nil)

	people, err := store.ListEntities(ctx, "alice", "assistant", graphstore.EntityFilter{Type: "person"})
	require.NoError(t, err)
	assert.Len(t, people, 1)

	byName, err := store.ListEntities(ctx, "alice", "assistant", graphstore.EntityFilter{NameContain: "Smith"})
	require.NoError(t, err)
	assert.Len(t, byName, 1)
}
