// Package graphstore implements C3: entities and directed weighted
// relationships scoped to (user, agent), with cascading delete and
// bounded BFS traversal. See spec §3 ("Entity", "Relationship") and §4.2.
package graphstore

import (
	"context"
	"time"
)

// Direction selects which incident edges getRelationships/traverseGraph
// consider relative to an entity.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// Entity is a graph node.
type Entity struct {
	ID         string
	User       string
	Agent      string
	Name       string
	Type       string
	Properties map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Relationship is a directed, weighted edge between two entities in the
// same scope. The triple (SourceID, TargetID, RelationType) is unique.
type Relationship struct {
	ID           string
	User         string
	Agent        string
	SourceID     string
	TargetID     string
	RelationType string
	Weight       float64
	Properties   map[string]any
	CreatedAt    time.Time
}

// EntityFilter narrows ListEntities to a type and/or a name substring.
type EntityFilter struct {
	Type        string
	NameContain string
}

// Traversal is the result of a bounded BFS: the unique entities and edges
// visited, in the order first encountered.
type Traversal struct {
	Entities []*Entity
	Edges    []*Relationship
}

// Store is the C3 GraphStore contract.
type Store interface {
	// CreateEntity assigns a new opaque id and creates the entity.
	CreateEntity(ctx context.Context, user, agent, name, entityType string, properties map[string]any) (*Entity, error)

	// GetEntity returns (nil, nil) if absent.
	GetEntity(ctx context.Context, user, agent, id string) (*Entity, error)

	// ListEntities applies an optional type-equality and/or
	// name-substring filter.
	ListEntities(ctx context.Context, user, agent string, filter EntityFilter) ([]*Entity, error)

	// UpdateEntity replaces name/type/properties on an existing entity.
	// Returns (nil, nil) if the entity does not exist.
	UpdateEntity(ctx context.Context, user, agent, id, name, entityType string, properties map[string]any) (*Entity, error)

	// DeleteEntity removes the entity and every edge incident on it in
	// the same scope, transactionally. Returns true iff the entity row
	// was removed.
	DeleteEntity(ctx context.Context, user, agent, id string) (bool, error)

	// CreateRelationship upserts on the unique (source, target, type)
	// triple: a second call with the same triple updates weight and
	// properties in place. Both endpoints must already exist in scope.
	CreateRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string, weight float64, properties map[string]any) (*Relationship, error)

	// GetRelationship returns (nil, nil) if absent.
	GetRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string) (*Relationship, error)

	// GetRelationships returns edges incident on entityID in the given
	// direction, ordered by weight descending.
	GetRelationships(ctx context.Context, user, agent, entityID string, direction Direction) ([]*Relationship, error)

	// DeleteRelationship removes a single edge by its unique triple.
	// Returns true iff a row was removed.
	DeleteRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string) (bool, error)

	// TraverseGraph runs a bounded breadth-first search from start,
	// following edges in both directions up to maxDepth hops. Returns
	// empty sets if start does not exist.
	TraverseGraph(ctx context.Context, user, agent, start string, maxDepth int) (*Traversal, error)

	Close() error
}
