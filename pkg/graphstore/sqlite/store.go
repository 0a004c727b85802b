// Package sqlite implements graphstore.Store on the same shared sqlite
// handle the slot store uses, grounded on the teacher's
// pkg/storage/sqlite bootstrap conventions and generalized to entities
// and a unique-triple edge table (spec §3, §4.2).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentmem/memcore/internal/idgen"
	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/pkg/graphstore"
)

const (
	entitiesTable      = "entities"
	relationshipsTable = "relationships"
)

// Store implements graphstore.Store.
type Store struct {
	db *sql.DB
}

// New wraps db, creating the entities and relationships tables if they
// do not already exist. db is expected to be shared with the slot
// store, both from internal/sqlstore.Open.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			agent_id    TEXT NOT NULL,
			name        TEXT NOT NULL,
			type        TEXT NOT NULL,
			properties  TEXT NOT NULL,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		)`, entitiesTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_scope ON %s(user_id, agent_id)`, entitiesTable, entitiesTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_type ON %s(user_id, agent_id, type)`, entitiesTable, entitiesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			agent_id      TEXT NOT NULL,
			source_id     TEXT NOT NULL,
			target_id     TEXT NOT NULL,
			relation_type TEXT NOT NULL,
			weight        REAL NOT NULL DEFAULT 1.0,
			properties    TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			UNIQUE(user_id, agent_id, source_id, target_id, relation_type),
			FOREIGN KEY(source_id) REFERENCES %s(id) ON DELETE CASCADE,
			FOREIGN KEY(target_id) REFERENCES %s(id) ON DELETE CASCADE
		)`, relationshipsTable, entitiesTable, entitiesTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(user_id, agent_id, source_id)`, relationshipsTable, relationshipsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_target ON %s(user_id, agent_id, target_id)`, relationshipsTable, relationshipsTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("graphstore/sqlite: init: %w", err)
		}
	}
	return nil
}

func marshalProps(props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(b), nil
}

func unmarshalProps(raw string) (map[string]any, error) {
	props := map[string]any{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	return props, nil
}

// CreateEntity implements graphstore.Store.
func (s *Store) CreateEntity(ctx context.Context, user, agent, name, entityType string, properties map[string]any) (*graphstore.Entity, error) {
	propsJSON, err := marshalProps(properties)
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: CreateEntity: %w", err)
	}

	now := time.Now()
	entity := &graphstore.Entity{
		ID:         idgen.New(),
		User:       user,
		Agent:      agent,
		Name:       name,
		Type:       entityType,
		Properties: properties,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, user_id, agent_id, name, type, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entitiesTable), entity.ID, user, agent, name, entityType, propsJSON, now, now)
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: CreateEntity: insert: %w", err)
	}
	return entity, nil
}

// GetEntity implements graphstore.Store.
func (s *Store) GetEntity(ctx context.Context, user, agent, id string) (*graphstore.Entity, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT id, user_id, agent_id, name, type, properties, created_at, updated_at
		 FROM %s WHERE user_id = ? AND agent_id = ? AND id = ?`, entitiesTable,
	), user, agent, id)
	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: GetEntity: %w", err)
	}
	return entity, nil
}

// ListEntities implements graphstore.Store.
func (s *Store) ListEntities(ctx context.Context, user, agent string, filter graphstore.EntityFilter) ([]*graphstore.Entity, error) {
	query := fmt.Sprintf(`SELECT id, user_id, agent_id, name, type, properties, created_at, updated_at
		FROM %s WHERE user_id = ? AND agent_id = ?`, entitiesTable)
	args := []any{user, agent}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.NameContain != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+filter.NameContain+"%")
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: ListEntities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []*graphstore.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("graphstore/sqlite: ListEntities: scan: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// UpdateEntity implements graphstore.Store.
func (s *Store) UpdateEntity(ctx context.Context, user, agent, id, name, entityType string, properties map[string]any) (*graphstore.Entity, error) {
	propsJSON, err := marshalProps(properties)
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: UpdateEntity: %w", err)
	}
	now := time.Now()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET name = ?, type = ?, properties = ?, updated_at = ?
		WHERE user_id = ? AND agent_id = ? AND id = ?
	`, entitiesTable), name, entityType, propsJSON, now, user, agent, id)
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: UpdateEntity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: UpdateEntity: rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetEntity(ctx, user, agent, id)
}

// DeleteEntity implements graphstore.Store. It removes every edge
// incident on the entity before removing the entity row, in one
// transaction, per spec §4.2.
func (s *Store) DeleteEntity(ctx context.Context, user, agent, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("graphstore/sqlite: DeleteEntity: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = ? AND agent_id = ? AND (source_id = ? OR target_id = ?)`,
		relationshipsTable,
	), user, agent, id, id)
	if err != nil {
		return false, fmt.Errorf("graphstore/sqlite: DeleteEntity: delete edges: %w", err)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = ? AND agent_id = ? AND id = ?`, entitiesTable,
	), user, agent, id)
	if err != nil {
		return false, fmt.Errorf("graphstore/sqlite: DeleteEntity: delete entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("graphstore/sqlite: DeleteEntity: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("graphstore/sqlite: DeleteEntity: commit: %w", err)
	}
	return n > 0, nil
}

// CreateRelationship implements graphstore.Store.
func (s *Store) CreateRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string, weight float64, properties map[string]any) (*graphstore.Relationship, error) {
	source, err := s.GetEntity(ctx, user, agent, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, memerr.Wrap("graphstore.CreateRelationship", memerr.KindValidation,
			fmt.Errorf("source entity %q: %w", sourceID, memerr.ErrScopeMismatch))
	}
	target, err := s.GetEntity(ctx, user, agent, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, memerr.Wrap("graphstore.CreateRelationship", memerr.KindValidation,
			fmt.Errorf("target entity %q: %w", targetID, memerr.ErrScopeMismatch))
	}
	if weight == 0 {
		weight = 1.0
	}
	propsJSON, err := marshalProps(properties)
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: CreateRelationship: %w", err)
	}

	existing, err := s.GetRelationship(ctx, user, agent, sourceID, targetID, relationType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if existing != nil {
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET weight = ?, properties = ?
			WHERE user_id = ? AND agent_id = ? AND source_id = ? AND target_id = ? AND relation_type = ?
		`, relationshipsTable), weight, propsJSON, user, agent, sourceID, targetID, relationType)
		if err != nil {
			return nil, fmt.Errorf("graphstore/sqlite: CreateRelationship: upsert update: %w", err)
		}
		existing.Weight = weight
		existing.Properties = properties
		return existing, nil
	}

	rel := &graphstore.Relationship{
		ID:           idgen.New(),
		User:         user,
		Agent:        agent,
		SourceID:     sourceID,
		TargetID:     targetID,
		RelationType: relationType,
		Weight:       weight,
		Properties:   properties,
		CreatedAt:    now,
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, user_id, agent_id, source_id, target_id, relation_type, weight, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, relationshipsTable), rel.ID, user, agent, sourceID, targetID, relationType, weight, propsJSON, now)
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: CreateRelationship: insert: %w", err)
	}
	return rel, nil
}

// GetRelationship implements graphstore.Store.
func (s *Store) GetRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string) (*graphstore.Relationship, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT id, user_id, agent_id, source_id, target_id, relation_type, weight, properties, created_at
		 FROM %s WHERE user_id = ? AND agent_id = ? AND source_id = ? AND target_id = ? AND relation_type = ?`,
		relationshipsTable,
	), user, agent, sourceID, targetID, relationType)
	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: GetRelationship: %w", err)
	}
	return rel, nil
}

// GetRelationships implements graphstore.Store.
func (s *Store) GetRelationships(ctx context.Context, user, agent, entityID string, direction graphstore.Direction) ([]*graphstore.Relationship, error) {
	var query string
	args := []any{user, agent}

	switch direction {
	case graphstore.Outgoing:
		query = fmt.Sprintf(`SELECT id, user_id, agent_id, source_id, target_id, relation_type, weight, properties, created_at
			FROM %s WHERE user_id = ? AND agent_id = ? AND source_id = ?`, relationshipsTable)
		args = append(args, entityID)
	case graphstore.Incoming:
		query = fmt.Sprintf(`SELECT id, user_id, agent_id, source_id, target_id, relation_type, weight, properties, created_at
			FROM %s WHERE user_id = ? AND agent_id = ? AND target_id = ?`, relationshipsTable)
		args = append(args, entityID)
	default:
		query = fmt.Sprintf(`SELECT id, user_id, agent_id, source_id, target_id, relation_type, weight, properties, created_at
			FROM %s WHERE user_id = ? AND agent_id = ? AND (source_id = ? OR target_id = ?)`, relationshipsTable)
		args = append(args, entityID, entityID)
	}
	query += " ORDER BY weight DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore/sqlite: GetRelationships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rels []*graphstore.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("graphstore/sqlite: GetRelationships: scan: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// DeleteRelationship implements graphstore.Store.
func (s *Store) DeleteRelationship(ctx context.Context, user, agent, sourceID, targetID, relationType string) (bool, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = ? AND agent_id = ? AND source_id = ? AND target_id = ? AND relation_type = ?`,
		relationshipsTable,
	), user, agent, sourceID, targetID, relationType)
	if err != nil {
		return false, fmt.Errorf("graphstore/sqlite: DeleteRelationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("graphstore/sqlite: DeleteRelationship: rows affected: %w", err)
	}
	return n > 0, nil
}

// TraverseGraph implements graphstore.Store as a bounded breadth-first
// search. start missing yields empty (not nil-error) sets, per spec
// §4.2.
func (s *Store) TraverseGraph(ctx context.Context, user, agent, start string, maxDepth int) (*graphstore.Traversal, error) {
	result := &graphstore.Traversal{}

	startEntity, err := s.GetEntity(ctx, user, agent, start)
	if err != nil {
		return nil, err
	}
	if startEntity == nil {
		return result, nil
	}

	visitedEntities := map[string]bool{start: true}
	visitedEdges := map[string]bool{}
	result.Entities = append(result.Entities, startEntity)

	frontier := []string{start}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			edges, err := s.GetRelationships(ctx, user, agent, id, graphstore.Both)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				edgeKey := edge.SourceID + "\x00" + edge.TargetID + "\x00" + edge.RelationType
				if !visitedEdges[edgeKey] {
					visitedEdges[edgeKey] = true
					result.Edges = append(result.Edges, edge)
				}

				other := edge.TargetID
				if other == id {
					other = edge.SourceID
				}
				if visitedEntities[other] {
					continue
				}
				visitedEntities[other] = true
				entity, err := s.GetEntity(ctx, user, agent, other)
				if err != nil {
					return nil, err
				}
				if entity == nil {
					continue
				}
				result.Entities = append(result.Entities, entity)
				next = append(next, other)
			}
		}
		frontier = next
	}

	return result, nil
}

// Close is a no-op: the database handle is shared with the slot store.
func (s *Store) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*graphstore.Entity, error) {
	var e graphstore.Entity
	var propsJSON string
	if err := row.Scan(&e.ID, &e.User, &e.Agent, &e.Name, &e.Type, &propsJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	props, err := unmarshalProps(propsJSON)
	if err != nil {
		return nil, err
	}
	e.Properties = props
	return &e, nil
}

func scanRelationship(row rowScanner) (*graphstore.Relationship, error) {
	var r graphstore.Relationship
	var propsJSON string
	if err := row.Scan(&r.ID, &r.User, &r.Agent, &r.SourceID, &r.TargetID, &r.RelationType, &r.Weight, &propsJSON, &r.CreatedAt); err != nil {
		return nil, err
	}
	props, err := unmarshalProps(propsJSON)
	if err != nil {
		return nil, err
	}
	r.Properties = props
	return &r, nil
}
