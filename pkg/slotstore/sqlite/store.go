// Package sqlite implements slotstore.Store on top of a shared sqlite
// database handle, the way the teacher's pkg/user_memory/sqlite implements
// UserProfileStore — one table, upsert-by-unique-key semantics, JSON
// columns for free-form data.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/pkg/slotstore"
)

// TableName is the slots table created in the shared database file.
const TableName = "slots"

// Store implements slotstore.Store.
type Store struct {
	db     *sql.DB
	limits slotstore.Limits
}

// New wraps db, creating the slots table if it does not already exist.
// db is expected to come from internal/sqlstore.Open and be shared with
// the graph store. limits is optional (zero value enforces nothing).
func New(db *sql.DB, limits ...slotstore.Limits) (*Store, error) {
	s := &Store{db: db}
	if len(limits) > 0 {
		s.limits = limits[0]
	}
	if err := s.init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id     TEXT NOT NULL,
			agent_id    TEXT NOT NULL,
			key         TEXT NOT NULL,
			category    TEXT NOT NULL,
			value       TEXT NOT NULL,
			source      TEXT NOT NULL,
			confidence  REAL NOT NULL DEFAULT 1.0,
			version     INTEGER NOT NULL DEFAULT 1,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL,
			expires_at  DATETIME,
			PRIMARY KEY (user_id, agent_id, key)
		)
	`, TableName))
	if err != nil {
		return fmt.Errorf("slotstore/sqlite: init: %w", err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_%s_category ON %s(user_id, agent_id, category)`,
		TableName, TableName,
	))
	if err != nil {
		return fmt.Errorf("slotstore/sqlite: init index: %w", err)
	}
	return nil
}

// cleanExpired removes rows whose expires_at has passed, per spec §4.1.
func (s *Store) cleanExpired(ctx context.Context, user, agent string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = ? AND agent_id = ? AND expires_at IS NOT NULL AND expires_at < ?`,
		TableName,
	), user, agent, time.Now())
	if err != nil {
		return fmt.Errorf("slotstore/sqlite: cleanExpired: %w", err)
	}
	return nil
}

// Set implements slotstore.Store.
func (s *Store) Set(ctx context.Context, user, agent string, in slotstore.SetInput) (*slotstore.Slot, error) {
	if in.Key == "" {
		return nil, fmt.Errorf("slotstore/sqlite: Set: %w", errEmptyKey)
	}

	category := in.Category
	if category == "" {
		category = slotstore.InferCategory(in.Key)
	}
	if !s.limits.Allows(category) {
		return nil, memerr.Wrap("slotstore.Set", memerr.KindValidation,
			fmt.Errorf("category %q is not in the configured whitelist: %w", category, memerr.ErrInvalidInput))
	}
	source := in.Source
	if source == "" {
		source = slotstore.SourceManual
	}
	confidence := in.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	valueJSON, err := json.Marshal(in.Value)
	if err != nil {
		return nil, fmt.Errorf("slotstore/sqlite: Set: marshal value: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("slotstore/sqlite: Set: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prevVersion int64
	err = tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT version FROM %s WHERE user_id = ? AND agent_id = ? AND key = ?`, TableName,
	), user, agent, in.Key).Scan(&prevVersion)

	now := time.Now()
	slot := &slotstore.Slot{
		User:       user,
		Agent:      agent,
		Key:        in.Key,
		Category:   category,
		Value:      in.Value,
		Source:     source,
		Confidence: confidence,
		UpdatedAt:  now,
		ExpiresAt:  in.ExpiresAt,
	}

	switch {
	case err == sql.ErrNoRows:
		if s.limits.MaxSlots > 0 {
			var count int
			if err := tx.QueryRowContext(ctx, fmt.Sprintf(
				`SELECT COUNT(*) FROM %s WHERE user_id = ? AND agent_id = ?`, TableName,
			), user, agent).Scan(&count); err != nil {
				return nil, fmt.Errorf("slotstore/sqlite: Set: count: %w", err)
			}
			if count >= s.limits.MaxSlots {
				return nil, memerr.Wrap("slotstore.Set", memerr.KindValidation,
					fmt.Errorf("scope already holds %d slots, at the configured max of %d: %w", count, s.limits.MaxSlots, memerr.ErrInvalidInput))
			}
		}
		slot.Version = 1
		slot.CreatedAt = now
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (user_id, agent_id, key, category, value, source, confidence, version, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, TableName), user, agent, in.Key, string(category), string(valueJSON), string(source), confidence, 1, now, now, in.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("slotstore/sqlite: Set: insert: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("slotstore/sqlite: Set: lookup: %w", err)
	default:
		slot.Version = prevVersion + 1
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET category = ?, value = ?, source = ?, confidence = ?, version = ?, updated_at = ?, expires_at = ?
			WHERE user_id = ? AND agent_id = ? AND key = ?
		`, TableName), string(category), string(valueJSON), string(source), confidence, slot.Version, now, in.ExpiresAt, user, agent, in.Key)
		if err != nil {
			return nil, fmt.Errorf("slotstore/sqlite: Set: update: %w", err)
		}
		// CreatedAt is unchanged by an update; fetch it back for the
		// returned slot's completeness.
		if err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT created_at FROM %s WHERE user_id = ? AND agent_id = ? AND key = ?`, TableName,
		), user, agent, in.Key).Scan(&slot.CreatedAt); err != nil {
			return nil, fmt.Errorf("slotstore/sqlite: Set: reload created_at: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("slotstore/sqlite: Set: commit: %w", err)
	}
	return slot, nil
}

// Get implements slotstore.Store.
func (s *Store) Get(ctx context.Context, user, agent, key string) (*slotstore.Slot, error) {
	if err := s.cleanExpired(ctx, user, agent); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT user_id, agent_id, key, category, value, source, confidence, version, created_at, updated_at, expires_at
		 FROM %s WHERE user_id = ? AND agent_id = ? AND key = ?`, TableName,
	), user, agent, key)

	slot, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("slotstore/sqlite: Get: %w", err)
	}
	return slot, nil
}

// GetByCategory implements slotstore.Store.
func (s *Store) GetByCategory(ctx context.Context, user, agent string, category slotstore.Category) ([]*slotstore.Slot, error) {
	return s.List(ctx, user, agent, slotstore.ListFilter{Category: category})
}

// GetAll implements slotstore.Store.
func (s *Store) GetAll(ctx context.Context, user, agent string) ([]*slotstore.Slot, error) {
	return s.List(ctx, user, agent, slotstore.ListFilter{})
}

// List implements slotstore.Store.
func (s *Store) List(ctx context.Context, user, agent string, filter slotstore.ListFilter) ([]*slotstore.Slot, error) {
	if err := s.cleanExpired(ctx, user, agent); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT user_id, agent_id, key, category, value, source, confidence, version, created_at, updated_at, expires_at
		FROM %s WHERE user_id = ? AND agent_id = ?`, TableName)
	args := []any{user, agent}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	if filter.Prefix != "" {
		query += ` AND key LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(filter.Prefix)+"%")
	}
	query += " ORDER BY category ASC, key ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("slotstore/sqlite: List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var slots []*slotstore.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("slotstore/sqlite: List: scan: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Delete implements slotstore.Store.
func (s *Store) Delete(ctx context.Context, user, agent, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = ? AND agent_id = ? AND key = ?`, TableName,
	), user, agent, key)
	if err != nil {
		return false, fmt.Errorf("slotstore/sqlite: Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("slotstore/sqlite: Delete: rows affected: %w", err)
	}
	return n > 0, nil
}

// GetCurrentState implements slotstore.Store.
func (s *Store) GetCurrentState(ctx context.Context, user, agent string) (map[string]map[string]any, error) {
	slots, err := s.GetAll(ctx, user, agent)
	if err != nil {
		return nil, err
	}
	state := make(map[string]map[string]any)
	for _, slot := range slots {
		if strings.HasPrefix(slot.Key, "_") {
			continue
		}
		cat := string(slot.Category)
		if state[cat] == nil {
			state[cat] = make(map[string]any)
		}
		state[cat][slot.Key] = slot.Value
	}
	return state, nil
}

// Count implements slotstore.Store.
func (s *Store) Count(ctx context.Context, user, agent string) (int, error) {
	if err := s.cleanExpired(ctx, user, agent); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE user_id = ? AND agent_id = ?`, TableName,
	), user, agent).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("slotstore/sqlite: Count: %w", err)
	}
	return n, nil
}

// Close is a no-op: the database handle is owned by whoever called
// sqlstore.Open and shared with the graph store.
func (s *Store) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*slotstore.Slot, error) {
	var slot slotstore.Slot
	var category, source, valueJSON string
	var expiresAt sql.NullTime

	if err := row.Scan(
		&slot.User, &slot.Agent, &slot.Key, &category, &valueJSON, &source,
		&slot.Confidence, &slot.Version, &slot.CreatedAt, &slot.UpdatedAt, &expiresAt,
	); err != nil {
		return nil, err
	}

	slot.Category = slotstore.Category(category)
	slot.Source = slotstore.Source(source)
	if expiresAt.Valid {
		t := expiresAt.Time
		slot.ExpiresAt = &t
	}
	if err := json.Unmarshal([]byte(valueJSON), &slot.Value); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return &slot, nil
}

// escapeLike escapes SQLite LIKE metacharacters in a user-supplied prefix
// so stray `%`/`_` in a slot key don't act as wildcards.
func escapeLike(s string) string {
	r := strings.NewReplacer("%", "\\%", "_", "\\_")
	return r.Replace(s)
}

var errEmptyKey = fmt.Errorf("key must not be empty")
