// Package slotstore implements C2: a versioned, TTL-expiring, structured
// key-value store scoped to (user, agent). See spec §3 ("Slot") and §4.1.
package slotstore

import (
	"context"
	"strings"
	"time"
)

// Source identifies who wrote a slot.
type Source string

const (
	SourceAutoCapture Source = "auto_capture"
	SourceManual      Source = "manual"
	SourceTool        Source = "tool"
)

// Category is the first dot-segment of a slot key, restricted to a known
// set or "custom" (spec §3).
type Category string

const (
	CategoryProfile     Category = "profile"
	CategoryPreferences Category = "preferences"
	CategoryProject     Category = "project"
	CategoryEnvironment Category = "environment"
	CategoryCustom      Category = "custom"
)

var knownCategories = map[string]Category{
	string(CategoryProfile):     CategoryProfile,
	string(CategoryPreferences): CategoryPreferences,
	string(CategoryProject):     CategoryProject,
	string(CategoryEnvironment): CategoryEnvironment,
}

// InferCategory derives a slot's category from the first dot-segment of
// its key, falling back to CategoryCustom for anything not in the known
// set (spec §3).
func InferCategory(key string) Category {
	prefix, _, _ := strings.Cut(key, ".")
	if c, ok := knownCategories[prefix]; ok {
		return c
	}
	return CategoryCustom
}

// Slot is a structured fact uniquely keyed by (user, agent, key).
type Slot struct {
	User       string
	Agent      string
	Key        string
	Category   Category
	Value      any
	Source     Source
	Confidence float64
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  *time.Time
}

// SetInput describes a write to Set. Category defaults to InferCategory(Key)
// when empty; Source defaults to SourceManual; Confidence defaults to 1.0.
type SetInput struct {
	Key        string
	Value      any
	Category   Category
	Source     Source
	Confidence float64
	ExpiresAt  *time.Time
}

// ListFilter narrows List to a category and/or a key prefix.
type ListFilter struct {
	Category Category
	Prefix   string
}

// Limits bounds what Set will accept, per spec §6's "slot categories
// whitelist" and "max slots" configuration effects. A zero Limits value
// enforces nothing.
type Limits struct {
	// CategoryWhitelist, when non-empty, is the only set of categories
	// Set will accept (after Category defaulting/inference). A write
	// whose category falls outside it is rejected with KindValidation.
	CategoryWhitelist []Category

	// MaxSlots caps the number of live slots Set will create per
	// (user, agent) scope. Updates to an existing key are always
	// allowed; only new-key inserts count against the cap. Zero means
	// unbounded.
	MaxSlots int
}

// Allows reports whether category passes the whitelist, treating an
// empty whitelist as "allow everything."
func (l Limits) Allows(category Category) bool {
	if len(l.CategoryWhitelist) == 0 {
		return true
	}
	for _, c := range l.CategoryWhitelist {
		if c == category {
			return true
		}
	}
	return false
}

// Store is the C2 SlotStore contract. The sole implementation
// (pkg/slotstore/sqlite) backs it with the shared local database file;
// the interface exists so AutoCapture/AutoRecall/tools can be tested
// against a fake without a real sqlite file.
type Store interface {
	// Set inserts or replaces the slot at (user, agent, key). On replace,
	// Version is the previous version + 1; on insert, Version is 1. This
	// is atomic with respect to concurrent callers on the same key (spec
	// §4.1, §5).
	Set(ctx context.Context, user, agent string, in SetInput) (*Slot, error)

	// Get looks up a single slot by key. Returns (nil, nil) if absent or
	// expired. Removes expired rows as a side effect (spec §4.1
	// "cleanExpired").
	Get(ctx context.Context, user, agent, key string) (*Slot, error)

	// GetByCategory returns all live slots in a category, ordered by key
	// ascending.
	GetByCategory(ctx context.Context, user, agent string, category Category) ([]*Slot, error)

	// GetAll returns every live slot, ordered by category then key.
	GetAll(ctx context.Context, user, agent string) ([]*Slot, error)

	// List applies an optional category and/or prefix filter (prefix is a
	// `key LIKE prefix%` match).
	List(ctx context.Context, user, agent string, filter ListFilter) ([]*Slot, error)

	// Delete removes the slot at key, reporting whether a row existed.
	Delete(ctx context.Context, user, agent, key string) (bool, error)

	// GetCurrentState returns a category -> key -> value mapping, skipping
	// keys beginning with "_" (spec §4.1).
	GetCurrentState(ctx context.Context, user, agent string) (map[string]map[string]any, error)

	// Count returns the number of live slots in scope.
	Count(ctx context.Context, user, agent string) (int, error)

	// Close releases the underlying storage handle.
	Close() error
}
