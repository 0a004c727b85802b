// Package vectorgateway implements C4: an adapter to an external vector
// database. The only implementation (pkg/vectorgateway/qdrant) speaks the
// Qdrant wire shape; the interface exists so autocapture/autorecall can
// be tested against a fake. See spec §3 ("Memory point") and §4.3.
package vectorgateway

import (
	"context"
	"time"
)

// Point is a memory point: an opaque vector plus a payload the core
// reads a handful of typed fields out of.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Payload is the set of fields the core writes and reads on a memory
// point (spec §3). Metadata carries anything else the caller supplied.
type Payload struct {
	Text         string
	Namespace    string
	SourceAgent  string
	SourceType   string // auto_capture | manual | tool_call
	UserID       string
	Timestamp    time.Time
	UpdatedAt    time.Time
	SessionID    string
	Confidence   float64
	Tags         []string
	Metadata     map[string]any
}

// Filter is the filter grammar the core builds and passes through to the
// remote unmodified (spec §4.3): a Must list of Conditions, where a
// Condition built by MatchAny carries a Should list for OR-within-field
// semantics.
type Filter struct {
	Must []Condition
}

// Condition is either a direct key/value match or, when Should is set, an
// OR group of nested conditions on the same key.
type Condition struct {
	Key    string
	Value  string
	Should []Condition
}

// MatchAny builds a Condition matching key against any of values (OR
// within the field), the {must: [{should: [...]}]} shape from spec §4.3.
func MatchAny(key string, values ...string) Condition {
	should := make([]Condition, 0, len(values))
	for _, v := range values {
		should = append(should, Condition{Key: key, Value: v})
	}
	return Condition{Should: should}
}

// Match builds a direct equality Condition.
func Match(key, value string) Condition {
	return Condition{Key: key, Value: value}
}

// SearchOptions bounds a filtered nearest-neighbour search.
type SearchOptions struct {
	Filter Filter
	Limit  int
}

// SearchHit is a single search result. Score is the remote's similarity
// score as returned, not rescaled; the caller applies its own minScore.
type SearchHit struct {
	ID      string
	Score   float64
	Payload Payload
}

// Gateway is the C4 VectorGateway contract.
type Gateway interface {
	// EnsureCollection creates the collection if missing, with cosine
	// distance and the configured vector size, then declares keyword
	// payload indices on namespace, source_agent, source_type, userId.
	// Index-creation failures are logged, not returned, since they may
	// already exist (spec §4.3).
	EnsureCollection(ctx context.Context) error

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, points []Point) error

	// Search runs a filtered k-NN search and returns up to opts.Limit
	// hits ordered by score descending.
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchHit, error)

	// Get fetches a single point by id. Returns (nil, nil) if absent.
	Get(ctx context.Context, id string) (*Point, error)

	// DeleteByFilter removes every point matching filter. Exposed for
	// completeness (spec §3: "never deleted by the core" in automatic
	// flows) but unused by AutoCapture/AutoRecall.
	DeleteByFilter(ctx context.Context, filter Filter) error

	Close() error
}
