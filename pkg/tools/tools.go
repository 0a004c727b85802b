// Package tools exposes the memory subsystem's operations as agent-callable
// tools, one file per tool per the teacher pack's memtools convention.
// Each tool returns a one-line human summary plus a structured details
// value, with errors reported in-band via IsError rather than a Go error
// return (spec §6, §7 "User-visible failure behaviour in tools").
package tools

import (
	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/internal/scope"
	"github.com/agentmem/memcore/pkg/embedgateway"
	"github.com/agentmem/memcore/pkg/graphstore"
	"github.com/agentmem/memcore/pkg/llmextractor"
	"github.com/agentmem/memcore/pkg/slotstore"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

// Deps are the components every tool is handed. All fields are required
// except Extractor, which memory_auto_capture needs only when its
// use_llm input is true.
type Deps struct {
	Slots         slotstore.Store
	Graph         graphstore.Store
	Vectors       vectorgateway.Gateway
	Embedder      *embedgateway.Gateway
	Extractor     *llmextractor.Extractor
	MinConfidence float64
	DupThreshold  float64
}

// Result is the uniform tool response shape.
type Result struct {
	Summary string `json:"summary"`
	Details any    `json:"details"`
	IsError bool   `json:"isError"`
}

func errResult(kind memerr.Kind, summary string, err error) Result {
	return Result{
		Summary: summary,
		Details: map[string]any{"errorKind": string(kind), "error": err.Error()},
		IsError: true,
	}
}

// ScopeTier is the caller-facing scope selector (spec §6's
// scope? ∈ {private|team|public|all}).
type ScopeTier string

const (
	ScopePrivate ScopeTier = "private"
	ScopeTeam    ScopeTier = "team"
	ScopePublic  ScopeTier = "public"
	ScopeAll     ScopeTier = "all"
)

// resolveScopes returns the storage coordinates a tool call should act
// on for the requested tier: a single Key for private/team/public, or
// all three in fixed order for "all".
func resolveScopes(sessionUserID, agentID string, tier ScopeTier) []scope.Key {
	private := scope.Resolve(sessionUserID, agentID)
	switch tier {
	case ScopeTeam:
		return []scope.Key{scope.ForTier(private, scope.Team)}
	case ScopePublic:
		return []scope.Key{scope.ForTier(private, scope.Public)}
	case ScopeAll:
		return []scope.Key{
			scope.ForTier(private, scope.Private),
			scope.ForTier(private, scope.Team),
			scope.ForTier(private, scope.Public),
		}
	default:
		return []scope.Key{private}
	}
}
