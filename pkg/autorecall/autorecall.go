// Package autorecall implements C11: the before-agent-start hook that
// merges slot, graph, and semantic-memory state into a text block spliced
// into (or prepended to) the agent's system prompt. See spec §4.10.
package autorecall

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/agentmem/memcore/internal/scope"
	"github.com/agentmem/memcore/pkg/contextwindow"
	"github.com/agentmem/memcore/pkg/embedgateway"
	"github.com/agentmem/memcore/pkg/graphstore"
	"github.com/agentmem/memcore/pkg/noisefilter"
	"github.com/agentmem/memcore/pkg/slotstore"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

const (
	semanticSearchLimit    = 5
	semanticMinScore       = 0.7
	graphMaxEntities       = 10
	graphMaxEdgeEntities   = 5
	graphMaxEdgesPerEntity = 2
	recentUpdatesLimit     = 5
	truncateAt             = 100

	systemClosingMarker = "</system>"
)

// Deps are the components AutoRecall queries.
type Deps struct {
	Slots    slotstore.Store
	Graph    graphstore.Store
	Vectors  vectorgateway.Gateway
	Embedder *embedgateway.Gateway

	// TokenBudget caps the rendered block's estimated token size (spec
	// §6's "injected-state token budget"). Zero means unbounded.
	TokenBudget int
}

// Event is one before_agent_start invocation.
type Event struct {
	SessionUserID        string
	AgentID              string
	LatestUserMessage    string
	ExistingSystemPrompt string
}

// Run builds the recall block and returns the system prompt to use for
// this turn (the existing prompt with the block spliced in, or the
// block alone if there was no existing prompt). It never returns an
// error: every failure path degrades to an empty section, per spec
// §4.10 and the hook contract in §7.
func Run(ctx context.Context, deps Deps, event Event) string {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[autorecall] recovered from panic: %v", r)
		}
	}()

	private := scope.Resolve(event.SessionUserID, event.AgentID)

	currentState := buildCurrentState(ctx, deps, private)
	recentUpdates := buildRecentUpdates(ctx, deps, private)
	graphSummary := buildGraphSummary(ctx, deps, private)
	semanticMemories := buildSemanticMemories(ctx, deps, event)

	block := renderWithinBudget(currentState, graphSummary, recentUpdates, semanticMemories, deps.TokenBudget)
	if block == "" {
		return event.ExistingSystemPrompt
	}

	return inject(event.ExistingSystemPrompt, block)
}

type stateEntry struct {
	value     any
	updatedAt time.Time
}

// buildCurrentState merges private, team, and public scopes, keeping
// for each (category, key) the value from whichever scope's slot has
// the greatest updated_at (freshness wins, not scope priority).
func buildCurrentState(ctx context.Context, deps Deps, private scope.Key) map[string]map[string]stateEntry {
	merged := map[string]map[string]stateEntry{}

	for _, tier := range scope.Tiers {
		sc := scope.ForTier(private, tier)
		slots, err := deps.Slots.GetAll(ctx, sc.User, sc.Agent)
		if err != nil {
			log.Printf("[autorecall] current-state scope %v failed, skipping: %v", tier, err)
			continue
		}
		for _, slot := range slots {
			if strings.HasPrefix(slot.Key, "_") {
				continue
			}
			cat := string(slot.Category)
			if merged[cat] == nil {
				merged[cat] = map[string]stateEntry{}
			}
			existing, ok := merged[cat][slot.Key]
			if !ok || slot.UpdatedAt.After(existing.updatedAt) {
				merged[cat][slot.Key] = stateEntry{value: slot.Value, updatedAt: slot.UpdatedAt}
			}
		}
	}
	return merged
}

// buildRecentUpdates returns the five slots with the greatest updated_at
// across all three scopes.
func buildRecentUpdates(ctx context.Context, deps Deps, private scope.Key) []*slotstore.Slot {
	var all []*slotstore.Slot
	for _, tier := range scope.Tiers {
		sc := scope.ForTier(private, tier)
		slots, err := deps.Slots.GetAll(ctx, sc.User, sc.Agent)
		if err != nil {
			log.Printf("[autorecall] recent-updates scope %v failed, skipping: %v", tier, err)
			continue
		}
		all = append(all, slots...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	if len(all) > recentUpdatesLimit {
		all = all[:recentUpdatesLimit]
	}
	return all
}

type graphEntry struct {
	entity *graphstore.Entity
	edges  []edgeSummary
}

type edgeSummary struct {
	relationType string
	targetName   string
}

// buildGraphSummary takes up to ten entities from the private scope
// only; for the first five, lists up to two outgoing edges each.
func buildGraphSummary(ctx context.Context, deps Deps, private scope.Key) []graphEntry {
	entities, err := deps.Graph.ListEntities(ctx, private.User, private.Agent, graphstore.EntityFilter{})
	if err != nil {
		log.Printf("[autorecall] graph summary failed, skipping: %v", err)
		return nil
	}
	if len(entities) > graphMaxEntities {
		entities = entities[:graphMaxEntities]
	}

	summary := make([]graphEntry, 0, len(entities))
	for i, e := range entities {
		entry := graphEntry{entity: e}
		if i < graphMaxEdgeEntities {
			edges, err := deps.Graph.GetRelationships(ctx, private.User, private.Agent, e.ID, graphstore.Outgoing)
			if err == nil {
				if len(edges) > graphMaxEdgesPerEntity {
					edges = edges[:graphMaxEdgesPerEntity]
				}
				for _, edge := range edges {
					target, err := deps.Graph.GetEntity(ctx, private.User, private.Agent, edge.TargetID)
					if err != nil || target == nil {
						continue
					}
					entry.edges = append(entry.edges, edgeSummary{relationType: edge.RelationType, targetName: target.Name})
				}
			}
		}
		summary = append(summary, entry)
	}
	return summary
}

// buildSemanticMemories embeds the latest user message and searches an
// OR-over-namespaces filter, keeping hits scored at or above the
// threshold. Any failure yields a silently empty result.
func buildSemanticMemories(ctx context.Context, deps Deps, event Event) []vectorgateway.SearchHit {
	if strings.TrimSpace(event.LatestUserMessage) == "" {
		return nil
	}

	defer func() {
		_ = recover() // an embedder or vector panic degrades to empty, never propagates
	}()

	filter := noisefilter.New(event.AgentID)
	namespaces := filter.SearchNamespaces()

	vector := deps.Embedder.Embed(ctx, event.LatestUserMessage)
	hits, err := deps.Vectors.Search(ctx, vector, vectorgateway.SearchOptions{
		Limit:  semanticSearchLimit,
		Filter: vectorgateway.Filter{Must: []vectorgateway.Condition{vectorgateway.MatchAny("namespace", namespaces...)}},
	})
	if err != nil {
		log.Printf("[autorecall] semantic memory search failed, skipping: %v", err)
		return nil
	}

	kept := make([]vectorgateway.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= semanticMinScore {
			kept = append(kept, h)
		}
	}
	return kept
}

// sectionKind names the four block sections, in the order the spec's
// §4.10 dropping priority removes them under a token budget: semantic
// memories are the least certain (fuzzy vector recall), the knowledge
// graph next, then recent updates, and current-state last since it is
// the durable identity/fact baseline and is never dropped.
type sectionKind int

const (
	sectionSemanticMemories sectionKind = iota
	sectionKnowledgeGraph
	sectionRecentUpdates
	sectionCurrentState
)

// dropOrder lists sections from first-to-drop to last-to-drop when the
// rendered block exceeds Deps.TokenBudget.
var dropOrder = []sectionKind{sectionSemanticMemories, sectionKnowledgeGraph, sectionRecentUpdates}

func buildSections(state map[string]map[string]stateEntry, graph []graphEntry, recent []*slotstore.Slot, memories []vectorgateway.SearchHit) map[sectionKind]string {
	sections := map[sectionKind]string{}

	if len(state) > 0 {
		var b strings.Builder
		b.WriteString("<current-state>\n")
		categories := sortedKeys(state)
		for _, cat := range categories {
			keys := make([]string, 0, len(state[cat]))
			for k := range state[cat] {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b.WriteString(fmt.Sprintf("%s.%s = %s\n", cat, k, truncate(fmt.Sprintf("%v", state[cat][k].value))))
			}
		}
		b.WriteString("</current-state>")
		sections[sectionCurrentState] = b.String()
	}

	if len(graph) > 0 {
		var b strings.Builder
		b.WriteString("<knowledge-graph>\n")
		for _, entry := range graph {
			b.WriteString(fmt.Sprintf("- %s (%s)", entry.entity.Name, entry.entity.Type))
			for _, edge := range entry.edges {
				b.WriteString(fmt.Sprintf(" --%s--> %s", edge.relationType, edge.targetName))
			}
			b.WriteString("\n")
		}
		b.WriteString("</knowledge-graph>")
		sections[sectionKnowledgeGraph] = b.String()
	}

	if len(recent) > 0 {
		var b strings.Builder
		b.WriteString("<recent-updates>\n")
		for _, slot := range recent {
			b.WriteString(fmt.Sprintf("%s.%s = %s (%s)\n", slot.Category, slot.Key, truncate(fmt.Sprintf("%v", slot.Value)), slot.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")))
		}
		b.WriteString("</recent-updates>")
		sections[sectionRecentUpdates] = b.String()
	}

	if len(memories) > 0 {
		var b strings.Builder
		b.WriteString("<semantic-memories>\n")
		for _, hit := range memories {
			b.WriteString(fmt.Sprintf("[%s] %s\n", hit.Payload.Namespace, truncate(hit.Payload.Text)))
		}
		b.WriteString("</semantic-memories>")
		sections[sectionSemanticMemories] = b.String()
	}

	return sections
}

// assemble joins whichever of the four sections are present, in the
// fixed display order (current-state, knowledge-graph, recent-updates,
// semantic-memories) regardless of which were dropped for budget.
func assemble(sections map[sectionKind]string) string {
	order := []sectionKind{sectionCurrentState, sectionKnowledgeGraph, sectionRecentUpdates, sectionSemanticMemories}
	var parts []string
	for _, k := range order {
		if s, ok := sections[k]; ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n")
}

// renderWithinBudget assembles the block and, if it exceeds budget
// (an estimated-token count per contextwindow.EstimateTokens), drops
// sections in dropOrder until it fits or only current-state remains.
// budget <= 0 means unbounded.
func renderWithinBudget(state map[string]map[string]stateEntry, graph []graphEntry, recent []*slotstore.Slot, memories []vectorgateway.SearchHit, budget int) string {
	sections := buildSections(state, graph, recent, memories)
	block := assemble(sections)
	if budget <= 0 {
		return block
	}

	for _, kind := range dropOrder {
		if contextwindow.EstimateTokens(block, 0) <= budget {
			break
		}
		if _, ok := sections[kind]; !ok {
			continue
		}
		delete(sections, kind)
		block = assemble(sections)
	}

	return block
}

func truncate(s string) string {
	if len(s) <= truncateAt {
		return s
	}
	return s[:truncateAt] + "..."
}

func sortedKeys(m map[string]map[string]stateEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// inject splices block immediately after the system section's closing
// marker if present, otherwise prepends it.
func inject(existing, block string) string {
	if existing == "" {
		return block
	}
	if idx := strings.Index(existing, systemClosingMarker); idx != -1 {
		insertAt := idx + len(systemClosingMarker)
		return existing[:insertAt] + "\n" + block + existing[insertAt:]
	}
	return block + "\n" + existing
}
