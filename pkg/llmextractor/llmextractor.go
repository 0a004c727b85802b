// Package llmextractor implements C6: LLM-driven extraction of slot
// updates, slot removals, and freeform memories from a conversation,
// grounded on the teacher's pkg/intelligence/fact_extractor.go prompt
// and parsing style, folded together with its decision.go ADD/UPDATE/
// DELETE/NONE classification (see SPEC_FULL.md §5).
package llmextractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/agentmem/memcore/pkg/llmprovider"
)

// DefaultMinConfidence is applied to slot_updates and memories, but not
// to slot_removals (spec §4.5).
const DefaultMinConfidence = 0.7

// VolatileStatusKeys is the closed set of keys the model must actively
// check for staleness against the current conversation (spec §4.5).
var VolatileStatusKeys = []string{
	"project.current",
	"project.current_task",
	"project.current_epic",
	"project.phase",
	"project.status",
}

// AllowedCategories is the closed set the prompt declares to the model.
var AllowedCategories = []string{"profile", "preferences", "project", "environment", "custom"}

// AllowedNamespaces is the closed set of memory namespaces the prompt
// declares to the model (spec §4.8's routing table union).
var AllowedNamespaces = []string{
	"agent_decisions", "user_profile", "project_context", "trading_signals",
}

// SlotUpdate is a proposed write to a slot.
type SlotUpdate struct {
	Key        string  `json:"key"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
}

// SlotRemoval is a proposed slot deletion.
type SlotRemoval struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Memory is a proposed freeform memory point.
type Memory struct {
	Text       string  `json:"text"`
	Namespace  string  `json:"namespace"`
	Confidence float64 `json:"confidence"`
}

// Result is the extractor's output. A failed extraction returns a zero
// Result (three empty/nil lists), never an error the caller must branch
// on (spec §4.5: "must not crash the caller").
type Result struct {
	SlotUpdates  []SlotUpdate
	SlotRemovals []SlotRemoval
	Memories     []Memory
}

// Extractor calls an LLM to extract structured facts from a
// conversation.
type Extractor struct {
	llm           llmprovider.Provider
	minConfidence float64
	now           func() time.Time
}

// New constructs an Extractor. now defaults to time.Now and exists so
// tests can pin "today" in the prompt.
func New(llm llmprovider.Provider, minConfidence float64) *Extractor {
	if minConfidence == 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Extractor{llm: llm, minConfidence: minConfidence, now: time.Now}
}

// Extract runs the extraction contract against conversationText and the
// current slot snapshot (already stripped of internal "_"-prefixed
// keys by the caller). On any HTTP or parse failure it logs and returns
// an empty Result; it has no error return.
func (e *Extractor) Extract(ctx context.Context, conversationText string, currentSlots map[string]map[string]any) Result {
	prompt := e.buildUserPrompt(conversationText, currentSlots)

	raw, err := e.llm.Generate(ctx, e.systemPrompt(), []llmprovider.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		log.Printf("[llmextractor] generate failed, returning empty extraction: %v", err)
		return Result{}
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		log.Printf("[llmextractor] parse failed, returning empty extraction: %v", err)
		return Result{}
	}

	return Result{
		SlotUpdates:  filterConfidentUpdates(parsed.SlotUpdates, e.minConfidence),
		SlotRemovals: parsed.SlotRemovals, // not confidence-filtered, per spec §4.5
		Memories:     filterConfidentMemories(parsed.Memories, e.minConfidence),
	}
}

func filterConfidentUpdates(in []SlotUpdate, min float64) []SlotUpdate {
	out := make([]SlotUpdate, 0, len(in))
	for _, u := range in {
		if u.Confidence >= min {
			out = append(out, u)
		}
	}
	return out
}

func filterConfidentMemories(in []Memory, min float64) []Memory {
	out := make([]Memory, 0, len(in))
	for _, m := range in {
		if m.Confidence >= min {
			out = append(out, m)
		}
	}
	return out
}

func (e *Extractor) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You extract durable facts from a conversation between a user and an AI agent. You have three jobs:\n")
	b.WriteString("1. slot_updates: structured facts worth remembering as key/value pairs (profile, preferences, project, environment, or custom).\n")
	b.WriteString("2. slot_removals: keys whose value is now known to be stale or contradicted.\n")
	b.WriteString("3. memories: freeform observations worth recalling later, each assigned to one namespace.\n\n")
	b.WriteString(fmt.Sprintf("Today: %s\n\n", e.now().Format("2006-01-02")))
	b.WriteString("The following status keys are volatile and change often; check them against the conversation for staleness on every turn: ")
	b.WriteString(strings.Join(VolatileStatusKeys, ", "))
	b.WriteString(".\n\n")
	b.WriteString("Allowed categories: " + strings.Join(AllowedCategories, ", ") + ".\n")
	b.WriteString("Allowed namespaces: " + strings.Join(AllowedNamespaces, ", ") + ".\n\n")
	b.WriteString("Reply with a single JSON object and nothing else, in this exact shape:\n")
	b.WriteString(`{"slot_updates":[{"key":"","value":"","confidence":0.0,"category":""}],`)
	b.WriteString(`"slot_removals":[{"key":"","reason":""}],`)
	b.WriteString(`"memories":[{"text":"","namespace":"","confidence":0.0}]}`)
	b.WriteString("\nOmit fields you have nothing for by using empty arrays. Do not wrap the JSON in a code block.")
	return b.String()
}

func (e *Extractor) buildUserPrompt(conversationText string, currentSlots map[string]map[string]any) string {
	slotsJSON, err := json.Marshal(currentSlots)
	if err != nil {
		slotsJSON = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("Current slots:\n")
	b.Write(slotsJSON)
	b.WriteString("\n\n--- CONVERSATION START ---\n")
	b.WriteString(conversationText)
	b.WriteString("\n--- CONVERSATION END ---\n")
	return b.String()
}

type rawResult struct {
	SlotUpdates  []SlotUpdate  `json:"slot_updates"`
	SlotRemovals []SlotRemoval `json:"slot_removals"`
	Memories     []Memory      `json:"memories"`
}

// parseResponse extracts the first {...} block from raw and decodes it,
// tolerating a response wrapped in prose or a fenced code block.
func parseResponse(raw string) (rawResult, error) {
	block := extractJSONBlock(raw)
	if block == "" {
		return rawResult{}, fmt.Errorf("llmextractor: no JSON object found in response")
	}
	var result rawResult
	if err := json.Unmarshal([]byte(block), &result); err != nil {
		return rawResult{}, fmt.Errorf("llmextractor: decode: %w", err)
	}
	return result, nil
}

// extractJSONBlock returns the text between the first '{' and its
// matching '}', tracking string literals so braces inside quoted values
// don't confuse the scan.
func extractJSONBlock(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
