// Package contextwindow implements C8: token-budgeted selection of the
// most recent messages to feed the extractor, and safe flattening of
// content blocks into plain text (spec §4.7).
package contextwindow

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DefaultTokenEstimateDivisor approximates tokens from character count.
const DefaultTokenEstimateDivisor = 4

// DefaultMaxConversationTokens bounds the selected window.
const DefaultMaxConversationTokens = 12000

// DefaultAbsoluteMaxMessages bounds the message count before token
// budgeting even runs.
const DefaultAbsoluteMaxMessages = 200

// Message is one turn of a conversation. Content may be a plain string
// or a structured value (a slice of content blocks, or a nested object)
// per spec §4.7; ExtractMessageText knows how to flatten it.
type Message struct {
	Role    string
	Content any
}

// Config tunes the selection algorithm. Zero values fall back to the
// package defaults.
type Config struct {
	AbsoluteMaxMessages   int
	MaxConversationTokens int
	TokenEstimateDivisor  int
}

func (c Config) withDefaults() Config {
	if c.AbsoluteMaxMessages == 0 {
		c.AbsoluteMaxMessages = DefaultAbsoluteMaxMessages
	}
	if c.MaxConversationTokens == 0 {
		c.MaxConversationTokens = DefaultMaxConversationTokens
	}
	if c.TokenEstimateDivisor == 0 {
		c.TokenEstimateDivisor = DefaultTokenEstimateDivisor
	}
	return c
}

// Stats reports how the budget was spent.
type Stats struct {
	TotalMessages     int
	FilteredMessages  int
	SelectedMessages  int
	EstimatedTokens   int
	BudgetUsedPercent float64
}

// SelectMessagesWithinBudget implements the algorithm from spec §4.7:
// drop non-user/assistant roles, cap by absolute message count, then
// walk newest-to-oldest accumulating until the token budget would be
// exceeded, returning the kept subset back in chronological order.
func SelectMessagesWithinBudget(messages []Message, cfg Config) ([]Message, Stats) {
	cfg = cfg.withDefaults()
	stats := Stats{TotalMessages: len(messages)}

	filtered := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "user" || m.Role == "assistant" {
			filtered = append(filtered, m)
		}
	}
	stats.FilteredMessages = len(filtered)

	if len(filtered) > cfg.AbsoluteMaxMessages {
		filtered = filtered[len(filtered)-cfg.AbsoluteMaxMessages:]
	}

	var selected []Message
	tokens := 0
	for i := len(filtered) - 1; i >= 0; i-- {
		text := fmt.Sprintf("%s: %s", filtered[i].Role, ExtractMessageText(filtered[i].Content))
		estimate := estimateTokens(text, cfg.TokenEstimateDivisor)
		// len(selected) > 0 guards against returning zero messages: the
		// single newest message is always kept even if it alone exceeds
		// the budget, so EstimatedTokens can exceed MaxConversationTokens
		// in that one case.
		if tokens+estimate > cfg.MaxConversationTokens && len(selected) > 0 {
			break
		}
		selected = append(selected, filtered[i])
		tokens += estimate
	}
	// selected was built newest-first; restore chronological order.
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}

	stats.SelectedMessages = len(selected)
	stats.EstimatedTokens = tokens
	if cfg.MaxConversationTokens > 0 {
		stats.BudgetUsedPercent = math.Round(float64(tokens) / float64(cfg.MaxConversationTokens) * 10000) / 100
	}

	return selected, stats
}

// ExtractMessageText flattens content into a short display string. It
// never returns the string "[object Object]" for an unrecognized
// shape: unknown structures are serialized as JSON instead.
func ExtractMessageText(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, block := range v {
			parts = append(parts, renderBlock(block))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		return renderBlock(v)
	default:
		return serializeUnknown(v)
	}
}

func renderBlock(block any) string {
	m, ok := block.(map[string]any)
	if !ok {
		return serializeUnknown(block)
	}

	blockType, _ := m["type"].(string)
	switch blockType {
	case "text":
		if text, ok := m["text"].(string); ok {
			return text
		}
	case "tool_use":
		name, _ := m["name"].(string)
		if name == "" {
			name = "unknown"
		}
		return fmt.Sprintf("[Tool: %s]", name)
	case "tool_result":
		return "[Tool Result]"
	case "image", "image_url":
		return "[Image]"
	}

	if text, ok := m["text"].(string); ok {
		return text
	}
	if nested, ok := m["content"]; ok {
		return ExtractMessageText(nested)
	}
	return serializeUnknown(m)
}

// serializeUnknown renders any unrecognized shape as compact JSON,
// guaranteeing we never fall back to a bare fmt.Sprintf("%v", ...) that
// would print "map[...]" or, for a struct-like value elsewhere in the
// pipeline, "[object Object]".
func serializeUnknown(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func estimateTokens(text string, divisor int) int {
	return EstimateTokens(text, divisor)
}

// EstimateTokens approximates the token count of text at divisor
// characters per token, defaulting to DefaultTokenEstimateDivisor when
// divisor is non-positive. Exported so other components (e.g.
// AutoRecall's injected-state budget) can size text against the same
// approximation SelectMessagesWithinBudget uses.
func EstimateTokens(text string, divisor int) int {
	if divisor <= 0 {
		divisor = DefaultTokenEstimateDivisor
	}
	return int(math.Ceil(float64(len(text)) / float64(divisor)))
}
