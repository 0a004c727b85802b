// Package noisefilter implements C9: a per-agent blocklist, skip-pattern
// matching, and namespace routing table (spec §4.8).
package noisefilter

import "regexp"

const traderAgent = "trader"

// blocklist is the static set of agent ids AutoCapture never runs for.
var blocklist = map[string]bool{
	"benchmark": true,
	"sandbox":   true,
}

// generalNoisePatterns match low-signal chatter no agent should capture.
var generalNoisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(ok|okay|thanks|thank you|got it|sounds good|sure|yep|no problem)\s*[.!]*\s*$`),
	regexp.MustCompile(`(?i)^\s*(hi|hello|hey)\s*[.!]*\s*$`),
	regexp.MustCompile(`^\s*$`),
}

// tradingSignalPatterns match content the trader agent captures only via
// explicit tool calls, never through the passive AutoCapture path.
var tradingSignalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(buy|sell|long|short)\b.{0,20}\b(signal|position|entry|target)\b`),
	regexp.MustCompile(`(?i)\bstop[- ]loss\b`),
	regexp.MustCompile(`(?i)\bticker\s+[A-Z]{1,6}\b`),
}

// namespaceRouting maps an agent id to its ordered search namespaces;
// the first entry is AutoCapture's default destination (spec §4.8).
var namespaceRouting = map[string][]string{
	"assistant": {"agent_decisions", "user_profile"},
	"scrum":     {"agent_decisions", "project_context"},
	"fullstack": {"agent_decisions", "project_context"},
	"creator":   {"agent_decisions", "project_context"},
	"trader":    {"trading_signals", "agent_decisions"},
}

var defaultNamespaces = []string{"agent_decisions"}

// Filter is a noise filter bound to one agent.
type Filter struct {
	agentID string
}

// New returns a Filter for agentID.
func New(agentID string) *Filter {
	return &Filter{agentID: agentID}
}

// IsBlocked reports whether the agent is in the static blocklist.
func (f *Filter) IsBlocked() bool {
	return blocklist[f.agentID]
}

// ShouldSkip reports whether text matches a general noise pattern, or,
// for the trader agent, a trading-signal pattern (which the trader
// captures only through explicit tool calls, never passively).
func (f *Filter) ShouldSkip(text string) bool {
	for _, p := range generalNoisePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	if f.agentID == traderAgent {
		for _, p := range tradingSignalPatterns {
			if p.MatchString(text) {
				return true
			}
		}
	}
	return false
}

// GetTargetNamespace returns the agent's default auto-capture
// destination namespace. The trader agent always routes here to
// agent_decisions rather than trading_signals: trading content reaches
// trading_signals only through explicit tool calls, never passive
// capture (spec §4.8).
func (f *Filter) GetTargetNamespace() string {
	if f.agentID == traderAgent {
		return defaultNamespaces[0]
	}
	if ns, ok := namespaceRouting[f.agentID]; ok {
		return ns[0]
	}
	return defaultNamespaces[0]
}

// SearchNamespaces returns the agent's full ordered namespace list, used
// by AutoRecall to build its OR-filter over namespaces.
func (f *Filter) SearchNamespaces() []string {
	if ns, ok := namespaceRouting[f.agentID]; ok {
		return ns
	}
	return defaultNamespaces
}
