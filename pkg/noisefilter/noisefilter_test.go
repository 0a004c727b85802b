package noisefilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentmem/memcore/pkg/noisefilter"
)

func TestIsBlockedForBlocklistedAgent(t *testing.T) {
	f := noisefilter.New("benchmark")
	assert.True(t, f.IsBlocked())
}

func TestIsBlockedFalseForOrdinaryAgent(t *testing.T) {
	f := noisefilter.New("assistant")
	assert.False(t, f.IsBlocked())
}

func TestShouldSkipGeneralNoise(t *testing.T) {
	f := noisefilter.New("assistant")
	assert.True(t, f.ShouldSkip("thanks"))
	assert.True(t, f.ShouldSkip("   "))
	assert.False(t, f.ShouldSkip("here is the deployment plan for next week"))
}

func TestTraderSkipsTradingSignalsButOthersDont(t *testing.T) {
	text := "buy signal on ticker AAPL with a stop-loss at 150"

	trader := noisefilter.New("trader")
	assert.True(t, trader.ShouldSkip(text))

	assistant := noisefilter.New("assistant")
	assert.False(t, assistant.ShouldSkip(text))
}

func TestGetTargetNamespacePerAgent(t *testing.T) {
	assert.Equal(t, "agent_decisions", noisefilter.New("assistant").GetTargetNamespace())
	assert.Equal(t, "agent_decisions", noisefilter.New("trader").GetTargetNamespace())
	assert.Equal(t, "agent_decisions", noisefilter.New("unknown-agent").GetTargetNamespace())
}

func TestSearchNamespacesOrdering(t *testing.T) {
	assert.Equal(t, []string{"agent_decisions", "project_context"}, noisefilter.New("scrum").SearchNamespaces())
}
