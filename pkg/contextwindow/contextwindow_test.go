package contextwindow_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmem/memcore/pkg/contextwindow"
)

func TestSelectMessagesDropsNonUserAssistantRoles(t *testing.T) {
	messages := []contextwindow.Message{
		{Role: "system", Content: "setup"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "tool", Content: "raw result"},
	}
	selected, stats := contextwindow.SelectMessagesWithinBudget(messages, contextwindow.Config{})
	assert.Equal(t, 4, stats.TotalMessages)
	assert.Equal(t, 2, stats.FilteredMessages)
	require.Len(t, selected, 2)
	assert.Equal(t, "user", selected[0].Role)
	assert.Equal(t, "assistant", selected[1].Role)
}

func TestSelectMessagesRespectsAbsoluteMax(t *testing.T) {
	var messages []contextwindow.Message
	for i := 0; i < 10; i++ {
		messages = append(messages, contextwindow.Message{Role: "user", Content: "hi"})
	}
	selected, stats := contextwindow.SelectMessagesWithinBudget(messages, contextwindow.Config{AbsoluteMaxMessages: 3})
	assert.Len(t, selected, 3)
	assert.LessOrEqual(t, stats.SelectedMessages, 3)
}

func TestSelectMessagesStopsAtTokenBudget(t *testing.T) {
	long := strings.Repeat("word ", 100)
	messages := []contextwindow.Message{
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: long},
	}
	selected, stats := contextwindow.SelectMessagesWithinBudget(messages, contextwindow.Config{MaxConversationTokens: 50})
	// at least the newest message always makes it in
	require.NotEmpty(t, selected)
	assert.LessOrEqual(t, len(selected), 3)
	assert.Greater(t, stats.EstimatedTokens, 0)
}

func TestSelectMessagesPreservesChronologicalOrder(t *testing.T) {
	messages := []contextwindow.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
	}
	selected, _ := contextwindow.SelectMessagesWithinBudget(messages, contextwindow.Config{})
	require.Len(t, selected, 3)
	assert.Equal(t, "first", selected[0].Content)
	assert.Equal(t, "second", selected[1].Content)
	assert.Equal(t, "third", selected[2].Content)
}

func TestExtractMessageTextString(t *testing.T) {
	assert.Equal(t, "hello", contextwindow.ExtractMessageText("hello"))
}

func TestExtractMessageTextBlocks(t *testing.T) {
	content := []any{
		map[string]any{"type": "text", "text": "look at this"},
		map[string]any{"type": "tool_use", "name": "search"},
		map[string]any{"type": "tool_result"},
		map[string]any{"type": "image"},
	}
	got := contextwindow.ExtractMessageText(content)
	assert.Contains(t, got, "look at this")
	assert.Contains(t, got, "[Tool: search]")
	assert.Contains(t, got, "[Tool Result]")
	assert.Contains(t, got, "[Image]")
}

func TestExtractMessageTextNeverEmitsObjectObject(t *testing.T) {
	content := map[string]any{"weird": "shape", "nested": map[string]any{"a": 1}}
	got := contextwindow.ExtractMessageText(content)
	assert.NotContains(t, got, "[object Object]")
}

func TestExtractMessageTextNestedContent(t *testing.T) {
	content := map[string]any{"content": "buried text"}
	assert.Equal(t, "buried text", contextwindow.ExtractMessageText(content))
}
