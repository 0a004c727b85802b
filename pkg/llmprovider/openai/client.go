// Package openai implements llmprovider.Provider against the OpenAI
// chat-completions endpoint, adapted from the teacher's
// pkg/llm/openai/client.go.
package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/agentmem/memcore/pkg/llmprovider"
)

// Config configures a Client.
type Config struct {
	APIKey      string
	BaseURL     string // optional, for OpenAI-compatible endpoints
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client is an llmprovider.Provider backed by go-openai.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// New constructs a Client, applying the teacher's config-driven
// BaseURL override for OpenAI-compatible endpoints.
func New(cfg Config) *Client {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.2 // extraction wants low-variance, near-deterministic output
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	return &Client{
		client:      openai.NewClientWithConfig(oaiCfg),
		model:       cfg.Model,
		temperature: temp,
		maxTokens:   maxTokens,
	}
}

// Generate implements llmprovider.Provider.
func (c *Client) Generate(ctx context.Context, system string, messages []llmprovider.Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llmprovider/openai: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmprovider/openai: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Close implements llmprovider.Provider.
func (c *Client) Close() error {
	return nil
}
