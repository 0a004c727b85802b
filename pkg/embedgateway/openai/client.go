// Package openai implements embedgateway.Provider against the OpenAI
// embeddings endpoint, grounded on the teacher's pkg/llm/openai client
// wiring style.
package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible endpoints
	Model      string
	Dimensions int
}

// Client is an embedgateway.Provider backed by go-openai.
type Client struct {
	client     *openai.Client
	model      string
	dimensions int
}

// New constructs a Client.
func New(cfg Config) *Client {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		client:     openai.NewClientWithConfig(oaiCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed implements embedgateway.Provider.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var model openai.EmbeddingModel
	if err := model.UnmarshalText([]byte(c.model)); err != nil {
		return nil, fmt.Errorf("embedgateway/openai: unknown model %q: %w", c.model, err)
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedgateway/openai: create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedgateway/openai: empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions implements embedgateway.Provider.
func (c *Client) Dimensions() int {
	return c.dimensions
}
