// Package llmprovider is the thin chat-completion abstraction C6's
// extractor is built on, mirroring the teacher's pkg/llm.Provider split
// so a fake can stand in for tests.
package llmprovider

import "context"

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

// Provider generates a chat completion from a system instruction and a
// message history.
type Provider interface {
	Generate(ctx context.Context, system string, messages []Message) (string, error)
	Close() error
}
