// Package llm provides chat completion clients for the configured provider
// and the retry policy shared by all calls to them.
package llm

import (
	"context"
	"fmt"

	"github.com/mendtool/mend/pkg/config"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string
	Content string
}

// StreamCallback receives content chunks as the model produces them.
type StreamCallback func(chunk string)

// Client is a chat completion backend.
type Client interface {
	// Chat sends the messages and returns the full response content. When
	// onChunk is non-nil, it is called with each content chunk as it
	// arrives, before the final content is returned.
	Chat(ctx context.Context, messages []Message, onChunk StreamCallback) (string, error)
	Model() string
	Provider() string
}

// ConnectionChecker is implemented by clients that can cheaply verify their
// backend is reachable before the first real request.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// NewClient builds the chat client for the configured provider.
func NewClient(cfg *config.Config) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg)
	case config.ProviderOllama:
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
