package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/mendtool/mend/pkg/config"
)

// OllamaClient handles local Ollama API requests.
type OllamaClient struct {
	client      *ollama.Client
	model       string
	temperature float64
	maxTokens   int
}

func ollamaAPIClient(serverURL string) (*ollama.Client, error) {
	if serverURL == "" {
		client, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		return client, nil
	}
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama server URL %q: %w", serverURL, err)
	}
	return ollama.NewClient(base, http.DefaultClient), nil
}

// NewOllamaClient creates a client for a local Ollama server and verifies
// the configured model is available on it.
func NewOllamaClient(cfg *config.Config) (*OllamaClient, error) {
	client, err := ollamaAPIClient(cfg.OllamaServerURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	listResp, err := client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local models: %w", err)
	}

	modelFound := false
	for _, m := range listResp.Models {
		if m.Name == cfg.Model {
			modelFound = true
			break
		}
	}
	if !modelFound {
		availableModels := make([]string, 0, len(listResp.Models))
		for _, m := range listResp.Models {
			availableModels = append(availableModels, m.Name)
		}
		return nil, fmt.Errorf("model %s not found locally. Available models: %v", cfg.Model, availableModels)
	}

	return &OllamaClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Chat sends a chat request, streaming chunks through onChunk as Ollama
// produces them.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, onChunk StreamCallback) (string, error) {
	ollamaMessages := make([]ollama.Message, len(messages))
	totalTokens := 0
	for i, msg := range messages {
		ollamaMessages[i] = ollama.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
		totalTokens += estimateTokens(msg.Content)
	}

	numCtx := totalTokens + 1000
	if numCtx < 4096 {
		numCtx = 4096
	}

	req := &ollama.ChatRequest{
		Model:    c.model,
		Messages: ollamaMessages,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"top_p":       0.9,
			"num_ctx":     numCtx,
			"num_predict": c.maxTokens,
		},
	}

	var responseContent strings.Builder
	respFunc := func(res ollama.ChatResponse) error {
		if res.Message.Content != "" {
			responseContent.WriteString(res.Message.Content)
			if onChunk != nil {
				onChunk(res.Message.Content)
			}
		}
		return nil
	}

	if err := c.client.Chat(ctx, req, respFunc); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}

	return responseContent.String(), nil
}

func (c *OllamaClient) Model() string {
	return c.model
}

func (c *OllamaClient) Provider() string {
	return "ollama"
}

// CheckConnection verifies the local Ollama server is accessible.
func (c *OllamaClient) CheckConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.client.List(ctx); err != nil {
		return fmt.Errorf("ollama server not reachable: %w", err)
	}
	return nil
}

// estimateTokens provides a rough token count estimate.
func estimateTokens(text string) int {
	// Rough approximation: 1 token ≈ 4 characters
	return len(text) / 4
}
