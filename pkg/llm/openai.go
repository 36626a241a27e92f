package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mendtool/mend/pkg/config"
)

// OpenAIClient talks to the OpenAI API or any compatible endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient creates a client from OPENAI_API_KEY and the configured
// base URL, which may point at any OpenAI-compatible server.
func NewOpenAIClient(cfg *config.Config) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Chat sends a streaming chat completion request, forwarding each delta to
// onChunk and returning the accumulated content.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, onChunk StreamCallback) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Stream:      true,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	if c.maxTokens > 0 {
		req.MaxCompletionTokens = c.maxTokens
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer stream.Close()

	var responseContent strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("openai stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta != "" {
			responseContent.WriteString(delta)
			if onChunk != nil {
				onChunk(delta)
			}
		}
	}

	return responseContent.String(), nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Provider() string {
	return "openai"
}

// CheckConnection verifies the API endpoint accepts our credentials.
func (c *OpenAIClient) CheckConnection(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai endpoint not reachable: %w", err)
	}
	return nil
}
