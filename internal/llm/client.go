// Package llm wraps the OpenAI-compatible chat completion API used by the
// idea planner.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/graemedakers/decision-jar/pkg/config"
	openai "github.com/sashabaranov/go-openai"
)

var ErrNoAPIKey = errors.New("no LLM API key configured")

// CompletionRequest is a single system+user prompt pair.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Completer is the interface the planner consumes; tests substitute a fake.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// KeyedCompleter additionally supports per-call API key substitution, used
// for premium users who bring their own key.
type KeyedCompleter interface {
	Completer
	WithAPIKey(key string) Completer
}

type Client struct {
	apiKey  string
	baseURL string
	model   string
}

func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// WithAPIKey returns a copy of the client using the given key.
func (c *Client) WithAPIKey(key string) Completer {
	clone := *c
	clone.apiKey = key
	return &clone
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	cfg := openai.DefaultConfig(c.apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

var _ KeyedCompleter = (*Client)(nil)
