// Package llm wraps chat-model providers behind the single-method
// generator interface the agent nodes consume. Two tiers are wired:
// a reasoning model for synthesis and a fast model for classification,
// planning, review, and summaries.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Client adapts a langchaingo model to plain prompt-in, text-out calls.
type Client struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// Option configures a Client.
type Option func(*Client)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// NewClient wraps an existing model.
func NewClient(model llms.Model, opts ...Option) *Client {
	c := &Client{model: model, temperature: 0.2, maxTokens: 2048}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewGoogleAI builds a client backed by a Gemini model.
func NewGoogleAI(ctx context.Context, apiKey, modelName string, opts ...Option) (*Client, error) {
	model, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("creating googleai client: %w", err)
	}
	return NewClient(model, opts...), nil
}

// NewAnthropic builds a client backed by a Claude model.
func NewAnthropic(apiKey, modelName string, opts ...Option) (*Client, error) {
	model, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("creating anthropic client: %w", err)
	}
	return NewClient(model, opts...), nil
}

// Generate produces a completion for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("model generation failed: %w", err)
	}
	return out, nil
}
