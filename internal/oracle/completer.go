// Package oracle wraps the language-model scoring oracles: brand safety,
// business proposal and the final loan decision. Every call runs at
// temperature 0 behind a per-oracle circuit breaker and is never retried.
package oracle

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/creator-credit/pkg/anthropic"
	"github.com/sells-group/creator-credit/pkg/gemini"
)

// Prompt is one single-turn oracle request.
type Prompt struct {
	Oracle    string
	System    string
	User      string
	MaxTokens int64
}

// Completer runs a Prompt and returns the raw response text.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

type anthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter returns a Completer backed by the Messages API.
func NewAnthropicCompleter(client anthropic.Client, model string, maxTokens int64) Completer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &anthropicCompleter{client: client, model: model, maxTokens: maxTokens}
}

func (c *anthropicCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	maxTokens := c.maxTokens
	if p.MaxTokens > 0 {
		maxTokens = p.MaxTokens
	}
	zero := 0.0

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      p.System,
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &zero,
	})
	if err != nil {
		return "", eris.Wrapf(err, "oracle: %s completion", p.Oracle)
	}
	resp.Usage.LogCost(c.model, p.Oracle)
	return resp.Text(), nil
}

type geminiCompleter struct {
	client gemini.Client
	model  string
}

// NewGeminiCompleter returns a Completer backed by the Gemini API.
func NewGeminiCompleter(client gemini.Client, model string) Completer {
	return &geminiCompleter{client: client, model: model}
}

func (c *geminiCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	var zero float32
	resp, err := c.client.GenerateText(ctx, gemini.GenerateRequest{
		Model:       c.model,
		System:      p.System,
		Prompt:      p.User,
		Temperature: &zero,
	})
	if err != nil {
		return "", eris.Wrapf(err, "oracle: %s completion", p.Oracle)
	}
	return resp.Text, nil
}
