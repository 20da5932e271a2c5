// Package gemini wraps the Gemini API for single-turn scoring prompts.
package gemini

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Client defines the Gemini operations used by the oracles.
type Client interface {
	GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a single-turn text generation request.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float32
}

// GenerateResponse is the text of the first candidate plus token counts.
type GenerateResponse struct {
	Text         string
	Model        string
	InputTokens  int32
	OutputTokens int32
}

// Option configures the client.
type Option func(*genai.ClientConfig)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPClient = hc
	}
}

type sdkClient struct {
	client *genai.Client
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		o(cfg)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client}, nil
}

func (c *sdkClient) GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	gc := &genai.GenerateContentConfig{Temperature: req.Temperature}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), gc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	out := &GenerateResponse{Text: resp.Text(), Model: req.Model}
	if resp.UsageMetadata != nil {
		out.InputTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}
