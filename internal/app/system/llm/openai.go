// Package llm adapts an OpenAI-compatible chat completion endpoint to the
// planner's text generator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Config selects the endpoint and model.
type Config struct {
	APIKey     string
	BaseURL    string // empty for api.openai.com
	Model      string
	HTTPClient *http.Client
}

// OpenAIGenerator sends one chat completion per call. The SDK's own retries
// are disabled; callers decide whether a failure is retried.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAI(cfg Config) *OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...), model: model}
}

// Generate returns the first choice's text.
func (g *OpenAIGenerator) Generate(ctx context.Context, instructions, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
