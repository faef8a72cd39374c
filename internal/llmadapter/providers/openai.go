// Package providers implements llmadapter.Provider for each backend
// named in spec.md §6.1 (openai, anthropic, groq, ollama).
package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/stpasec/engine/internal/llmadapter"
)

// OpenAI implements llmadapter.Provider against the OpenAI chat
// completions API, grounded on
// _examples/jinterlante1206-AleutianLocal/services/llm/openai_llm.go.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds an OpenAI provider. baseURL is optional (spec.md
// model.base_url); an empty string uses the default OpenAI endpoint.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Generate(ctx context.Context, messages []llmadapter.Message, opts llmadapter.Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(messages),
	}
	if opts.Temperature != 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens != 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStructured uses OpenAI's JSON response-format mode as the
// "schema-constrained" path; it does not enforce field-level schema
// conformance server-side, so llmadapter still runs Schema.Validate on
// the result.
func (o *OpenAI) GenerateStructured(ctx context.Context, messages []llmadapter.Message, schema llmadapter.Schema, opts llmadapter.Options) ([]byte, error) {
	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(messages),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if opts.Temperature != 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens != 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: structured chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}

func toOpenAIMessages(messages []llmadapter.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// Groq implements llmadapter.Provider against Groq's OpenAI-wire-compatible
// chat completions endpoint, reusing the OpenAI client with a different
// base URL and Name() (spec.md §6.1 model.provider=groq).
type Groq struct {
	*OpenAI
}

// NewGroq builds a Groq provider.
func NewGroq(apiKey, model, baseURL string) *Groq {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return &Groq{OpenAI: NewOpenAI(apiKey, model, baseURL)}
}

func (g *Groq) Name() string { return "groq" }
