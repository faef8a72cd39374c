package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stpasec/engine/internal/llmadapter"
)

const (
	anthropicAPIVersion = "2023-06-01"
	defaultAnthropicURL = "https://api.anthropic.com/v1/messages"
)

// Anthropic implements llmadapter.Provider via a direct HTTP client
// against the Messages API, grounded on
// _examples/jinterlante1206-AleutianLocal/services/llm/anthropic_llm.go.
type Anthropic struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewAnthropic builds an Anthropic provider. baseURL is optional and
// defaults to the public Messages endpoint.
func NewAnthropic(apiKey, model, baseURL string) *Anthropic {
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	return &Anthropic{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content []anthropicContent  `json:"content"`
	Error   *anthropicErrorBody `json:"error,omitempty"`
}

func splitSystem(messages []llmadapter.Message) (system string, rest []anthropicMessage) {
	for _, m := range messages {
		if m.Role == llmadapter.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	return system, rest
}

func (a *Anthropic) do(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = 4096
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: reading response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("anthropic: decoding response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("anthropic: api error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("anthropic: http %d: %s", resp.StatusCode, string(respBody))
	}
	return &parsed, nil
}

func (a *Anthropic) Generate(ctx context.Context, messages []llmadapter.Message, opts llmadapter.Options) (string, error) {
	system, rest := splitSystem(messages)
	resp, err := a.do(ctx, anthropicRequest{
		Model:       a.model,
		Messages:    rest,
		System:      system,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty content")
	}
	return resp.Content[0].Text, nil
}

// GenerateStructured asks for JSON explicitly via the system prompt;
// Anthropic's Messages API has no dedicated structured-decoding mode, so
// llmadapter's Schema.Validate does the real enforcement.
func (a *Anthropic) GenerateStructured(ctx context.Context, messages []llmadapter.Message, schema llmadapter.Schema, opts llmadapter.Options) ([]byte, error) {
	system, rest := splitSystem(messages)
	system += "\n\nRespond with JSON only, matching the requested shape. No prose, no code fences."
	resp, err := a.do(ctx, anthropicRequest{
		Model:       a.model,
		Messages:    rest,
		System:      system,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("anthropic: empty content")
	}
	return []byte(resp.Content[0].Text), nil
}
