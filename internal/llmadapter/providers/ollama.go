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

const defaultOllamaURL = "http://localhost:11434"

// Ollama implements llmadapter.Provider against a local Ollama daemon's
// /api/chat endpoint, grounded on
// _examples/jinterlante1206-AleutianLocal/services/llm/ollama_llm.go.
type Ollama struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewOllama builds an Ollama provider. baseURL defaults to the local daemon.
func NewOllama(model, baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &Ollama{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (o *Ollama) chat(ctx context.Context, messages []llmadapter.Message, opts llmadapter.Options, jsonFormat bool) (string, error) {
	req := ollamaChatRequest{
		Model:    o.model,
		Stream:   false,
		Messages: toOllamaMessages(messages),
	}
	if jsonFormat {
		req.Format = "json"
	}
	if opts.Temperature != 0 {
		req.Options = map[string]interface{}{"temperature": opts.Temperature}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ollama: http %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("ollama: decoding response: %w", err)
	}
	return parsed.Message.Content, nil
}

func (o *Ollama) Generate(ctx context.Context, messages []llmadapter.Message, opts llmadapter.Options) (string, error) {
	return o.chat(ctx, messages, opts, false)
}

// GenerateStructured uses Ollama's native `format: "json"` mode.
func (o *Ollama) GenerateStructured(ctx context.Context, messages []llmadapter.Message, schema llmadapter.Schema, opts llmadapter.Options) ([]byte, error) {
	text, err := o.chat(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func toOllamaMessages(messages []llmadapter.Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
