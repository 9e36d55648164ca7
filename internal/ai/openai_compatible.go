package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scholarai/internal/config"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("llm api key not configured")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAICompatibleClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
}

func NewOpenAICompatibleClient(cfg config.LLMConfig) *OpenAICompatibleClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAICompatibleClient{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}
}

func (c *OpenAICompatibleClient) Configured() bool {
	return c.apiKey != ""
}

// Generate runs one non-streaming chat completion with a system and a user turn.
func (c *OpenAICompatibleClient) Generate(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		"max_tokens": maxTokens,
		"stream":     false,
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/chat/completions", reqBody, &parsed); err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for the given text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	reqBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": text,
	}
	if err := c.postJSON(ctx, "/embeddings", reqBody, &parsed); err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return parsed.Data[0].Embedding, nil
}

func (c *OpenAICompatibleClient) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("response status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse json failed: %w", err)
	}
	return nil
}
