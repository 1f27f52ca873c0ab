// Package llm provides the chat completion client for the
// OpenAI-compatible endpoint every pipeline stage talks to.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openprobe/deepsearch/pkg/config"
	"github.com/openprobe/deepsearch/pkg/version"
)

// maxResponseBytes limits the response body read to prevent memory
// exhaustion.
const maxResponseBytes = 10 * 1024 * 1024

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Client generates a completion for a conversation.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// HTTPClient talks to an OpenAI-compatible /chat/completions endpoint.
type HTTPClient struct {
	cfg    config.LLMConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates a client for the configured chat endpoint.
func NewHTTPClient(cfg config.LLMConfig) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.With("component", "llm"),
	}
}

// chatRequest is the OpenAI-compatible request body.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// chatResponse is the OpenAI-compatible response body.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends the conversation and returns the first choice's
// content. Completions are issued exactly once, a retry would spend
// tokens on a result the run may no longer want.
func (c *HTTPClient) Generate(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("at least one message is required")
	}

	// Temperature 0 means deterministic here, not "use the provider
	// default", so it is always sent.
	temperature := c.cfg.Temperature
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: &temperature,
	}
	if c.cfg.MaxTokens > 0 {
		maxTokens := c.cfg.MaxTokens
		body.MaxTokens = &maxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(c.cfg.BaseURL), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Full())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response carried no choices")
	}

	c.logger.Debug("chat completion finished",
		"model", c.cfg.Model,
		"messages", len(messages),
		"total_tokens", parsed.Usage.TotalTokens,
		"duration", time.Since(start))

	return parsed.Choices[0].Message.Content, nil
}

// endpointURL appends /chat/completions unless the base URL already
// ends with it.
func endpointURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
