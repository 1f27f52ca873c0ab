package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprobe/deepsearch/pkg/config"
	"github.com/openprobe/deepsearch/pkg/llm"
)

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0,
		MaxTokens:   256,
		Timeout:     5 * time.Second,
	}
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"model": "test-model",
		"choices": []map[string]any{
			{
				"message": map[string]string{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])
		assert.Equal(t, float64(0), req["temperature"])
		assert.Equal(t, float64(256), req["max_tokens"])

		messages := req["messages"].([]any)
		require.Len(t, messages, 2)
		first := messages[0].(map[string]any)
		assert.Equal(t, "system", first["role"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("Hello!"))
	}))
	defer server.Close()

	client := llm.NewHTTPClient(testLLMConfig(server.URL))
	got, err := client.Generate(context.Background(), []llm.Message{
		llm.System("You are helpful."),
		llm.User("Say hello."),
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello!", got)
}

func TestGenerateBaseURLAlreadyComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		json.NewEncoder(w).Encode(completionResponse("ok"))
	}))
	defer server.Close()

	client := llm.NewHTTPClient(testLLMConfig(server.URL + "/v1/chat/completions"))
	got, err := client.Generate(context.Background(), []llm.Message{llm.User("hi")})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestGenerateSurfacesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	client := llm.NewHTTPClient(testLLMConfig(server.URL))
	_, err := client.Generate(context.Background(), []llm.Message{llm.User("hi")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "test-model", "choices": []any{}})
	}))
	defer server.Close()

	client := llm.NewHTTPClient(testLLMConfig(server.URL))
	_, err := client.Generate(context.Background(), []llm.Message{llm.User("hi")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestGenerateRequiresMessages(t *testing.T) {
	client := llm.NewHTTPClient(testLLMConfig("http://localhost:0"))
	_, err := client.Generate(context.Background(), nil)

	require.Error(t, err)
}

func TestGenerateHonorsContext(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := llm.NewHTTPClient(testLLMConfig(server.URL))
	_, err := client.Generate(ctx, []llm.Message{llm.User("hi")})

	require.Error(t, err)
}
