package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// defaultJinaURL is the public Jina reranker endpoint.
const defaultJinaURL = "https://api.jina.ai/v1/rerank"

// jinaModel is the reranker model requested for chunk scoring.
const jinaModel = "jina-reranker-v2-base-multilingual"

// maxJinaResponseBytes caps the rerank API response read.
const maxJinaResponseBytes = 4 * 1024 * 1024

// JinaClient calls the Jina rerank API to score text chunks against a
// query.
type JinaClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewJinaClient creates a rerank client. An empty baseURL means the
// public endpoint.
func NewJinaClient(apiKey, baseURL string, timeout time.Duration) *JinaClient {
	if baseURL == "" {
		baseURL = defaultJinaURL
	}
	return &JinaClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.With("component", "jina"),
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns the indices of the topN documents most relevant to
// the query, best first.
func (c *JinaClient) Rerank(ctx context.Context, query string, documents []string, topN int) ([]int, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	payload, err := json.Marshal(rerankRequest{
		Model:     jinaModel,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJinaResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank endpoint returned status %d: %s", resp.StatusCode, excerpt(string(body), 200))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}

	indices := make([]int, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		indices = append(indices, r.Index)
	}

	c.logger.Debug("rerank finished", "documents", len(documents), "returned", len(indices))
	return indices, nil
}
