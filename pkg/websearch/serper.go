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

// defaultSerperURL is the public Serper endpoint.
const defaultSerperURL = "https://google.serper.dev/search"

// maxSerperResponseBytes caps the search API response read.
const maxSerperResponseBytes = 4 * 1024 * 1024

// Result is one organic search hit.
type Result struct {
	Title   string
	Link    string
	Snippet string
	Date    string
	Source  string
}

// SerperClient calls the Serper web search API.
type SerperClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewSerperClient creates a search client. An empty baseURL means the
// public endpoint.
func NewSerperClient(apiKey, baseURL string, timeout time.Duration) *SerperClient {
	if baseURL == "" {
		baseURL = defaultSerperURL
	}
	return &SerperClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.With("component", "serper"),
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Date     string `json:"date"`
		Source   string `json:"source"`
		Position int    `json:"position"`
	} `json:"organic"`
}

// Search returns up to num organic results for the query, in ranking
// order.
func (c *SerperClient) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("serper api key not configured")
	}

	payload, err := json.Marshal(serperRequest{Q: query, Num: num})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSerperResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d: %s", resp.StatusCode, excerpt(string(body), 200))
	}

	var parsed serperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Organic))
	for _, item := range parsed.Organic {
		results = append(results, Result{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
			Date:    item.Date,
			Source:  item.Source,
		})
	}

	c.logger.Debug("search finished", "query", query, "results", len(results))
	return results, nil
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
