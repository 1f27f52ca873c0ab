// Package sandbox runs LLM-written programs against a remote execution
// service.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openprobe/deepsearch/pkg/config"
)

// maxSandboxResponseBytes caps the executor response read.
const maxSandboxResponseBytes = 4 * 1024 * 1024

// Result is the outcome of one program execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Client calls the code execution service.
type Client struct {
	cfg    config.SandboxConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates an executor client from configuration.
func NewClient(cfg config.SandboxConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.With("component", "sandbox"),
	}
}

type runRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

type runResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Run executes a Python program and returns its captured output. A
// non-zero exit is not an error here; callers decide how to treat it.
func (c *Client) Run(ctx context.Context, source string) (*Result, error) {
	if c.cfg.URL == "" {
		return nil, fmt.Errorf("sandbox url not configured")
	}

	payload, err := json.Marshal(runRequest{Language: "python", Source: source})
	if err != nil {
		return nil, fmt.Errorf("marshal execution request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create execution request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execution request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSandboxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read execution response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor returned status %d: %s", resp.StatusCode, excerpt(string(body), 200))
	}

	var parsed runResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse execution response: %w", err)
	}

	c.logger.Debug("execution finished",
		"exit_code", parsed.ExitCode,
		"stdout_bytes", len(parsed.Stdout),
		"stderr_bytes", len(parsed.Stderr),
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{Stdout: parsed.Stdout, Stderr: parsed.Stderr, ExitCode: parsed.ExitCode}, nil
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
