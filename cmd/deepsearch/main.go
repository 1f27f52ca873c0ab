// deepsearch server — plans multi-step research runs, executes them with
// web search, code execution, and model reasoning, and streams progress
// to clients over WebSocket.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openprobe/deepsearch/pkg/api"
	"github.com/openprobe/deepsearch/pkg/config"
	"github.com/openprobe/deepsearch/pkg/events"
	"github.com/openprobe/deepsearch/pkg/llm"
	"github.com/openprobe/deepsearch/pkg/metrics"
	"github.com/openprobe/deepsearch/pkg/orchestrator"
	"github.com/openprobe/deepsearch/pkg/sandbox"
	"github.com/openprobe/deepsearch/pkg/session"
	"github.com/openprobe/deepsearch/pkg/tools"
	"github.com/openprobe/deepsearch/pkg/version"
	"github.com/openprobe/deepsearch/pkg/websearch"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	// Parse command-line flags
	configFile := flag.String("config",
		getEnv("CONFIG_FILE", ""),
		"Path to optional YAML configuration file")
	flag.Parse()

	// Load .env before reading any configuration from the environment
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	} else {
		slog.Info("Loaded environment from .env")
	}

	ctx := context.Background()

	// 1. Initialize configuration and logging
	cfg, err := config.Initialize(*configFile)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging)

	slog.Info("Starting deepsearch",
		"version", version.GitCommit,
		"addr", cfg.Server.Addr())

	// 2. Session store and retention sweeper
	store := session.NewStore()
	sweeper := session.NewSweeper(store, cfg.Sessions)
	sweeper.Start(ctx)

	// 3. WebSocket hub
	connManager := events.NewConnectionManager(cfg.Events)
	connManager.Start(ctx)

	// 4. Metrics registry
	m := metrics.New()

	// 5. Collaborator clients and plan workers
	llmClient := llm.NewHTTPClient(cfg.LLM)
	searcher := websearch.NewProcessor(cfg.Search)
	runner := sandbox.NewClient(cfg.Sandbox)
	toolSet := tools.NewSet(llmClient, searcher, runner)
	slog.Info("Tool workers initialized",
		"search_enabled", cfg.Search.SerperAPIKey != "",
		"rerank_enabled", cfg.Search.JinaAPIKey != "",
		"sandbox_enabled", cfg.Sandbox.URL != "")

	// 6. Research orchestrator
	service := orchestrator.New(cfg.Research, llmClient, toolSet, store, connManager, m)
	m.RegisterRuntimeGauges(connManager.ActiveConnections, service.ActiveRuns)

	// 7. HTTP server
	httpServer := api.New(cfg.Server, service, store, connManager, m)

	// 8. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("deepsearch started successfully",
		"max_concurrent_searches", cfg.Research.MaxConcurrentSearches)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop accepting requests, cancel running
	// searches, then stop the background loops.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		service.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Research runs stopped")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded, abandoning in-flight searches")
	}

	sweeper.Stop()
	connManager.Stop()

	slog.Info("Shutdown complete")
}
