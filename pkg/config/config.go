// Package config loads and validates application configuration.
//
// Precedence, lowest to highest: built-in defaults, the optional YAML file,
// environment variables. The YAML file may reference environment variables
// with {{.VAR}} template syntax.
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// Config is the resolved runtime configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Research ResearchConfig `yaml:"research"`
	Sessions SessionsConfig `yaml:"sessions"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// CORSOrigins is the allowlist for browser clients (dashboard dev
	// servers by default).
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig holds the settings for the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"-"`
}

// SearchConfig holds web search and source processing settings.
type SearchConfig struct {
	// SerperAPIKey authenticates against the Serper search API.
	SerperAPIKey string `yaml:"serper_api_key"`
	// SerperURL is overridable for tests; empty means the public endpoint.
	SerperURL string `yaml:"serper_url"`

	// JinaAPIKey enables chunk reranking. Empty key disables reranking and
	// the source processor falls back to snippet-only context.
	JinaAPIKey string `yaml:"jina_api_key"`
	JinaURL    string `yaml:"jina_url"`

	// MaxSources caps how many organic results are fetched and processed
	// per search step.
	MaxSources int `yaml:"max_sources"`

	FetchTimeout time.Duration `yaml:"-"`
	// MaxPageBytes caps a fetched page body; larger pages fall back to
	// the search snippet.
	MaxPageBytes int64 `yaml:"max_page_bytes"`
	// ChunkChars is the target chunk size for rerank candidates.
	ChunkChars int `yaml:"chunk_chars"`
	// TopChunks is how many reranked chunks go into the context block.
	TopChunks int `yaml:"top_chunks"`
}

// SandboxConfig holds the code executor settings.
type SandboxConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"-"`
}

// ResearchConfig holds the orchestrator and scheduler knobs.
type ResearchConfig struct {
	// MaxConcurrentSearches caps simultaneously running sessions.
	// Submissions beyond the cap are rejected.
	MaxConcurrentSearches int `yaml:"max_concurrent_searches"`

	// SearchTimeout bounds one research run end to end.
	SearchTimeout time.Duration `yaml:"-"`

	// MaxReplanIter bounds replans per session. Clamped to [0, 2].
	MaxReplanIter int `yaml:"max_replan_iter"`

	// RecursionLimit bounds total state machine transitions so a run
	// terminates even when collaborators misbehave.
	RecursionLimit int `yaml:"recursion_limit"`
}

// SessionsConfig holds session retention settings.
type SessionsConfig struct {
	// IdleTTL is how long a terminal session is kept after its end time.
	IdleTTL time.Duration `yaml:"-"`
	// SweepInterval is how often the sweeper scans for expired sessions.
	SweepInterval time.Duration `yaml:"-"`
}

// EventsConfig holds WebSocket hub settings.
type EventsConfig struct {
	HeartbeatInterval time.Duration `yaml:"-"`
	// WriteTimeout bounds a single send so one stuck client cannot stall
	// a broadcast.
	WriteTimeout time.Duration `yaml:"-"`
}

// LoggingConfig holds slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// maxReplanUpperBound is the hard ceiling on replans regardless of config.
const maxReplanUpperBound = 2

// Normalize clamps out-of-range values to safe bounds, logging each fix.
func (c *Config) Normalize() {
	if c.Research.MaxReplanIter < 0 {
		slog.Warn("max_replan_iter below zero, clamping", "value", c.Research.MaxReplanIter)
		c.Research.MaxReplanIter = 0
	}
	if c.Research.MaxReplanIter > maxReplanUpperBound {
		slog.Warn("max_replan_iter above upper bound, clamping",
			"value", c.Research.MaxReplanIter, "bound", maxReplanUpperBound)
		c.Research.MaxReplanIter = maxReplanUpperBound
	}
	if c.Research.RecursionLimit <= 0 {
		c.Research.RecursionLimit = DefaultConfig().Research.RecursionLimit
	}
	if c.Search.MaxSources <= 0 {
		c.Search.MaxSources = DefaultConfig().Search.MaxSources
	}
}

// Validate checks that the configuration is usable. Collaborator API keys
// are not required here: a missing key degrades the affected tool at
// runtime instead of blocking startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Research.MaxConcurrentSearches < 1 {
		return fmt.Errorf("max_concurrent_searches must be at least 1")
	}
	if c.Research.SearchTimeout <= 0 {
		return fmt.Errorf("search timeout must be positive")
	}
	if c.Sessions.IdleTTL <= 0 || c.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("session ttl and sweep interval must be positive")
	}
	if c.Events.HeartbeatInterval <= 0 || c.Events.WriteTimeout <= 0 {
		return fmt.Errorf("heartbeat interval and ws write timeout must be positive")
	}
	if c.Search.SerperAPIKey == "" {
		slog.Warn("SERPER_API_KEY not set, Search tool will fail at runtime")
	}
	if c.Sandbox.URL == "" {
		slog.Warn("SANDBOX_URL not set, Code tool will fail at runtime")
	}
	return nil
}
