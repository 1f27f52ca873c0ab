package config

import "time"

// DefaultConfig returns the built-in defaults. YAML and environment
// overrides are layered on top by Initialize.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
			},
		},
		LLM: LLMConfig{
			Temperature: 0.0,
			MaxTokens:   4096,
			Timeout:     120 * time.Second,
		},
		Search: SearchConfig{
			MaxSources:   3,
			FetchTimeout: 15 * time.Second,
			MaxPageBytes: 2 << 20, // 2 MiB
			ChunkChars:   1200,
			TopChunks:    5,
		},
		Sandbox: SandboxConfig{
			Timeout: 60 * time.Second,
		},
		Research: ResearchConfig{
			MaxConcurrentSearches: 10,
			SearchTimeout:         300 * time.Second,
			MaxReplanIter:         1,
			RecursionLimit:        30,
		},
		Sessions: SessionsConfig{
			IdleTTL:       30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Events: EventsConfig{
			HeartbeatInterval: 30 * time.Second,
			WriteTimeout:      5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
