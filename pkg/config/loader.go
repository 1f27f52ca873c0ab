package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the optional YAML file layout. Durations are given in
// seconds so file values line up with the *_SECONDS environment variables.
type fileConfig struct {
	Server   fileServer   `yaml:"server"`
	LLM      fileLLM      `yaml:"llm"`
	Search   fileSearch   `yaml:"search"`
	Sandbox  fileSandbox  `yaml:"sandbox"`
	Research fileResearch `yaml:"research"`
	Sessions fileSessions `yaml:"sessions"`
	Events   fileEvents   `yaml:"events"`
	Logging  fileLogging  `yaml:"logging"`
}

type fileServer struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type fileLLM struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type fileSearch struct {
	SerperAPIKey        string `yaml:"serper_api_key"`
	SerperURL           string `yaml:"serper_url"`
	JinaAPIKey          string `yaml:"jina_api_key"`
	JinaURL             string `yaml:"jina_url"`
	MaxSources          int    `yaml:"max_sources"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	MaxPageBytes        int64  `yaml:"max_page_bytes"`
	ChunkChars          int    `yaml:"chunk_chars"`
	TopChunks           int    `yaml:"top_chunks"`
}

type fileSandbox struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type fileResearch struct {
	MaxConcurrentSearches int  `yaml:"max_concurrent_searches"`
	SearchTimeoutSeconds  int  `yaml:"search_timeout_seconds"`
	MaxReplanIter         *int `yaml:"max_replan_iter"`
	RecursionLimit        int  `yaml:"recursion_limit"`
}

type fileSessions struct {
	IdleTTLSeconds       int `yaml:"idle_ttl_seconds"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

type fileEvents struct {
	HeartbeatIntervalSeconds int `yaml:"heartbeat_interval_seconds"`
	WriteTimeoutSeconds      int `yaml:"write_timeout_seconds"`
}

type fileLogging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Initialize loads, normalizes, and validates configuration.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. If configFile is set, read it, expand {{.VAR}} env references,
//     parse YAML, and merge over defaults (non-zero values win)
//  3. Apply environment variable overrides
//  4. Clamp out-of-range values
//  5. Validate
func Initialize(configFile string) (*Config, error) {
	log := slog.With("config_file", configFile)

	cfg := DefaultConfig()

	if configFile != "" {
		overlay, replanIter, err := loadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := mergo.Merge(cfg, overlay, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
		// Applied outside the merge so an explicit 0 in the file is honored
		// (mergo skips zero values).
		if replanIter != nil {
			cfg.Research.MaxReplanIter = *replanIter
		}
	}

	applyEnv(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"addr", cfg.Server.Addr(),
		"llm_model", cfg.LLM.Model,
		"max_concurrent_searches", cfg.Research.MaxConcurrentSearches,
		"max_replan_iter", cfg.Research.MaxReplanIter)

	return cfg, nil
}

// loadFile reads and parses the YAML file into a sparse Config overlay.
// Unset fields stay zero so the mergo merge leaves defaults untouched.
// max_replan_iter comes back separately because its zero value is meaningful.
func loadFile(path string) (Config, *int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil, fmt.Errorf("config file not found: %s", path)
		}
		return Config{}, nil, err
	}

	// Expand environment variables using {{.VAR}} template syntax before
	// YAML parsing so secrets can live outside the file.
	data = ExpandEnv(data)

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return fc.toConfig(), fc.Research.MaxReplanIter, nil
}

// toConfig converts the file layout into a Config overlay, translating
// second counts into durations. Zero values mean "not set".
func (fc fileConfig) toConfig() Config {
	cfg := Config{
		Server: ServerConfig{
			Host:        fc.Server.Host,
			Port:        fc.Server.Port,
			CORSOrigins: fc.Server.CORSOrigins,
		},
		LLM: LLMConfig{
			BaseURL:     fc.LLM.BaseURL,
			APIKey:      fc.LLM.APIKey,
			Model:       fc.LLM.Model,
			Temperature: fc.LLM.Temperature,
			MaxTokens:   fc.LLM.MaxTokens,
			Timeout:     secondsToDuration(fc.LLM.TimeoutSeconds),
		},
		Search: SearchConfig{
			SerperAPIKey: fc.Search.SerperAPIKey,
			SerperURL:    fc.Search.SerperURL,
			JinaAPIKey:   fc.Search.JinaAPIKey,
			JinaURL:      fc.Search.JinaURL,
			MaxSources:   fc.Search.MaxSources,
			FetchTimeout: secondsToDuration(fc.Search.FetchTimeoutSeconds),
			MaxPageBytes: fc.Search.MaxPageBytes,
			ChunkChars:   fc.Search.ChunkChars,
			TopChunks:    fc.Search.TopChunks,
		},
		Sandbox: SandboxConfig{
			URL:     fc.Sandbox.URL,
			Timeout: secondsToDuration(fc.Sandbox.TimeoutSeconds),
		},
		Research: ResearchConfig{
			MaxConcurrentSearches: fc.Research.MaxConcurrentSearches,
			SearchTimeout:         secondsToDuration(fc.Research.SearchTimeoutSeconds),
			RecursionLimit:        fc.Research.RecursionLimit,
		},
		Sessions: SessionsConfig{
			IdleTTL:       secondsToDuration(fc.Sessions.IdleTTLSeconds),
			SweepInterval: secondsToDuration(fc.Sessions.SweepIntervalSeconds),
		},
		Events: EventsConfig{
			HeartbeatInterval: secondsToDuration(fc.Events.HeartbeatIntervalSeconds),
			WriteTimeout:      secondsToDuration(fc.Events.WriteTimeoutSeconds),
		},
		Logging: LoggingConfig{
			Level:  fc.Logging.Level,
			Format: fc.Logging.Format,
		},
	}
	return cfg
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// applyEnv applies environment variable overrides on top of defaults+file.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "HOST")
	setInt(&cfg.Server.Port, "PORT")
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok && v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.Server.CORSOrigins = origins
	}

	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setFloat(&cfg.LLM.Temperature, "LLM_TEMPERATURE")
	setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS")
	setSeconds(&cfg.LLM.Timeout, "LLM_TIMEOUT_SECONDS")

	setString(&cfg.Search.SerperAPIKey, "SERPER_API_KEY")
	setString(&cfg.Search.SerperURL, "SERPER_URL")
	setString(&cfg.Search.JinaAPIKey, "JINA_API_KEY")
	setString(&cfg.Search.JinaURL, "JINA_URL")
	setInt(&cfg.Search.MaxSources, "MAX_SOURCES_PER_SEARCH")

	setString(&cfg.Sandbox.URL, "SANDBOX_URL")
	setSeconds(&cfg.Sandbox.Timeout, "SANDBOX_TIMEOUT_SECONDS")

	setInt(&cfg.Research.MaxConcurrentSearches, "MAX_CONCURRENT_SEARCHES")
	setSeconds(&cfg.Research.SearchTimeout, "SEARCH_TIMEOUT_SECONDS")
	setInt(&cfg.Research.MaxReplanIter, "MAX_REPLAN_ITER")
	setInt(&cfg.Research.RecursionLimit, "RECURSION_LIMIT")

	setSeconds(&cfg.Sessions.IdleTTL, "SESSION_IDLE_TTL_SECONDS")
	setSeconds(&cfg.Sessions.SweepInterval, "SESSION_SWEEP_INTERVAL_SECONDS")

	setSeconds(&cfg.Events.HeartbeatInterval, "HEARTBEAT_INTERVAL_SECONDS")
	setSeconds(&cfg.Events.WriteTimeout, "WS_WRITE_TIMEOUT_SECONDS")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring invalid integer environment variable", "key", key, "value", v)
		return
	}
	*dst = n
}

func setFloat(dst *float64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Ignoring invalid float environment variable", "key", key, "value", v)
		return
	}
	*dst = f
}

func setSeconds(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid seconds environment variable", "key", key, "value", v)
		return
	}
	*dst = time.Duration(n) * time.Second
}
