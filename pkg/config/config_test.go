package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.LLM.BaseURL = "http://llm.local/v1"
	cfg.LLM.Model = "test-model"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validTestConfig().Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := validTestConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroConcurrency(t *testing.T) {
	cfg := validTestConfig()
	cfg.Research.MaxConcurrentSearches = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveTimers(t *testing.T) {
	cfg := validTestConfig()
	cfg.Research.SearchTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.Sessions.SweepInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = validTestConfig()
	cfg.Events.WriteTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestNormalizeClampsReplanIter(t *testing.T) {
	cfg := validTestConfig()
	cfg.Research.MaxReplanIter = -3
	cfg.Normalize()
	assert.Equal(t, 0, cfg.Research.MaxReplanIter)

	cfg.Research.MaxReplanIter = 9
	cfg.Normalize()
	assert.Equal(t, 2, cfg.Research.MaxReplanIter)

	cfg.Research.MaxReplanIter = 2
	cfg.Normalize()
	assert.Equal(t, 2, cfg.Research.MaxReplanIter)
}

func TestNormalizeRestoresBrokenValues(t *testing.T) {
	cfg := validTestConfig()
	cfg.Research.RecursionLimit = 0
	cfg.Search.MaxSources = -1
	cfg.Normalize()
	assert.Equal(t, 30, cfg.Research.RecursionLimit)
	assert.Equal(t, 3, cfg.Search.MaxSources)
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9000}
	assert.Equal(t, "127.0.0.1:9000", s.Addr())
}
