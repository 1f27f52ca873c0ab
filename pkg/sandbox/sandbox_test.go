package sandbox

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
)

func TestRun(t *testing.T) {
	var gotReq runRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"stdout": "180\n", "stderr": "", "exit_code": 0}`))
	}))
	defer server.Close()

	client := NewClient(config.SandboxConfig{URL: server.URL, Timeout: 2 * time.Second})
	result, err := client.Run(context.Background(), "print(90 * 2)")
	require.NoError(t, err)

	assert.Equal(t, "python", gotReq.Language)
	assert.Equal(t, "print(90 * 2)", gotReq.Source)
	assert.Equal(t, "180\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, 0, result.ExitCode)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stdout": "", "stderr": "NameError: name 'x' is not defined", "exit_code": 1}`))
	}))
	defer server.Close()

	client := NewClient(config.SandboxConfig{URL: server.URL, Timeout: time.Second})
	result, err := client.Run(context.Background(), "print(x)")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Stderr, "NameError")
}

func TestRunRequiresURL(t *testing.T) {
	client := NewClient(config.SandboxConfig{Timeout: time.Second})
	_, err := client.Run(context.Background(), "print(1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestRunSurfacesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("executor overloaded"))
	}))
	defer server.Close()

	client := NewClient(config.SandboxConfig{URL: server.URL, Timeout: time.Second})
	_, err := client.Run(context.Background(), "print(1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "executor overloaded")
}

func TestRunHonorsContext(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(config.SandboxConfig{URL: server.URL, Timeout: 5 * time.Second})
	_, err := client.Run(ctx, "print(1)")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
