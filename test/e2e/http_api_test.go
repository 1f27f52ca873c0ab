package e2e

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Rejected queries never reach the model and carry the uniform error
// body over the wire.
func TestSearchValidationOverHTTP(t *testing.T) {
	app := NewTestApp(t)

	body := app.postJSON(t, "/api/v1/search", map[string]string{"query": "   "}, http.StatusBadRequest)
	assert.Equal(t, "invalid_query", body["error_code"])
	assert.Equal(t, "Query cannot be empty", body["detail"])

	ts, _ := body["timestamp"].(string)
	_, err := time.Parse(time.RFC3339Nano, ts)
	require.NoError(t, err, "timestamp %q", ts)

	long := strings.Repeat("x", 1001)
	body = app.postJSON(t, "/api/v1/search", map[string]string{"query": long}, http.StatusBadRequest)
	assert.Equal(t, "invalid_query", body["error_code"])
	assert.Equal(t, "Query too long (max 1000 characters)", body["detail"])

	assert.Zero(t, app.LLM.CallCount())
}

// Submissions beyond the concurrency cap are rejected while the
// running search shows up in the stats.
func TestCapacityLimitOverHTTP(t *testing.T) {
	onBlock := make(chan struct{}, 1)
	script := NewScriptedLLM().
		AddEntry(ScriptEntry{BlockUntilCancelled: true, OnBlock: onBlock})

	app := NewTestApp(t, WithScript(script), WithMaxConcurrent(1))
	id := app.startSearch(t, "first question")
	select {
	case <-onBlock:
	case <-time.After(5 * time.Second):
		t.Fatal("search never reached the model")
	}

	body := app.postJSON(t, "/api/v1/search", map[string]string{"query": "second question"}, http.StatusTooManyRequests)
	assert.Equal(t, "capacity", body["error_code"])
	assert.Equal(t, "Too many concurrent searches, try again later", body["detail"])

	stats := app.getJSON(t, "/stats", http.StatusOK)
	assert.Equal(t, float64(1), stats["running_tasks"])
	running, _ := stats["active_searches"].([]any)
	require.Equal(t, []any{id}, running)
	sessions, _ := stats["sessions"].(map[string]any)
	require.NotNil(t, sessions)
	assert.Equal(t, float64(1), sessions["total_sessions"])
	assert.Equal(t, float64(1), sessions["active_sessions"])
}

func TestHealthAndStats(t *testing.T) {
	app := NewTestApp(t)

	health := app.getJSON(t, "/health", http.StatusOK)
	assert.Equal(t, "healthy", health["status"])
	assert.NotEmpty(t, health["version"])
	uptime, ok := health["uptime_seconds"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, uptime, float64(0))

	stats := app.getJSON(t, "/stats", http.StatusOK)
	assert.Equal(t, float64(0), stats["connections"])
	assert.Equal(t, float64(0), stats["running_tasks"])

	// A connected stream client is visible immediately after its
	// greeting arrives.
	ws := app.Connect(t)
	ws.WaitForEventType("connection", 5*time.Second)
	stats = app.getJSON(t, "/stats", http.StatusOK)
	assert.Equal(t, float64(1), stats["connections"])
}

// One completed search shows up across the Prometheus counters.
func TestMetricsOverHTTP(t *testing.T) {
	script := NewScriptedLLM().
		Add("Plan: Reason it out.\n" +
			"#E1 = LLM[State the answer to the question directly]").
		Add("<answer>The answer is 42.</answer>").
		Add("<answer>42</answer>").
		Add("The answer works out to 42.")

	app := NewTestApp(t, WithScript(script))
	id := app.startSearch(t, "What is the answer?")
	app.waitForSessionStatus(t, id, "completed")

	var body string
	require.Eventually(t, func() bool {
		body = app.scrapeMetrics(t)
		return strings.Contains(body, `deepsearch_searches_finished_total{status="completed"} 1`) &&
			strings.Contains(body, "deepsearch_active_searches 0")
	}, 10*time.Second, 50*time.Millisecond, "metrics never settled:\n%s", body)

	assert.Contains(t, body, "deepsearch_searches_started_total 1")
	assert.Contains(t, body, `deepsearch_tool_calls_total{outcome="answer",tool="LLM"} 1`)
	assert.Contains(t, body, "deepsearch_search_duration_seconds_count 1")
	assert.Contains(t, body, "deepsearch_ws_connections 0")
}

// Echo's routing errors render the same error body as handler failures.
func TestRoutingErrorsOverHTTP(t *testing.T) {
	app := NewTestApp(t)

	body := app.getJSON(t, "/no/such/route", http.StatusNotFound)
	assert.Equal(t, "not_found", body["error_code"])
	assert.NotEmpty(t, body["detail"])

	resp, err := http.Get(app.BaseURL + "/api/v1/search")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
