package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprobe/deepsearch/pkg/models"
)

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubLLM{}, 2)

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
	_, err := time.Parse(time.RFC3339Nano, resp.Timestamp)
	assert.NoError(t, err)
}

func TestStatsEndpoint(t *testing.T) {
	client := newBlockingLLM()
	srv := newTestServer(t, client, 2)

	// One finished session and one still running.
	done := srv.store.Create("finished")
	require.NoError(t, srv.store.MarkRunning(done.ID))
	require.NoError(t, srv.store.MarkTerminal(done.ID, models.StatusCompleted, "", ""))

	rec := do(srv, postJSON("/api/v1/search", `{"query":"still running"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var started StartSearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	select {
	case <-client.started:
	case <-time.After(2 * time.Second):
		t.Fatal("search never reached the model")
	}

	rec = do(srv, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Sessions.TotalSessions)
	assert.Equal(t, 1, resp.Sessions.ActiveSessions)
	assert.Equal(t, 1, resp.Sessions.CompletedSessions)
	assert.Equal(t, 0, resp.Sessions.FailedSessions)
	assert.Equal(t, 0, resp.Connections)
	assert.Equal(t, 1, resp.RunningTasks)
	assert.Equal(t, []string{started.SearchID}, resp.ActiveSearches)
}

func TestStatsEndpointEmpty(t *testing.T) {
	srv := newTestServer(t, &stubLLM{}, 2)

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	// active_searches must serialize as an empty array, not null.
	assert.Contains(t, rec.Body.String(), `"active_searches":[]`)
}
