package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openprobe/deepsearch/pkg/models"
)

// postJSON sends a JSON body and decodes the JSON response, failing the
// test unless the status matches.
func (app *TestApp) postJSON(t *testing.T, path string, body any, expectedStatus int) map[string]any {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(app.BaseURL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	return decodeBody(t, resp, path, expectedStatus)
}

// getJSON fetches a path and decodes the JSON response.
func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]any {
	t.Helper()

	resp, err := http.Get(app.BaseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	return decodeBody(t, resp, path, expectedStatus)
}

func decodeBody(t *testing.T, resp *http.Response, path string, expectedStatus int) map[string]any {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, resp.StatusCode,
		"%s returned %d: %s", path, resp.StatusCode, string(data))

	if len(data) == 0 {
		return map[string]any{}
	}
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	return parsed
}

// startSearch submits a query and returns the assigned search ID.
func (app *TestApp) startSearch(t *testing.T, query string) string {
	t.Helper()

	body := app.postJSON(t, "/api/v1/search", map[string]string{"query": query}, http.StatusOK)
	require.Equal(t, "started", body["status"])
	id, _ := body["search_id"].(string)
	require.NotEmpty(t, id)
	return id
}

// waitForSessionStatus polls the store until the session reaches the
// wanted status.
func (app *TestApp) waitForSessionStatus(t *testing.T, searchID string, want models.SessionStatus) {
	t.Helper()

	require.Eventually(t, func() bool {
		sess, ok := app.Store.Get(searchID)
		return ok && sess.Status == want
	}, 10*time.Second, 25*time.Millisecond, "session %s never reached %s", searchID, want)
}

// scrapeMetrics fetches the Prometheus exposition text.
func (app *TestApp) scrapeMetrics(t *testing.T) string {
	t.Helper()

	resp, err := http.Get(app.BaseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return string(data)
}

// stepTransitions projects a search's step events onto "step_id status"
// strings, in arrival order.
func stepTransitions(received []WSEvent, searchID string) []string {
	var out []string
	for _, ev := range received {
		if ev.SearchID != searchID || ev.Type != "step_update" {
			continue
		}
		data := ev.Data()
		out = append(out, fmt.Sprintf("%v %v", data["step_id"], data["status"]))
	}
	return out
}
