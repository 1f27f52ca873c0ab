package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findIndex returns the position of the first event matching the
// predicate, or -1.
func findIndex(events []WSEvent, predicate func(WSEvent) bool) int {
	for i, ev := range events {
		if predicate(ev) {
			return i
		}
	}
	return -1
}

// A summarizer replan request burns one replan iteration: clients see a
// recoverable error, a replan step, and a fresh plan that succeeds.
func TestReplanRecoversAndCompletes(t *testing.T) {
	script := NewScriptedLLM().
		Add("Plan: Check recent reports.\n" +
			"#E1 = Search[recent reports on the height]").
		Add("<reworded_query>recent height reports</reworded_query>").
		Add("<replan>The results were stale and did not answer the question.</replan>").
		Add("The first plan relied on stale sources; query the official survey instead.").
		Add("Plan: Query the official survey.\n" +
			"#E1 = Search[official survey height]").
		Add("<reworded_query>official survey height</reworded_query>").
		Add("<answer>8849 metres per the official survey.</answer>").
		Add("<answer>8849 metres.</answer>").
		Add("The official survey puts the height at 8849 metres.")

	app := NewTestApp(t, WithScript(script))
	ws := app.Connect(t)
	ws.WaitForEventType("connection", 5*time.Second)

	id := app.startSearch(t, "How tall is the mountain?")
	received := ws.CollectUntil(func(ev WSEvent) bool {
		return ev.Type == "search_complete" && ev.SearchID == id
	}, 10*time.Second)

	// The failed step, the recoverable error, and the replan step arrive
	// in that order.
	failedIdx := findIndex(received, func(ev WSEvent) bool {
		return ev.Type == "step_update" && ev.Data()["step_id"] == id+"_search_2" && ev.Data()["status"] == "failed"
	})
	errorIdx := findIndex(received, func(ev WSEvent) bool {
		return ev.Type == "error" && ev.SearchID == id
	})
	replanIdx := findIndex(received, func(ev WSEvent) bool {
		return ev.Type == "step_update" && ev.Data()["step_id"] == id+"_replan_3" && ev.Data()["status"] == "running"
	})
	require.GreaterOrEqual(t, failedIdx, 0, "failed search step event")
	require.GreaterOrEqual(t, errorIdx, 0, "recoverable error event")
	require.GreaterOrEqual(t, replanIdx, 0, "replan step event")
	require.Less(t, failedIdx, errorIdx)
	require.Less(t, errorIdx, replanIdx)

	errData := received[errorIdx].Data()
	assert.Equal(t, true, errData["recoverable"])
	assert.Equal(t, "search_unsatisfactory", errData["error_code"])
	assert.Equal(t, id+"_search_2", errData["step_id"])

	complete := received[len(received)-1].Data()
	assert.Equal(t, float64(7), complete["total_steps"])

	// Both plan rounds searched, with their own reworded queries.
	require.Equal(t, []string{"recent height reports", "official survey height"}, app.Web.SearchQueries())
	require.Equal(t, 9, app.LLM.CallCount())

	sess := app.getJSON(t, "/api/v1/search/"+id, http.StatusOK)
	assert.Equal(t, "completed", sess["status"])
	assert.Equal(t, "The official survey puts the height at 8849 metres.", sess["final_answer"])

	// Sources survive the failed round.
	sources, _ := sess["sources"].([]any)
	assert.Len(t, sources, 2)
}

// With the replan budget exhausted the failure is terminal: one
// unrecoverable error event, no completion, session in error.
func TestReplanBudgetExhausted(t *testing.T) {
	script := NewScriptedLLM().
		Add("Plan: Check recent reports.\n" +
			"#E1 = Search[recent reports on the height]").
		Add("<reworded_query>recent height reports</reworded_query>").
		Add("<replan>The results were stale.</replan>")

	app := NewTestApp(t, WithScript(script), WithMaxReplans(0))
	ws := app.Connect(t)
	ws.WaitForEventType("connection", 5*time.Second)

	id := app.startSearch(t, "How tall is the mountain?")
	errEv := ws.WaitForEvent(func(ev WSEvent) bool {
		return ev.Type == "error" && ev.SearchID == id
	}, 10*time.Second)

	data := errEv.Data()
	assert.Equal(t, false, data["recoverable"])
	assert.Equal(t, "search_unsatisfactory", data["error_code"])
	assert.Equal(t, "search results did not answer the step", data["error"])

	app.waitForSessionStatus(t, id, "error")
	require.Equal(t, 3, app.LLM.CallCount())
	assert.Empty(t, ws.EventsByType("search_complete"))

	sess := app.getJSON(t, "/api/v1/search/"+id, http.StatusOK)
	assert.Equal(t, "error", sess["status"])
	assert.Equal(t, "search results did not answer the step", sess["error"])
	assert.Equal(t, "search_unsatisfactory", sess["error_code"])

	// Status endpoint falls back to idle with partial progress.
	status := app.getJSON(t, "/api/v1/search/"+id+"/status", http.StatusOK)
	assert.Equal(t, "idle", status["current_step"])
	assert.Equal(t, float64(25), status["progress"])
}

// Unparseable planner output fails the plan step and replans; the
// second round completes the search.
func TestPlanParseFailureReplans(t *testing.T) {
	script := NewScriptedLLM().
		Add("I cannot produce a plan for that.").
		Add("The planner answered in prose; restate the task as tool steps.").
		Add("Plan: Look it up.\n" +
			"#E1 = Search[height of the mountain]").
		Add("<reworded_query>mountain height</reworded_query>").
		Add("<answer>8849 metres.</answer>").
		Add("<answer>8849 metres.</answer>").
		Add("The mountain stands 8849 metres tall.")

	app := NewTestApp(t, WithScript(script))
	ws := app.Connect(t)
	ws.WaitForEventType("connection", 5*time.Second)

	id := app.startSearch(t, "How tall is the mountain?")
	received := ws.CollectUntil(func(ev WSEvent) bool {
		return ev.Type == "search_complete" && ev.SearchID == id
	}, 10*time.Second)

	errorIdx := findIndex(received, func(ev WSEvent) bool {
		return ev.Type == "error" && ev.SearchID == id
	})
	require.GreaterOrEqual(t, errorIdx, 0)
	errData := received[errorIdx].Data()
	assert.Equal(t, true, errData["recoverable"])
	assert.Equal(t, "plan_parse_empty", errData["error_code"])
	assert.Equal(t, id+"_plan_1", errData["step_id"])

	require.Equal(t, 7, app.LLM.CallCount())

	sess := app.getJSON(t, "/api/v1/search/"+id, http.StatusOK)
	assert.Equal(t, "completed", sess["status"])
	steps, _ := sess["steps"].([]any)
	require.Len(t, steps, 6)
	firstStep, _ := steps[0].(map[string]any)
	assert.Equal(t, "failed", firstStep["status"])
}
