package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeWeb hosts the external HTTP services the tool workers talk to:
// the search API, the pages its results link to, the reranker, and the
// code executor. Each fake records what it was asked so tests can
// assert on the traffic as well as the final answer.
type FakeWeb struct {
	Search   *httptest.Server
	Pages    *httptest.Server
	Rerank   *httptest.Server
	Executor *httptest.Server

	mu          sync.Mutex
	queries     []string
	sources     []string
	pageHits    int
	rerankCalls int
	execQueue   []execResult
	execDefault execResult
}

type execResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// NewFakeWeb starts all four fakes. The search API always returns two
// results pointing at the Pages server; the executor replies with the
// configured result (stdout "42\n" until changed).
func NewFakeWeb() *FakeWeb {
	f := &FakeWeb{execDefault: execResult{stdout: "42\n"}}

	f.Pages = httptest.NewServer(http.HandlerFunc(f.servePage))
	f.Search = httptest.NewServer(http.HandlerFunc(f.serveSearch))
	f.Rerank = httptest.NewServer(http.HandlerFunc(f.serveRerank))
	f.Executor = httptest.NewServer(http.HandlerFunc(f.serveExec))
	return f
}

func (f *FakeWeb) Close() {
	f.Search.Close()
	f.Pages.Close()
	f.Rerank.Close()
	f.Executor.Close()
}

// SetExecResult sets the executor's standing response.
func (f *FakeWeb) SetExecResult(stdout, stderr string, exitCode int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execDefault = execResult{stdout: stdout, stderr: stderr, exitCode: exitCode}
}

// QueueExecResult enqueues a one-shot executor response, served before
// the standing one.
func (f *FakeWeb) QueueExecResult(stdout, stderr string, exitCode int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execQueue = append(f.execQueue, execResult{stdout: stdout, stderr: stderr, exitCode: exitCode})
}

// SearchQueries returns every query string the search API received.
func (f *FakeWeb) SearchQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

// ExecutorSources returns every program the executor received.
func (f *FakeWeb) ExecutorSources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sources))
	copy(out, f.sources)
	return out
}

// PageHits reports how many source pages were fetched.
func (f *FakeWeb) PageHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageHits
}

// RerankCalls reports how many rerank requests were served.
func (f *FakeWeb) RerankCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rerankCalls
}

func (f *FakeWeb) serveSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Q   string `json:"q"`
		Num int    `json:"num"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.queries = append(f.queries, req.Q)
	f.mu.Unlock()

	type organic struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Date     string `json:"date"`
		Source   string `json:"source"`
		Position int    `json:"position"`
	}
	resp := map[string]any{
		"organic": []organic{
			{
				Title:    "Summit survey results",
				Link:     f.Pages.URL + "/survey",
				Snippet:  "The 2020 survey put the summit at 8849 metres.",
				Date:     "Dec 8, 2020",
				Source:   "example.org",
				Position: 1,
			},
			{
				Title:    "Historical measurements",
				Link:     f.Pages.URL + "/history",
				Snippet:  "Earlier estimates ranged from 8840 to 8850 metres.",
				Source:   "example.net",
				Position: 2,
			},
		},
	}
	writeJSON(w, resp)
}

func (f *FakeWeb) servePage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.pageHits++
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><title>Article %s</title></head>
<body><article>
<h1>Measuring the mountain</h1>
<p>Surveyors have measured the peak repeatedly over the last century,
and every expedition brought better instruments than the one before it.
The most recent joint survey announced a height of 8849 metres above
sea level, settling a long-running dispute between earlier figures
published by separate national agencies decades apart.</p>
<p>The announcement ended years of disagreement over whether the snow
cap should count towards the official number. Both survey teams climbed
with satellite receivers and measured the rock head beneath the snow,
then agreed to publish a single figure. This page is %s.</p>
</article></body></html>`, r.URL.Path, r.URL.Path)
}

func (f *FakeWeb) serveRerank(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model     string   `json:"model"`
		Query     string   `json:"query"`
		Documents []string `json:"documents"`
		TopN      int      `json:"top_n"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.rerankCalls++
	f.mu.Unlock()

	n := req.TopN
	if n > len(req.Documents) {
		n = len(req.Documents)
	}
	type ranked struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	}
	results := make([]ranked, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, ranked{Index: i, RelevanceScore: 0.9 - float64(i)*0.1})
	}
	writeJSON(w, map[string]any{"results": results})
}

func (f *FakeWeb) serveExec(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
		Source   string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.sources = append(f.sources, req.Source)
	result := f.execDefault
	if len(f.execQueue) > 0 {
		result = f.execQueue[0]
		f.execQueue = f.execQueue[1:]
	}
	f.mu.Unlock()
	writeJSON(w, map[string]any{
		"stdout":    result.stdout,
		"stderr":    result.stderr,
		"exit_code": result.exitCode,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
