// Package e2e boots the full server against scripted collaborators and
// drives it over real HTTP and WebSocket connections. The model client
// is scripted per test; search, reranking, and code execution hit local
// fake servers.
package e2e

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openprobe/deepsearch/pkg/api"
	"github.com/openprobe/deepsearch/pkg/config"
	"github.com/openprobe/deepsearch/pkg/events"
	"github.com/openprobe/deepsearch/pkg/metrics"
	"github.com/openprobe/deepsearch/pkg/orchestrator"
	"github.com/openprobe/deepsearch/pkg/sandbox"
	"github.com/openprobe/deepsearch/pkg/session"
	"github.com/openprobe/deepsearch/pkg/tools"
	"github.com/openprobe/deepsearch/pkg/websearch"
)

// TestApp is a fully wired server instance listening on an ephemeral
// port, with handles on every layer a test may want to inspect.
type TestApp struct {
	Config      *config.Config
	LLM         *ScriptedLLM
	Web         *FakeWeb
	Store       *session.Store
	ConnManager *events.ConnectionManager
	Service     *orchestrator.Service
	Server      *api.Server

	BaseURL string
	WSURL   string

	t *testing.T
}

type appOptions struct {
	llm    *ScriptedLLM
	rerank bool
	mutate []func(*config.Config)
}

// AppOption customizes the app before wiring.
type AppOption func(*appOptions)

// WithScript installs a pre-scripted model client.
func WithScript(llm *ScriptedLLM) AppOption {
	return func(o *appOptions) { o.llm = llm }
}

// WithConfig applies an arbitrary config mutation after the fake
// collaborator URLs are set.
func WithConfig(mutate func(*config.Config)) AppOption {
	return func(o *appOptions) { o.mutate = append(o.mutate, mutate) }
}

// WithMaxConcurrent caps simultaneously running searches.
func WithMaxConcurrent(n int) AppOption {
	return WithConfig(func(c *config.Config) { c.Research.MaxConcurrentSearches = n })
}

// WithSearchTimeout bounds each research run.
func WithSearchTimeout(d time.Duration) AppOption {
	return WithConfig(func(c *config.Config) { c.Research.SearchTimeout = d })
}

// WithMaxReplans sets the replan budget.
func WithMaxReplans(n int) AppOption {
	return WithConfig(func(c *config.Config) { c.Research.MaxReplanIter = n })
}

// WithHeartbeatInterval speeds up hub heartbeats for stream tests.
func WithHeartbeatInterval(d time.Duration) AppOption {
	return WithConfig(func(c *config.Config) { c.Events.HeartbeatInterval = d })
}

// WithRerank enables the reranking pipeline against the fake reranker,
// which also switches search steps from snippet context to full page
// processing.
func WithRerank() AppOption {
	return func(o *appOptions) { o.rerank = true }
}

// NewTestApp boots the whole stack and registers teardown with the
// test. Collaborator fakes start first so their URLs can go into the
// configuration.
func NewTestApp(t *testing.T, opts ...AppOption) *TestApp {
	t.Helper()

	o := &appOptions{llm: NewScriptedLLM()}
	for _, opt := range opts {
		opt(o)
	}

	// 1. Fake collaborators and configuration.
	web := NewFakeWeb()
	cfg := config.DefaultConfig()
	cfg.Search.SerperAPIKey = "test-serper-key"
	cfg.Search.SerperURL = web.Search.URL
	cfg.Search.FetchTimeout = 2 * time.Second
	cfg.Sandbox.URL = web.Executor.URL
	cfg.Research.MaxConcurrentSearches = 2
	cfg.Research.SearchTimeout = 10 * time.Second
	cfg.Research.MaxReplanIter = 1
	if o.rerank {
		cfg.Search.JinaAPIKey = "test-jina-key"
		cfg.Search.JinaURL = web.Rerank.URL
	}
	for _, mutate := range o.mutate {
		mutate(cfg)
	}

	// 2. Session store and retention sweeper.
	store := session.NewStore()
	sweeper := session.NewSweeper(store, cfg.Sessions)
	sweeper.Start(context.Background())

	// 3. Event hub.
	connManager := events.NewConnectionManager(cfg.Events)
	connManager.Start(context.Background())

	// 4. Metrics.
	m := metrics.New()

	// 5. Tool workers pointed at the fakes.
	searcher := websearch.NewProcessor(cfg.Search)
	runner := sandbox.NewClient(cfg.Sandbox)
	toolSet := tools.NewSet(o.llm, searcher, runner)

	// 6. Research orchestrator.
	service := orchestrator.New(cfg.Research, o.llm, toolSet, store, connManager, m)
	m.RegisterRuntimeGauges(connManager.ActiveConnections, service.ActiveRuns)

	// 7. HTTP server on an ephemeral port.
	server := api.New(cfg.Server, service, store, connManager, m)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.StartWithListener(ln) }()

	addr := ln.Addr().String()
	app := &TestApp{
		Config:      cfg,
		LLM:         o.llm,
		Web:         web,
		Store:       store,
		ConnManager: connManager,
		Service:     service,
		Server:      server,
		BaseURL:     "http://" + addr,
		WSURL:       "ws://" + addr + "/ws",
		t:           t,
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		service.Stop()
		sweeper.Stop()
		connManager.Stop()
		web.Close()
	})
	return app
}

// Connect opens a WebSocket client on the app's stream.
func (app *TestApp) Connect(t *testing.T) *WSClient {
	t.Helper()
	return WSConnect(t, app.WSURL)
}
