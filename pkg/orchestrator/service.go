// Package orchestrator runs research sessions end to end. A run plans
// with the LLM, executes the plan steps through the tool adapters,
// reflects and replans when a step cannot produce evidence, and finally
// synthesizes the answer. Progress is recorded on the session store and
// broadcast as WebSocket events from the run's own goroutine, so each
// session's events arrive in order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openprobe/deepsearch/pkg/config"
	"github.com/openprobe/deepsearch/pkg/events"
	"github.com/openprobe/deepsearch/pkg/llm"
	"github.com/openprobe/deepsearch/pkg/metrics"
	"github.com/openprobe/deepsearch/pkg/models"
	"github.com/openprobe/deepsearch/pkg/scheduler"
	"github.com/openprobe/deepsearch/pkg/session"
	"github.com/openprobe/deepsearch/pkg/tools"
)

// maxQueryLen caps submitted queries, in characters.
const maxQueryLen = 1000

// settleTimeout bounds how long cancellation waits for a cancelled
// run's goroutine to unwind.
const settleTimeout = 5 * time.Second

// Broadcaster pushes an event to every connected WebSocket client.
type Broadcaster interface {
	Broadcast(events.Envelope)
}

// Service owns the research lifecycle: submission, execution,
// cancellation, and session reset.
type Service struct {
	cfg     config.ResearchConfig
	llm     llm.Client
	tools   *tools.Set
	store   *session.Store
	events  Broadcaster
	metrics *metrics.Metrics
	sched   *scheduler.Scheduler
	logger  *slog.Logger
}

// New wires the service. The scheduler it creates runs searches on
// goroutines owned by the service, so Stop must be called on shutdown.
func New(cfg config.ResearchConfig, client llm.Client, set *tools.Set, store *session.Store, bus Broadcaster, m *metrics.Metrics) *Service {
	s := &Service{
		cfg:     cfg,
		llm:     client,
		tools:   set,
		store:   store,
		events:  bus,
		metrics: m,
		logger:  slog.With("component", "orchestrator"),
	}
	s.sched = scheduler.New(cfg, s.runSearch)
	return s
}

// StartSearch validates the query, creates a session, and launches its
// run. The search ID is returned immediately; progress flows over the
// event bus.
func (s *Service) StartSearch(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", &RunError{Kind: models.KindInvalidQuery, Msg: "Query cannot be empty"}
	}
	if utf8.RuneCountInString(q) > maxQueryLen {
		return "", &RunError{Kind: models.KindInvalidQuery, Msg: fmt.Sprintf("Query too long (max %d characters)", maxQueryLen)}
	}

	sess := s.store.Create(q)
	if err := s.sched.Launch(sess.ID, q); err != nil {
		s.store.Discard(sess.ID)
		if errors.Is(err, scheduler.ErrCapacity) {
			return "", &RunError{Kind: models.KindCapacity, Msg: "Too many concurrent searches, try again later", err: err}
		}
		return "", fmt.Errorf("launch search: %w", err)
	}

	s.metrics.SearchStarted()
	s.logger.Info("Search accepted", "search_id", sess.ID)
	return sess.ID, nil
}

// CancelSearch stops a running search and waits for its run to unwind,
// so the session is already terminal when this returns. Returns
// session.ErrNotFound for an unknown ID and ErrNotRunning when the
// session already reached a terminal state.
func (s *Service) CancelSearch(ctx context.Context, id string) error {
	sess, ok := s.store.Get(id)
	if !ok {
		return session.ErrNotFound
	}
	if sess.Status.Terminal() || !s.sched.Cancel(id) {
		return ErrNotRunning
	}
	s.logger.Info("Search cancel requested", "search_id", id)

	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	s.sched.Wait(waitCtx, id)
	return nil
}

// ResetAll cancels every running search, waits for the runs to unwind,
// drops all sessions, and tells connected clients to start over. The
// wait means cancelled runs record their state and emit their events
// before the reset lands. Returns the number of cleared sessions.
func (s *Service) ResetAll(ctx context.Context) int {
	cancelled := s.sched.CancelAll()
	if cancelled > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, settleTimeout)
		defer cancel()
		s.sched.WaitAll(waitCtx)
	}

	cleared := s.store.ClearAll()
	s.events.Broadcast(events.NewSessionReset("New chat started"))
	s.logger.Info("Session reset", "cancelled", cancelled, "cleared", cleared)
	return cleared
}

// ActiveRuns reports how many searches are currently executing.
func (s *Service) ActiveRuns() int {
	return s.sched.ActiveCount()
}

// RunningIDs lists the searches currently executing, sorted.
func (s *Service) RunningIDs() []string {
	return s.sched.RunningIDs()
}

// Stop cancels all running searches and waits for their goroutines to
// finish.
func (s *Service) Stop() {
	s.sched.Stop()
}
