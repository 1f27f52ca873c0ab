// Package scheduler runs research sessions as bounded concurrent tasks.
//
// Each accepted search runs in its own goroutine under a deadline
// context. The scheduler keeps a cancel registry so the API can abort
// individual searches or all of them at once.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/openprobe/deepsearch/pkg/config"
)

// ErrCapacity is returned when the concurrent search cap is reached.
var ErrCapacity = errors.New("too many concurrent searches")

// ErrStopped is returned when the scheduler is shutting down.
var ErrStopped = errors.New("scheduler stopped")

// RunFunc executes one research session to completion. It must honor
// ctx cancellation and never panic.
type RunFunc func(ctx context.Context, searchID, query string)

// task tracks one running search: its cancel func and a channel closed
// once its goroutine has fully unwound.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler launches, bounds, and cancels research runs.
type Scheduler struct {
	run           RunFunc
	maxConcurrent int
	timeout       time.Duration

	mu      sync.RWMutex
	running map[string]*task
	closed  bool

	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates a scheduler. Run contexts derive from context.Background,
// not from any HTTP request: a search outlives the request that started it.
func New(cfg config.ResearchConfig, run RunFunc) *Scheduler {
	return &Scheduler{
		run:           run,
		maxConcurrent: cfg.MaxConcurrentSearches,
		timeout:       cfg.SearchTimeout,
		running:       make(map[string]*task),
		logger:        slog.With("component", "scheduler"),
	}
}

// Launch starts a search run in its own goroutine. The capacity check
// and registration are atomic, so concurrent launches cannot oversubscribe.
func (s *Scheduler) Launch(searchID, query string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	if len(s.running) >= s.maxConcurrent {
		n := len(s.running)
		s.mu.Unlock()
		s.logger.Warn("Search rejected, concurrency cap reached",
			"search_id", searchID, "running", n, "max", s.maxConcurrent)
		return ErrCapacity
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.running[searchID] = t
	n := len(s.running)
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Search launched", "search_id", searchID, "running", n)

	go func() {
		defer s.wg.Done()
		defer s.release(searchID, t)
		s.run(ctx, searchID, query)
	}()
	return nil
}

// Cancel aborts one running search. Returns false when no run with
// that ID is active.
func (s *Scheduler) Cancel(searchID string) bool {
	s.mu.RLock()
	t, ok := s.running[searchID]
	s.mu.RUnlock()

	if ok {
		s.logger.Info("Cancelling search", "search_id", searchID)
		t.cancel()
	}
	return ok
}

// CancelAll aborts every running search and returns how many there were.
func (s *Scheduler) CancelAll() int {
	s.mu.RLock()
	tasks := make([]*task, 0, len(s.running))
	for _, t := range s.running {
		tasks = append(tasks, t)
	}
	s.mu.RUnlock()

	for _, t := range tasks {
		t.cancel()
	}
	if len(tasks) > 0 {
		s.logger.Info("Cancelled all running searches", "count", len(tasks))
	}
	return len(tasks)
}

// Wait blocks until the search's goroutine has unwound or ctx ends.
// Returns immediately when no run with that ID is active. After Wait
// the run has recorded its terminal state and emitted its events.
func (s *Scheduler) Wait(ctx context.Context, searchID string) {
	s.mu.RLock()
	t, ok := s.running[searchID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		s.logger.Warn("Gave up waiting for search to settle", "search_id", searchID)
	}
}

// WaitAll blocks until every currently running search has unwound or
// ctx ends.
func (s *Scheduler) WaitAll(ctx context.Context) {
	s.mu.RLock()
	tasks := make([]*task, 0, len(s.running))
	for _, t := range s.running {
		tasks = append(tasks, t)
	}
	s.mu.RUnlock()

	for _, t := range tasks {
		select {
		case <-t.done:
		case <-ctx.Done():
			s.logger.Warn("Gave up waiting for searches to settle")
			return
		}
	}
}

// Running reports whether a search is currently executing.
func (s *Scheduler) Running(searchID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.running[searchID]
	return ok
}

// ActiveCount returns the number of executing searches.
func (s *Scheduler) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.running)
}

// RunningIDs returns the IDs of executing searches, sorted.
func (s *Scheduler) RunningIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Stop rejects further launches, cancels running searches, and waits
// for their goroutines to finish. Runs unwind quickly after cancel
// because every collaborator call takes the run context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.CancelAll()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) release(searchID string, t *task) {
	s.mu.Lock()
	delete(s.running, searchID)
	n := len(s.running)
	s.mu.Unlock()

	t.cancel()
	close(t.done)
	s.logger.Debug("Search released", "search_id", searchID, "running", n)
}
