// Package session keeps research sessions in memory: a concurrency-safe
// store plus a sweeper that drops expired terminal sessions.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openprobe/deepsearch/pkg/models"
)

// ErrNotFound is returned when the session ID is unknown.
var ErrNotFound = errors.New("session not found")

// Stats is a point-in-time census of the store. Failed counts only
// sessions that ended in error; cancellations are neither completed nor
// failed.
type Stats struct {
	TotalSessions     int `json:"total_sessions"`
	ActiveSessions    int `json:"active_sessions"`
	CompletedSessions int `json:"completed_sessions"`
	FailedSessions    int `json:"failed_sessions"`
}

// Store holds sessions keyed by ID. Active sessions are tracked in a
// separate set so liveness checks stay constant-time. All reads hand out
// deep copies; the store's own state is only reachable under its lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	active   map[string]struct{}
	logger   *slog.Logger
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*models.Session),
		active:   make(map[string]struct{}),
		logger:   slog.With("component", "session"),
	}
}

// Create registers a new idle session for the query and returns a copy.
func (s *Store) Create(query string) *models.Session {
	sess := &models.Session{
		ID:        uuid.New().String(),
		Query:     query,
		Status:    models.StatusIdle,
		Steps:     []models.Step{},
		StartTime: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.active[sess.ID] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("session created", "search_id", sess.ID)
	return sess.Clone()
}

// Get returns a deep copy of the session.
func (s *Store) Get(id string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// UpsertStep adds the step or replaces the stored one with the same ID.
// Replacements only move a step forward; a stale lower-ranked update is
// dropped. Terminal sessions accept no step changes.
func (s *Store) UpsertStep(id string, step models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Status.Terminal() {
		return nil
	}

	for i := range sess.Steps {
		if sess.Steps[i].ID == step.ID {
			if sess.Steps[i].Status.Allows(step.Status) {
				sess.Steps[i] = step.Clone()
			}
			return nil
		}
	}
	sess.Steps = append(sess.Steps, step.Clone())
	return nil
}

// SetSources appends sources deduplicated by link: the first occurrence
// wins and later duplicates only fill fields the kept source left empty.
// Sources without a link are dropped; a missing title defaults to the
// link.
func (s *Store) SetSources(id string, sources []models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Status.Terminal() {
		return nil
	}

	index := make(map[string]int, len(sess.Sources))
	for i, src := range sess.Sources {
		index[src.Link] = i
	}

	for _, src := range sources {
		if src.Link == "" {
			continue
		}
		if src.Title == "" {
			src.Title = src.Link
		}

		i, seen := index[src.Link]
		if !seen {
			sess.Sources = append(sess.Sources, src)
			index[src.Link] = len(sess.Sources) - 1
			continue
		}
		kept := &sess.Sources[i]
		if kept.Snippet == "" {
			kept.Snippet = src.Snippet
		}
		if kept.Favicon == "" {
			kept.Favicon = src.Favicon
		}
	}
	return nil
}

// SetAnswer records the solver output. The session's final answer is the
// explanation when one was produced, otherwise the raw answer.
func (s *Store) SetAnswer(id, answer, explanation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Status.Terminal() {
		return nil
	}

	if explanation != "" {
		sess.FinalAnswer = explanation
	} else {
		sess.FinalAnswer = answer
	}
	return nil
}

// MarkRunning moves the session to running. Terminal sessions stay put.
func (s *Store) MarkRunning(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Status.Terminal() {
		return nil
	}

	sess.Status = models.StatusRunning
	return nil
}

// MarkTerminal finishes the session: status, error classification, end
// time and duration, and removal from the active set. The first terminal
// status sticks; later calls are no-ops.
func (s *Store) MarkTerminal(id string, status models.SessionStatus, errKind models.ErrorKind, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if sess.Status.Terminal() {
		return nil
	}

	sess.Status = status
	sess.Error = errMsg
	sess.ErrorCode = errKind
	end := time.Now().UTC()
	sess.EndTime = &end
	dur := end.Sub(sess.StartTime).Seconds()
	sess.DurationSeconds = &dur
	delete(s.active, id)

	s.logger.Info("session finished",
		"search_id", id,
		"status", status,
		"error_code", errKind,
		"duration_seconds", dur)
	return nil
}

// Discard removes a session outright. Used to roll back a session whose
// run could not be launched; normal retirement goes through the sweeper.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	delete(s.active, id)
}

// IsActive reports whether the session exists and has not finished.
func (s *Store) IsActive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.active[id]
	return ok
}

// ActiveIDs returns the IDs of all non-terminal sessions.
func (s *Store) ActiveIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// Stats counts sessions by lifecycle state.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalSessions:  len(s.sessions),
		ActiveSessions: len(s.active),
	}
	for _, sess := range s.sessions {
		switch sess.Status {
		case models.StatusCompleted:
			stats.CompletedSessions++
		case models.StatusError:
			stats.FailedSessions++
		}
	}
	return stats
}

// ClearAll drops every session and returns how many were removed.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.sessions)
	s.sessions = make(map[string]*models.Session)
	s.active = make(map[string]struct{})

	s.logger.Info("cleared all sessions", "count", count)
	return count
}

// SweepExpired removes terminal sessions whose end time is older than
// ttl and returns how many were removed. Non-terminal sessions are never
// swept.
func (s *Store) SweepExpired(ttl time.Duration) int {
	cutoff := time.Now().UTC().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Status.Terminal() && sess.EndTime != nil && sess.EndTime.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.active, id)
			removed++
		}
	}
	return removed
}
