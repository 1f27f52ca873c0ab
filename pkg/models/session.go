// Package models defines the shared domain types for research sessions:
// sessions, steps, sources, parsed plans, and error kinds. These are the
// wire shapes served by the HTTP API and carried in WebSocket events, so
// JSON tags here are part of the public contract.
package models

import "time"

// SessionStatus is the lifecycle state of a research session.
type SessionStatus string

const (
	StatusIdle      SessionStatus = "idle"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusError     SessionStatus = "error"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal sessions accept no
// further mutation: late step updates and status changes are dropped.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// StepType identifies which orchestrator node produced a step.
type StepType string

const (
	StepPlan   StepType = "plan"
	StepSearch StepType = "search"
	StepCode   StepType = "code"
	StepLLM    StepType = "llm"
	StepSolve  StepType = "solve"
	StepReplan StepType = "replan"
)

// StepStatus is the execution state of a single step.
// Steps move only forward: pending → running → {completed, failed}.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// stepStatusRank orders step statuses for forward-only transition checks.
var stepStatusRank = map[StepStatus]int{
	StepPending:   0,
	StepRunning:   1,
	StepCompleted: 2,
	StepFailed:    2,
}

// Allows reports whether a transition from s to next moves forward.
// Same-rank overwrites are allowed so completed→failed corrections and
// repeated running updates (content appends) pass through.
func (s StepStatus) Allows(next StepStatus) bool {
	return stepStatusRank[next] >= stepStatusRank[s]
}

// Source is one web source backing a search step.
// Deduplicated by Link across a session; first occurrence wins.
type Source struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
	Favicon string `json:"favicon,omitempty"`
}

// StepMetadata carries optional structured detail for a step. Field names
// are camelCase on the wire, matching what the dashboard consumes.
type StepMetadata struct {
	SearchQuery   string   `json:"searchQuery,omitempty"`
	CodeResult    string   `json:"codeResult,omitempty"`
	LLMResult     string   `json:"llmResult,omitempty"`
	PlanSteps     []string `json:"planSteps,omitempty"`
	Error         string   `json:"error,omitempty"`
	ExecutionTime *float64 `json:"executionTime,omitempty"`
	Sources       []Source `json:"sources,omitempty"`
}

// Empty reports whether the metadata carries no information. Empty metadata
// is serialized as absent rather than as an empty object.
func (m *StepMetadata) Empty() bool {
	if m == nil {
		return true
	}
	return m.SearchQuery == "" && m.CodeResult == "" && m.LLMResult == "" &&
		len(m.PlanSteps) == 0 && m.Error == "" && m.ExecutionTime == nil &&
		len(m.Sources) == 0
}

// Clone returns a deep copy of the metadata.
func (m *StepMetadata) Clone() *StepMetadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.PlanSteps != nil {
		out.PlanSteps = append([]string(nil), m.PlanSteps...)
	}
	if m.Sources != nil {
		out.Sources = append([]Source(nil), m.Sources...)
	}
	if m.ExecutionTime != nil {
		v := *m.ExecutionTime
		out.ExecutionTime = &v
	}
	return &out
}

// Step is one observable unit of work inside a session. Step IDs are
// unique within their session ("<search_id>_<node>_<counter>") and step
// upserts are idempotent by ID.
type Step struct {
	ID        string        `json:"id"`
	Type      StepType      `json:"type"`
	Status    StepStatus    `json:"status"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Metadata  *StepMetadata `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	out.Metadata = s.Metadata.Clone()
	return out
}

// Session is the full server-side lifecycle record for one research query.
type Session struct {
	ID              string        `json:"id"`
	Query           string        `json:"query"`
	Status          SessionStatus `json:"status"`
	Steps           []Step        `json:"steps"`
	FinalAnswer     string        `json:"final_answer,omitempty"`
	Sources         []Source      `json:"sources,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	DurationSeconds *float64      `json:"duration_seconds,omitempty"`
	Error           string        `json:"error,omitempty"`
	ErrorCode       ErrorKind     `json:"error_code,omitempty"`
}

// Clone returns a deep copy of the session. Store reads hand out clones so
// callers can never alias the store's mutable state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Steps != nil {
		out.Steps = make([]Step, len(s.Steps))
		for i := range s.Steps {
			out.Steps[i] = s.Steps[i].Clone()
		}
	}
	if s.Sources != nil {
		out.Sources = append([]Source(nil), s.Sources...)
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	if s.DurationSeconds != nil {
		d := *s.DurationSeconds
		out.DurationSeconds = &d
	}
	return &out
}
