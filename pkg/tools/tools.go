// Package tools implements the plan workers: Search, Code, and LLM.
// Adapters are stateless; every Invoke is a fresh call, and recording
// results on the session is left to the caller.
package tools

import (
	"context"

	"github.com/openprobe/deepsearch/pkg/llm"
	"github.com/openprobe/deepsearch/pkg/models"
)

// OutcomeKind classifies a worker result.
type OutcomeKind string

const (
	// OutcomeAnswer is a result extracted from an explicit <answer> tag.
	OutcomeAnswer OutcomeKind = "answer"
	// OutcomeText is a plain result with no tag, usable as evidence.
	OutcomeText OutcomeKind = "text"
	// OutcomeReplan means the worker could not produce evidence and asks
	// for a new plan. Text carries its reasoning, or the raw response
	// when the worker simply failed to answer.
	OutcomeReplan OutcomeKind = "replan"
)

// Outcome is the result of a worker invocation that reached the model
// and came back with something usable or an explicit replan request.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Sources []models.Source
}

// ToolError is a classified worker failure.
type ToolError struct {
	Kind models.ErrorKind
	Err  error
}

func (e *ToolError) Error() string {
	return e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Adapter is one plan worker. Invoke receives the step input with all
// evidence references already substituted.
type Adapter interface {
	Invoke(ctx context.Context, input string) (*Outcome, error)
}

// Set bundles the workers for dispatch by plan tool.
type Set struct {
	Search Adapter
	Code   Adapter
	LLM    Adapter
}

// NewSet wires the three workers from their collaborators.
func NewSet(client llm.Client, searcher Searcher, runner Runner) *Set {
	return &Set{
		Search: NewSearchAdapter(client, searcher),
		Code:   NewCodeAdapter(client, runner),
		LLM:    NewLLMAdapter(client),
	}
}

// For maps a plan tool to its worker. Unknown tools never reach dispatch;
// plan parsing rejects them.
func (s *Set) For(tool models.Tool) Adapter {
	switch tool {
	case models.ToolSearch:
		return s.Search
	case models.ToolCode:
		return s.Code
	default:
		return s.LLM
	}
}
