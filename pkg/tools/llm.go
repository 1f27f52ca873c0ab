package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openprobe/deepsearch/pkg/llm"
	"github.com/openprobe/deepsearch/pkg/models"
	"github.com/openprobe/deepsearch/pkg/prompt"
)

// LLMAdapter answers a step with a direct reasoning call, no external
// retrieval.
type LLMAdapter struct {
	llm    llm.Client
	logger *slog.Logger
}

func NewLLMAdapter(client llm.Client) *LLMAdapter {
	return &LLMAdapter{llm: client, logger: slog.With("component", "tool.llm")}
}

func (a *LLMAdapter) Invoke(ctx context.Context, input string) (*Outcome, error) {
	response, err := a.llm.Generate(ctx, []llm.Message{llm.User(prompt.Commonsense(input))})
	if err != nil {
		return nil, &ToolError{Kind: models.KindToolTransport, Err: fmt.Errorf("reasoning call: %w", err)}
	}

	if reason, ok := prompt.ExtractReplan(response); ok {
		a.logger.Info("model requested replan")
		return &Outcome{Kind: OutcomeReplan, Text: reason}, nil
	}
	if answer, ok := prompt.ExtractAnswer(response); ok {
		return &Outcome{Kind: OutcomeAnswer, Text: answer}, nil
	}
	return &Outcome{Kind: OutcomeText, Text: strings.TrimSpace(response)}, nil
}
