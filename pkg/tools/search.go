package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openprobe/deepsearch/pkg/llm"
	"github.com/openprobe/deepsearch/pkg/models"
	"github.com/openprobe/deepsearch/pkg/prompt"
	"github.com/openprobe/deepsearch/pkg/websearch"
)

// Searcher runs the web retrieval pipeline for one query.
type Searcher interface {
	Process(ctx context.Context, query string) (*websearch.ProcessedSearch, error)
}

// SearchAdapter answers a step by searching the web and summarizing the
// retrieved context. The step input is first reworded into a
// search-friendly query; the summarizer is asked the original input.
type SearchAdapter struct {
	llm      llm.Client
	searcher Searcher
	logger   *slog.Logger
}

func NewSearchAdapter(client llm.Client, searcher Searcher) *SearchAdapter {
	return &SearchAdapter{
		llm:      client,
		searcher: searcher,
		logger:   slog.With("component", "tool.search"),
	}
}

func (a *SearchAdapter) Invoke(ctx context.Context, input string) (*Outcome, error) {
	query := a.rewordQuery(ctx, input)

	processed, err := a.searcher.Process(ctx, query)
	if err != nil {
		return nil, &ToolError{Kind: models.KindToolTransport, Err: fmt.Errorf("web search: %w", err)}
	}

	summary, err := a.llm.Generate(ctx, []llm.Message{llm.User(prompt.Summary(processed.Context, input))})
	if err != nil {
		return nil, &ToolError{Kind: models.KindToolTransport, Err: fmt.Errorf("summarize search results: %w", err)}
	}

	if reason, ok := prompt.ExtractReplan(summary); ok {
		a.logger.Info("summarizer requested replan", "query", query)
		return &Outcome{Kind: OutcomeReplan, Text: reason, Sources: processed.Sources}, nil
	}
	if answer, ok := prompt.ExtractAnswer(summary); ok {
		return &Outcome{Kind: OutcomeAnswer, Text: answer, Sources: processed.Sources}, nil
	}

	// No answer tag: the summarizer could not answer from this context.
	// Keep the raw summary so the step shows what came back.
	a.logger.Info("summarizer produced no answer", "query", query)
	return &Outcome{Kind: OutcomeReplan, Text: strings.TrimSpace(summary), Sources: processed.Sources}, nil
}

// rewordQuery rewrites the raw step input into a search query. Any
// failure falls back to the input unchanged.
func (a *SearchAdapter) rewordQuery(ctx context.Context, input string) string {
	response, err := a.llm.Generate(ctx, []llm.Message{llm.User(prompt.RewordQuestion(input))})
	if err != nil {
		a.logger.Debug("query reword failed, using raw input", "error", err)
		return input
	}
	if query, ok := prompt.ExtractRewordedQuery(response); ok && query != "" {
		return query
	}
	return input
}
