package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openprobe/deepsearch/pkg/llm"
	"github.com/openprobe/deepsearch/pkg/models"
	"github.com/openprobe/deepsearch/pkg/prompt"
	"github.com/openprobe/deepsearch/pkg/sandbox"
)

// stderrTailBytes bounds how much program stderr ends up in an error
// message.
const stderrTailBytes = 500

// Runner executes one program and reports its captured output.
type Runner interface {
	Run(ctx context.Context, source string) (*sandbox.Result, error)
}

// CodeAdapter answers a step by having the model write a program and
// running it; the program's stdout is the evidence.
type CodeAdapter struct {
	llm    llm.Client
	runner Runner
	logger *slog.Logger
}

func NewCodeAdapter(client llm.Client, runner Runner) *CodeAdapter {
	return &CodeAdapter{
		llm:    client,
		runner: runner,
		logger: slog.With("component", "tool.code"),
	}
}

func (a *CodeAdapter) Invoke(ctx context.Context, input string) (*Outcome, error) {
	response, err := a.llm.Generate(ctx, []llm.Message{
		llm.System(prompt.CodeSystem()),
		llm.User(prompt.CodeTask(input)),
	})
	if err != nil {
		return nil, &ToolError{Kind: models.KindToolTransport, Err: fmt.Errorf("generate program: %w", err)}
	}

	source, ok := prompt.ExtractCodeBlock(response)
	if !ok {
		return nil, &ToolError{Kind: models.KindCodeExecution, Err: errors.New("model response carried no code block")}
	}

	result, err := a.runner.Run(ctx, source)
	if err != nil {
		return nil, &ToolError{Kind: models.KindCodeExecution, Err: fmt.Errorf("execute program: %w", err)}
	}
	if result.ExitCode != 0 {
		return nil, &ToolError{
			Kind: models.KindCodeExecution,
			Err:  fmt.Errorf("program exited with code %d: %s", result.ExitCode, tail(result.Stderr, stderrTailBytes)),
		}
	}

	a.logger.Debug("program executed", "source_bytes", len(source), "stdout_bytes", len(result.Stdout))
	return &Outcome{Kind: OutcomeText, Text: strings.TrimSpace(result.Stdout)}, nil
}

// tail returns the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
