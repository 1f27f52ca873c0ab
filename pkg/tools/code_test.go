package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprobe/deepsearch/pkg/llm"
	"github.com/openprobe/deepsearch/pkg/models"
	"github.com/openprobe/deepsearch/pkg/sandbox"
)

// fakeRunner returns a fixed execution result and records the source.
type fakeRunner struct {
	result *sandbox.Result
	err    error
	source string
}

func (f *fakeRunner) Run(_ context.Context, source string) (*sandbox.Result, error) {
	f.source = source
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestCodeInvoke(t *testing.T) {
	client := &scriptedLLM{turns: []llmTurn{
		{response: "Here is the program:\n```python\nprint(90 * 2)\n```"},
	}}
	runner := &fakeRunner{result: &sandbox.Result{Stdout: "180\n", ExitCode: 0}}

	adapter := NewCodeAdapter(client, runner)
	out, err := adapter.Invoke(context.Background(), "multiply 90 by 2")
	require.NoError(t, err)

	assert.Equal(t, OutcomeText, out.Kind)
	assert.Equal(t, "180", out.Text)
	assert.Equal(t, "print(90 * 2)", runner.source)

	require.Equal(t, 1, client.callCount())
	messages := client.call(0)
	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "Python")
	assert.Equal(t, llm.RoleUser, messages[1].Role)
	assert.Contains(t, messages[1].Content, "multiply 90 by 2")
}

func TestCodeLastBlockWins(t *testing.T) {
	client := &scriptedLLM{turns: []llmTurn{
		{response: "First try:\n```python\nprint(1)\n```\nBetter:\n```python\nprint(2)\n```"},
	}}
	runner := &fakeRunner{result: &sandbox.Result{Stdout: "2"}}

	adapter := NewCodeAdapter(client, runner)
	_, err := adapter.Invoke(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "print(2)", runner.source)
}

func TestCodeNoBlock(t *testing.T) {
	client := &scriptedLLM{turns: []llmTurn{
		{response: "I cannot write code for that."},
	}}
	runner := &fakeRunner{}

	adapter := NewCodeAdapter(client, runner)
	_, err := adapter.Invoke(context.Background(), "task")

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, models.KindCodeExecution, toolErr.Kind)
	assert.Contains(t, err.Error(), "no code block")
	assert.Empty(t, runner.source)
}

func TestCodeNonZeroExit(t *testing.T) {
	client := &scriptedLLM{turns: []llmTurn{
		{response: "```python\nprint(x)\n```"},
	}}
	runner := &fakeRunner{result: &sandbox.Result{
		Stderr:   "Traceback (most recent call last):\nNameError: name 'x' is not defined",
		ExitCode: 1,
	}}

	adapter := NewCodeAdapter(client, runner)
	_, err := adapter.Invoke(context.Background(), "task")

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, models.KindCodeExecution, toolErr.Kind)
	assert.Contains(t, err.Error(), "exited with code 1")
	assert.Contains(t, err.Error(), "NameError")
}

func TestCodeRunnerError(t *testing.T) {
	client := &scriptedLLM{turns: []llmTurn{
		{response: "```python\nprint(1)\n```"},
	}}
	runner := &fakeRunner{err: errors.New("executor overloaded")}

	adapter := NewCodeAdapter(client, runner)
	_, err := adapter.Invoke(context.Background(), "task")

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, models.KindCodeExecution, toolErr.Kind)
}

func TestCodeLLMTransportError(t *testing.T) {
	client := &scriptedLLM{turns: []llmTurn{
		{err: errors.New("model unavailable")},
	}}

	adapter := NewCodeAdapter(client, &fakeRunner{})
	_, err := adapter.Invoke(context.Background(), "task")

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, models.KindToolTransport, toolErr.Kind)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short  ", 100))

	long := strings.Repeat("a", 600) + "END"
	got := tail(long, 100)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "END"))
	assert.Len(t, got, 103)
}
