package e2e

import (
	"context"
	"fmt"
	"sync"

	"github.com/openprobe/deepsearch/pkg/llm"
)

// ScriptEntry is one scripted model response. Entries are consumed in
// order, one per Generate call, so a test can line up the planner,
// worker, and solver turns of a whole research run ahead of time.
type ScriptEntry struct {
	// Text is returned verbatim when Error is nil.
	Text string

	// Error is returned instead of text when set.
	Error error

	// BlockUntilCancelled parks the call on ctx.Done and returns
	// ctx.Err(), which is how tests hold a search mid-flight while
	// they cancel it over HTTP.
	BlockUntilCancelled bool

	// OnBlock is signalled once the call is parked. Tests use it to
	// know the search reached the model before issuing the cancel.
	OnBlock chan<- struct{}
}

// ScriptedLLM implements llm.Client with a fixed sequence of responses.
type ScriptedLLM struct {
	mu      sync.Mutex
	entries []ScriptEntry
	index   int
	inputs  []string
}

func NewScriptedLLM() *ScriptedLLM {
	return &ScriptedLLM{}
}

// Add appends a plain text response and returns the client for chaining.
func (c *ScriptedLLM) Add(text string) *ScriptedLLM {
	return c.AddEntry(ScriptEntry{Text: text})
}

// AddError appends a failing response.
func (c *ScriptedLLM) AddError(err error) *ScriptedLLM {
	return c.AddEntry(ScriptEntry{Error: err})
}

func (c *ScriptedLLM) AddEntry(e ScriptEntry) *ScriptedLLM {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return c
}

func (c *ScriptedLLM) Generate(ctx context.Context, msgs []llm.Message) (string, error) {
	c.mu.Lock()
	if c.index >= len(c.entries) {
		n := c.index
		c.mu.Unlock()
		return "", fmt.Errorf("scripted llm: no entry for call %d", n+1)
	}
	entry := c.entries[c.index]
	c.index++
	if len(msgs) > 0 {
		c.inputs = append(c.inputs, msgs[len(msgs)-1].Content)
	}
	c.mu.Unlock()

	if entry.BlockUntilCancelled {
		if entry.OnBlock != nil {
			entry.OnBlock <- struct{}{}
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	if entry.Error != nil {
		return "", entry.Error
	}
	return entry.Text, nil
}

// CallCount reports how many Generate calls were served so far.
func (c *ScriptedLLM) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Inputs returns the last user message of every call, in call order.
func (c *ScriptedLLM) Inputs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.inputs))
	copy(out, c.inputs)
	return out
}
