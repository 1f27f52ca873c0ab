package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, StatusIdle.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusError.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestStepStatusAllows(t *testing.T) {
	tests := []struct {
		name string
		from StepStatus
		to   StepStatus
		want bool
	}{
		{"pending to running", StepPending, StepRunning, true},
		{"running to completed", StepRunning, StepCompleted, true},
		{"running to failed", StepRunning, StepFailed, true},
		{"running to running", StepRunning, StepRunning, true},
		{"completed back to running", StepCompleted, StepRunning, false},
		{"completed back to pending", StepCompleted, StepPending, false},
		{"failed to completed", StepFailed, StepCompleted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.Allows(tt.to))
		})
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	end := time.Now().UTC()
	dur := 12.5
	exec := 0.8
	orig := &Session{
		ID:     "s1",
		Query:  "who wrote it",
		Status: StatusCompleted,
		Steps: []Step{
			{
				ID:     "s1_search_1",
				Type:   StepSearch,
				Status: StepCompleted,
				Title:  "Searching",
				Metadata: &StepMetadata{
					SearchQuery:   "who wrote it",
					ExecutionTime: &exec,
					Sources:       []Source{{Title: "a", Link: "https://a"}},
				},
			},
		},
		Sources:         []Source{{Title: "a", Link: "https://a"}},
		EndTime:         &end,
		DurationSeconds: &dur,
	}

	clone := orig.Clone()
	require.NotNil(t, clone)

	// Mutating the clone must not leak into the original.
	clone.Steps[0].Metadata.SearchQuery = "changed"
	clone.Steps[0].Metadata.Sources[0].Link = "https://b"
	clone.Sources[0].Title = "changed"
	*clone.EndTime = end.Add(time.Hour)
	*clone.DurationSeconds = 99

	assert.Equal(t, "who wrote it", orig.Steps[0].Metadata.SearchQuery)
	assert.Equal(t, "https://a", orig.Steps[0].Metadata.Sources[0].Link)
	assert.Equal(t, "a", orig.Sources[0].Title)
	assert.Equal(t, end, *orig.EndTime)
	assert.Equal(t, 12.5, *orig.DurationSeconds)
}

func TestStepMetadataEmpty(t *testing.T) {
	var m *StepMetadata
	assert.True(t, m.Empty())
	assert.True(t, (&StepMetadata{}).Empty())
	assert.False(t, (&StepMetadata{SearchQuery: "q"}).Empty())
	assert.False(t, (&StepMetadata{PlanSteps: []string{"p"}}).Empty())
	zero := 0.0
	assert.False(t, (&StepMetadata{ExecutionTime: &zero}).Empty())
}

func TestToolHelpers(t *testing.T) {
	assert.True(t, ToolSearch.Known())
	assert.True(t, ToolCode.Known())
	assert.True(t, ToolLLM.Known())
	assert.False(t, Tool("search").Known())
	assert.False(t, Tool("Wikipedia").Known())

	assert.Equal(t, StepSearch, ToolSearch.StepType())
	assert.Equal(t, StepCode, ToolCode.StepType())
	assert.Equal(t, StepLLM, ToolLLM.StepType())
}
