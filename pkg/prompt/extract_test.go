package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "simple tag",
			input:  "Reasoning text.\n<answer>42</answer>",
			want:   "42",
			wantOK: true,
		},
		{
			name:   "last tag wins",
			input:  "<answer>draft</answer> more thinking <answer>final</answer>",
			want:   "final",
			wantOK: true,
		},
		{
			name:   "multiline content",
			input:  "<answer>\nline one\nline two\n</answer>",
			want:   "line one\nline two",
			wantOK: true,
		},
		{
			name:   "empty tag still counts",
			input:  "<answer></answer>",
			want:   "",
			wantOK: true,
		},
		{
			name:   "missing tag",
			input:  "no tags here",
			want:   "",
			wantOK: false,
		},
		{
			name:   "unclosed tag does not match",
			input:  "<answer>never closed",
			want:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractAnswer(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractReplan(t *testing.T) {
	got, ok := ExtractReplan("The results are off-topic.\n<replan>need a different angle</replan>")
	assert.True(t, ok)
	assert.Equal(t, "need a different angle", got)

	_, ok = ExtractReplan("<answer>fine</answer>")
	assert.False(t, ok)
}

func TestExtractRewordedQuery(t *testing.T) {
	got, ok := ExtractRewordedQuery("Output: <reworded_query>What is the population of China?</reworded_query>")
	assert.True(t, ok)
	assert.Equal(t, "What is the population of China?", got)

	_, ok = ExtractRewordedQuery("just a bare sentence")
	assert.False(t, ok)
}

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "python fence",
			input:  "Here you go:\n```python\nprint(180)\n```\n",
			want:   "print(180)",
			wantOK: true,
		},
		{
			name:   "no language tag",
			input:  "```\nx = 1\nprint(x)\n```",
			want:   "x = 1\nprint(x)",
			wantOK: true,
		},
		{
			name:   "last block wins",
			input:  "```python\nprint('draft')\n```\nActually, use this:\n```python\nprint('final')\n```",
			want:   "print('final')",
			wantOK: true,
		},
		{
			name:   "no fence",
			input:  "print(1) with no fences",
			want:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractCodeBlock(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnswerOrWhole(t *testing.T) {
	assert.Equal(t, "1989", AnswerOrWhole("The wall fell in <answer>1989</answer>"))
	assert.Equal(t, "the whole response", AnswerOrWhole("  the whole response \n"))
	assert.Equal(t, "", AnswerOrWhole("padding <answer></answer>"))
}
