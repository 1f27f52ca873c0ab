package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "serper_api_key: {{.SERPER_API_KEY}}",
			env:   map[string]string{"SERPER_API_KEY": "secret123"},
			want:  "serper_api_key: secret123",
		},
		{
			name:  "literal dollar syntax is not expanded",
			input: "pattern: ${USER_ID}",
			env:   map[string]string{"USER_ID": "123"},
			want:  "pattern: ${USER_ID}",
		},
		{
			name:  "multiple substitutions in one line",
			input: "base_url: {{.PROTO}}://{{.HOST}}:{{.PORT}}",
			env:   map[string]string{"PROTO": "https", "HOST": "api.example.com", "PORT": "443"},
			want:  "base_url: https://api.example.com:443",
		},
		{
			name:  "missing variable expands to empty",
			input: "jina_api_key: {{.NOT_SET_ANYWHERE}}",
			env:   map[string]string{},
			want:  "jina_api_key: ",
		},
		{
			name:  "value containing equals sign",
			input: "api_key: {{.WITH_EQUALS}}",
			env:   map[string]string{"WITH_EQUALS": "a=b=c"},
			want:  "api_key: a=b=c",
		},
		{
			name:  "no template syntax passes through",
			input: "level: info\nformat: text\n",
			env:   map[string]string{},
			want:  "level: info\nformat: text\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.input))))
		})
	}
}

func TestExpandEnvMalformedTemplatePassesThrough(t *testing.T) {
	t.Setenv("LLM_API_KEY", "should-not-appear")

	inputs := []string{
		"api_key: {{.LLM_API_KEY",
		"api_key: {{",
		"api_key: {{}}",
	}
	for _, input := range inputs {
		result := ExpandEnv([]byte(input))
		assert.Equal(t, input, string(result), "malformed template should pass through unchanged")
		assert.NotContains(t, string(result), "should-not-appear")
	}
}
