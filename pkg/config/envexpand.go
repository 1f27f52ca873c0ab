package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go template
// syntax: {{.SERPER_API_KEY}} becomes the value of SERPER_API_KEY. Template
// syntax is used instead of $VAR so literal $ characters in keys and URLs
// survive untouched.
//
// Missing variables expand to empty strings; Validate catches required
// fields left empty. Content that fails template parsing or execution is
// returned unchanged so the YAML parser can report the real problem.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
