package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/openprobe/deepsearch/pkg/models"
)

// evidenceTokenRe matches evidence references in tool inputs. Digits
// are matched greedily, so #E1 can never shadow the prefix of #E10.
var evidenceTokenRe = regexp.MustCompile(`#E\d+`)

// Substitute replaces each bound evidence token in input with its
// result. The scan runs once over the original input, left to right;
// replacement text is never rescanned, so results containing #E tokens
// do not re-expand. Unbound tokens pass through unchanged.
func Substitute(input string, bindings map[string]string) string {
	if len(bindings) == 0 || !strings.Contains(input, "#E") {
		return input
	}
	return evidenceTokenRe.ReplaceAllStringFunc(input, func(token string) string {
		if result, ok := bindings[token]; ok {
			return result
		}
		return token
	})
}

// RenderTrace renders the executed plan for the solver. Substitution is
// reapplied to both the evidence label and the tool input of every
// step, so the trace carries actual results where the plan had #E
// references.
func RenderTrace(plan models.Plan, bindings map[string]string) string {
	var sb strings.Builder
	for _, step := range plan {
		fmt.Fprintf(&sb, "Plan: %s\n%s = %s[%s]\n",
			step.Desc,
			Substitute(step.Evidence, bindings),
			step.Tool,
			Substitute(step.Input, bindings))
	}
	return sb.String()
}
