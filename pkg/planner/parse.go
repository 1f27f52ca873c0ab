// Package planner extracts executable research plans from planner model
// output and resolves evidence references in tool inputs.
package planner

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/openprobe/deepsearch/pkg/models"
)

// planStepRe captures one plan step as a (description, evidence label,
// tool, input) tuple. (?s) lets descriptions and inputs span lines; the
// closing bracket ends the input capture, so a literal "]" inside an
// input cuts it short.
var planStepRe = regexp.MustCompile(`(?s)Plan:\s*(.+?)\s*(#E\d+)\s*=\s*(\w+)\s*\[([^\]]+)\]`)

var (
	// ErrEmptyPlan is returned when no plan steps could be extracted
	ErrEmptyPlan = errors.New("no plan steps found in planner output")
)

// UnknownToolError reports a plan step naming a tool that is not one of
// the known workers. One bad step fails the whole plan.
type UnknownToolError struct {
	Tool     string
	Evidence string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q in plan step %s", e.Tool, e.Evidence)
}

// Parse extracts all plan steps from planner output, in source order.
// Zero extracted steps is ErrEmptyPlan. A step naming an unknown tool
// fails the whole plan with an UnknownToolError. Duplicate evidence
// labels keep the first occurrence and drop the rest. Referenced
// bindings are not validated here, unresolved references surface during
// substitution.
func Parse(text string) (models.Plan, error) {
	matches := planStepRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, ErrEmptyPlan
	}

	plan := make(models.Plan, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		desc, evidence, toolToken, input := m[1], m[2], m[3], m[4]

		tool := models.Tool(toolToken)
		if !tool.Known() {
			return nil, &UnknownToolError{Tool: toolToken, Evidence: evidence}
		}
		if _, dup := seen[evidence]; dup {
			continue
		}
		seen[evidence] = struct{}{}

		plan = append(plan, models.PlanStep{
			Desc:     desc,
			Evidence: evidence,
			Tool:     tool,
			Input:    input,
		})
	}
	return plan, nil
}
