package models

// Tool names a worker the planner can dispatch a step to.
// Matching is case-sensitive: any other token is a plan parse failure.
type Tool string

const (
	ToolSearch Tool = "Search"
	ToolCode   Tool = "Code"
	ToolLLM    Tool = "LLM"
)

// Known reports whether the tool token is one of the dispatchable workers.
func (t Tool) Known() bool {
	return t == ToolSearch || t == ToolCode || t == ToolLLM
}

// StepType maps the tool to the step type recorded for its execution.
func (t Tool) StepType() StepType {
	switch t {
	case ToolSearch:
		return StepSearch
	case ToolCode:
		return StepCode
	default:
		return StepLLM
	}
}

// PlanStep is one parsed planner step: a free-text description, the evidence
// label the result binds to ("#E1".."#En"), the tool to invoke, and the raw
// tool input (which may reference earlier evidence labels).
type PlanStep struct {
	Desc     string
	Evidence string
	Tool     Tool
	Input    string
}

// Plan is the ordered list of steps extracted from one planner response.
type Plan []PlanStep

// Evidences returns the evidence labels in plan order.
func (p Plan) Evidences() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.Evidence
	}
	return out
}
