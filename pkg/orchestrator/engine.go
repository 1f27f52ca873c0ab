package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openprobe/deepsearch/pkg/events"
	"github.com/openprobe/deepsearch/pkg/llm"
	"github.com/openprobe/deepsearch/pkg/models"
	"github.com/openprobe/deepsearch/pkg/planner"
	"github.com/openprobe/deepsearch/pkg/prompt"
	"github.com/openprobe/deepsearch/pkg/tools"
)

// phase is the run state machine position.
type phase int

const (
	phasePlanning phase = iota
	phaseExecuting
	phaseReflecting
	phaseSolving
)

// runState is the mutable state of one research run. It lives on the
// run goroutine only; everything shared goes through the store or the
// event bus.
type runState struct {
	searchID string
	task     string
	start    time.Time
	logger   *slog.Logger
	phase    phase

	plan       models.Plan
	planText   string
	reflection string
	bindings   map[string]string
	stepIdx    int

	replanIter  int
	transitions int
	stepCounter int
	lastStepID  string

	// failure routed to the reflecting phase
	pendingKind models.ErrorKind
	pendingMsg  string
}

// runSearch drives one session from planning to a terminal state. It is
// the scheduler's RunFunc; ctx carries the run deadline and is cancelled
// on user cancel, new chat, or shutdown.
func (s *Service) runSearch(ctx context.Context, searchID, query string) {
	st := &runState{
		searchID: searchID,
		task:     query,
		start:    time.Now(),
		logger:   s.logger.With("search_id", searchID),
		phase:    phasePlanning,
		bindings: make(map[string]string),
	}

	if err := s.store.MarkRunning(searchID); err != nil {
		st.logger.Warn("Search not started, session unavailable", "error", err)
		return
	}
	st.logger.Info("Search started", "query_length", len(query))

	for {
		if ctx.Err() != nil {
			s.finishInterrupted(ctx, st)
			return
		}

		if st.phase == phaseSolving {
			if s.runSolving(ctx, st) {
				return
			}
			continue
		}

		// Planning, Executing, and Reflecting each consume one unit of
		// the recursion budget.
		if st.transitions >= s.cfg.RecursionLimit {
			s.finishError(st, models.KindTimeout,
				fmt.Sprintf("recursion limit of %d transitions exhausted", s.cfg.RecursionLimit))
			return
		}
		st.transitions++

		switch st.phase {
		case phasePlanning:
			s.runPlanning(ctx, st)
		case phaseExecuting:
			s.runExecuting(ctx, st)
		case phaseReflecting:
			if s.runReflecting(ctx, st) {
				return
			}
		}
	}
}

// runPlanning asks the planner for a step list and parses it. The first
// round sends the bare task; replan rounds send the replan instruction
// with the previous plan and the reflection on it.
func (s *Service) runPlanning(ctx context.Context, st *runState) {
	step := s.newStep(st, "plan", models.StepPlan,
		"Creating step-by-step research plan",
		"Analyzing the question to determine the best research approach.")
	s.emitStep(st, step)

	msgs := []llm.Message{llm.System(prompt.PlannerSystem())}
	if st.replanIter == 0 {
		msgs = append(msgs, llm.User(st.task))
	} else {
		msgs = append(msgs, llm.User(prompt.Replan(st.task, st.planText, st.reflection)))
	}

	resp, err := s.llm.Generate(ctx, msgs)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		msg := fmt.Sprintf("plan generation failed: %v", err)
		step.Status = models.StepFailed
		step.Metadata = &models.StepMetadata{Error: msg}
		s.emitStep(st, step)
		s.routeFailure(st, models.KindToolTransport, msg)
		return
	}

	st.planText = resp
	plan, perr := planner.Parse(resp)
	if perr != nil {
		kind := models.KindPlanParseEmpty
		if st.replanIter > 0 {
			kind = models.KindPlanUnparseable
		}
		step.Status = models.StepFailed
		step.Content = clip(resp, 400)
		step.Metadata = &models.StepMetadata{Error: perr.Error()}
		s.emitStep(st, step)
		s.routeFailure(st, kind, fmt.Sprintf("plan parse failed: %v", perr))
		return
	}

	st.plan = plan
	st.stepIdx = 0
	step.Status = models.StepCompleted
	step.Content = planContent(plan)
	step.Metadata = &models.StepMetadata{PlanSteps: planOutline(plan)}
	s.emitStep(st, step)
	st.logger.Info("Plan created", "steps", len(plan), "replan_iter", st.replanIter)
	st.phase = phaseExecuting
}

// runExecuting runs the current plan step: substitute evidence references,
// invoke the tool, bind the result. A replan request or tool failure
// routes to reflecting; cancellation discards the in-flight result.
func (s *Service) runExecuting(ctx context.Context, st *runState) {
	ps := st.plan[st.stepIdx]
	resolved := planner.Substitute(ps.Input, st.bindings)
	node := strings.ToLower(string(ps.Tool))

	step := s.newStep(st, node, ps.Tool.StepType(),
		stepTitle(ps.Tool, resolved), runningContent(ps.Tool, resolved))
	if ps.Tool == models.ToolSearch {
		step.Metadata = &models.StepMetadata{SearchQuery: resolved}
	}
	s.emitStep(st, step)

	outcome, err := s.tools.For(ps.Tool).Invoke(ctx, resolved)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		kind := models.KindToolTransport
		var te *tools.ToolError
		if errors.As(err, &te) {
			kind = te.Kind
		}
		s.metrics.ToolCall(ps.Tool, "error")
		msg := err.Error()
		step.Status = models.StepFailed
		step.Content = msg
		step.Metadata = withError(step.Metadata, msg)
		s.emitStep(st, step)
		s.routeFailure(st, kind, msg)
		return
	}

	if len(outcome.Sources) > 0 {
		if serr := s.store.SetSources(st.searchID, outcome.Sources); serr != nil {
			st.logger.Warn("Sources not recorded", "error", serr)
		}
	}

	if outcome.Kind == tools.OutcomeReplan {
		s.metrics.ToolCall(ps.Tool, "replan")
		kind, msg := replanFailure(ps.Tool)
		step.Status = models.StepFailed
		step.Content = completedContent(ps.Tool, resolved, outcome.Text)
		step.Metadata = withError(outcomeMetadata(ps.Tool, resolved, outcome), msg)
		s.emitStep(st, step)
		s.routeFailure(st, kind, msg)
		return
	}

	s.metrics.ToolCall(ps.Tool, string(outcome.Kind))
	st.bindings[ps.Evidence] = outcome.Text
	step.Status = models.StepCompleted
	step.Content = completedContent(ps.Tool, resolved, outcome.Text)
	step.Metadata = outcomeMetadata(ps.Tool, resolved, outcome)
	s.emitStep(st, step)
	st.logger.Debug("Step completed", "evidence", ps.Evidence, "tool", ps.Tool)

	st.stepIdx++
	if st.stepIdx >= len(st.plan) {
		st.phase = phaseSolving
	}
}

// runReflecting handles the failure routed here. With replan budget left
// it emits a recoverable error event, asks the LLM to reflect on the
// failed plan, and loops back to planning; otherwise the failure is
// terminal. Returns true when the run is over.
func (s *Service) runReflecting(ctx context.Context, st *runState) bool {
	kind, msg := st.pendingKind, st.pendingMsg

	if st.replanIter >= s.cfg.MaxReplanIter {
		s.finishError(st, kind, msg)
		return true
	}

	s.events.Broadcast(events.NewError(st.searchID, msg, st.lastStepID, true, kind))
	s.metrics.ReplanTriggered()
	st.logger.Info("Replanning", "reason", kind, "replan_iter", st.replanIter+1)

	step := s.newStep(st, "replan", models.StepReplan,
		"Adjusting research strategy",
		"Re-evaluating approach and creating an improved research plan based on current findings.")
	s.emitStep(st, step)

	reflection, err := s.llm.Generate(ctx, []llm.Message{llm.User(prompt.Reflection(st.task, st.planText))})
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		rmsg := fmt.Sprintf("reflection failed: %v", err)
		step.Status = models.StepFailed
		step.Metadata = &models.StepMetadata{Error: rmsg}
		s.emitStep(st, step)
		s.finishError(st, models.KindToolTransport, rmsg)
		return true
	}

	st.reflection = strings.TrimSpace(reflection)
	step.Status = models.StepCompleted
	step.Content = "Reflection on Current Plan:\n\n" + clip(st.reflection, 400)
	s.emitStep(st, step)

	st.replanIter++
	st.plan = nil
	st.bindings = make(map[string]string)
	st.stepIdx = 0
	st.phase = phasePlanning
	return false
}

// runSolving renders the evidence trace, synthesizes the answer, and adds
// a human-readable explanation. The explanation call is best effort; its
// failure leaves the explanation empty. Returns true when the run is over.
func (s *Service) runSolving(ctx context.Context, st *runState) bool {
	step := s.newStep(st, "solve", models.StepSolve,
		"Synthesizing final answer from research",
		fmt.Sprintf("Analyzing and combining information from %d research steps to generate comprehensive answer.", len(st.bindings)))
	s.emitStep(st, step)

	trace := planner.RenderTrace(st.plan, st.bindings)
	resp, err := s.llm.Generate(ctx, []llm.Message{llm.User(prompt.Solver(trace, st.task))})
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		msg := fmt.Sprintf("answer synthesis failed: %v", err)
		step.Status = models.StepFailed
		step.Metadata = &models.StepMetadata{Error: msg}
		s.emitStep(st, step)
		s.finishError(st, models.KindToolTransport, msg)
		return true
	}

	answer := prompt.AnswerOrWhole(resp)
	step.Status = models.StepCompleted
	step.Content = solveContent(st.task, st.plan, st.bindings, answer)
	s.emitStep(st, step)

	explanation := ""
	if text, eerr := s.llm.Generate(ctx, []llm.Message{llm.User(prompt.Explanation(st.task, trace, answer))}); eerr != nil {
		if ctx.Err() != nil {
			return false
		}
		st.logger.Warn("Explanation generation failed", "error", eerr)
	} else {
		explanation = strings.TrimSpace(text)
	}

	final := s.newStep(st, "final_result", models.StepSolve,
		"Final Answer with Explanation", finalContent(st.task, answer, explanation))
	final.Status = models.StepCompleted
	s.emitStep(st, final)

	if err := s.store.SetAnswer(st.searchID, answer, explanation); err != nil {
		st.logger.Warn("Answer not recorded", "error", err)
	}
	if err := s.store.MarkTerminal(st.searchID, models.StatusCompleted, "", ""); err != nil {
		st.logger.Warn("Session not marked completed", "error", err)
	}

	finalAnswer := answer
	if explanation != "" {
		finalAnswer = explanation
	}
	elapsed := time.Since(st.start)
	s.events.Broadcast(events.NewSearchComplete(st.searchID, finalAnswer, st.stepCounter, elapsed))
	s.metrics.SearchFinished(models.StatusCompleted, elapsed)
	st.logger.Info("Search completed", "steps", st.stepCounter, "replans", st.replanIter, "duration", elapsed)
	return true
}

// finishError terminates the run in error and emits the final,
// unrecoverable error event.
func (s *Service) finishError(st *runState, kind models.ErrorKind, msg string) {
	if err := s.store.MarkTerminal(st.searchID, models.StatusError, kind, msg); err != nil {
		st.logger.Warn("Session not marked failed", "error", err)
	}
	s.events.Broadcast(events.NewError(st.searchID, msg, st.lastStepID, false, kind))
	s.metrics.SearchFinished(models.StatusError, time.Since(st.start))
	st.logger.Error("Search failed", "error_code", kind, "error", msg)
}

// finishInterrupted terminates a run whose context ended: the run
// deadline maps to a timeout error, an explicit cancel to the cancelled
// state. Cancellation wins over whatever the run was doing.
func (s *Service) finishInterrupted(ctx context.Context, st *runState) {
	elapsed := time.Since(st.start)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("search timed out after %s", s.cfg.SearchTimeout)
		if err := s.store.MarkTerminal(st.searchID, models.StatusError, models.KindTimeout, msg); err != nil {
			st.logger.Warn("Session not marked failed", "error", err)
		}
		s.events.Broadcast(events.NewError(st.searchID, msg, st.lastStepID, false, models.KindTimeout))
		s.metrics.SearchFinished(models.StatusError, elapsed)
		st.logger.Warn("Search timed out", "elapsed", elapsed)
		return
	}

	msg := "Search was cancelled"
	if err := s.store.MarkTerminal(st.searchID, models.StatusCancelled, models.KindCancelled, msg); err != nil {
		st.logger.Warn("Session not marked cancelled", "error", err)
	}
	s.events.Broadcast(events.NewError(st.searchID, msg, "", true, models.KindCancelled))
	s.metrics.SearchFinished(models.StatusCancelled, elapsed)
	st.logger.Info("Search cancelled", "elapsed", elapsed)
}

// newStep allocates the next step of the run. IDs follow
// "<search_id>_<node>_<counter>" with one counter across all nodes.
func (s *Service) newStep(st *runState, node string, typ models.StepType, title, content string) models.Step {
	st.stepCounter++
	id := fmt.Sprintf("%s_%s_%d", st.searchID, node, st.stepCounter)
	st.lastStepID = id
	return models.Step{
		ID:      id,
		Type:    typ,
		Status:  models.StepRunning,
		Title:   title,
		Content: content,
	}
}

// emitStep records the step on the session and broadcasts it. Store
// failures are logged and do not stop the run; after a reset the session
// may already be gone while the run winds down.
func (s *Service) emitStep(st *runState, step models.Step) {
	step.Timestamp = time.Now().UTC()
	if err := s.store.UpsertStep(st.searchID, step); err != nil {
		st.logger.Warn("Step not recorded", "step_id", step.ID, "error", err)
	}
	s.events.Broadcast(events.NewStepUpdate(st.searchID, step))
}

// routeFailure parks a failure for the reflecting phase.
func (s *Service) routeFailure(st *runState, kind models.ErrorKind, msg string) {
	st.pendingKind, st.pendingMsg = kind, msg
	st.phase = phaseReflecting
}

// replanFailure classifies a tool's replan request.
func replanFailure(tool models.Tool) (models.ErrorKind, string) {
	switch tool {
	case models.ToolSearch:
		return models.KindSearchUnsatisfactory, "search results did not answer the step"
	case models.ToolCode:
		return models.KindCodeExecution, "code execution could not produce a result"
	default:
		return models.KindLLMReplan, "the model requested a new plan"
	}
}

func stepTitle(tool models.Tool, input string) string {
	switch tool {
	case models.ToolSearch:
		if input == "" {
			return "Performing web search"
		}
		return "Searching: " + clip(input, 60)
	case models.ToolCode:
		return "Executing calculations and data processing"
	default:
		return "Processing reasoning step"
	}
}

func runningContent(tool models.Tool, input string) string {
	switch tool {
	case models.ToolSearch:
		return "Executing web search to find information about:\n" + input
	case models.ToolCode:
		return "Running Python code to process data and perform calculations:\n\nQuery: " + input
	default:
		return "Reasoning over the accumulated evidence:\n" + input
	}
}

func completedContent(tool models.Tool, input, result string) string {
	switch tool {
	case models.ToolSearch:
		return fmt.Sprintf("Search Query: %s\n\nSearch Results:\n%s", input, clip(result, 300))
	case models.ToolCode:
		return fmt.Sprintf("Code Execution Task: %s\n\nCode Output:\n%s", input, clip(result, 400))
	default:
		return fmt.Sprintf("Task: %s\n\nResult:\n%s", input, clip(result, 400))
	}
}

// outcomeMetadata builds the structured detail clients render per tool.
func outcomeMetadata(tool models.Tool, input string, outcome *tools.Outcome) *models.StepMetadata {
	meta := &models.StepMetadata{}
	switch tool {
	case models.ToolSearch:
		meta.SearchQuery = input
		meta.Sources = outcome.Sources
	case models.ToolCode:
		meta.CodeResult = outcome.Text
	default:
		meta.LLMResult = outcome.Text
	}
	return meta
}

// withError sets the error field, allocating metadata when needed.
func withError(meta *models.StepMetadata, msg string) *models.StepMetadata {
	if meta == nil {
		meta = &models.StepMetadata{}
	}
	meta.Error = msg
	return meta
}

// planContent renders the completed plan step body.
func planContent(plan models.Plan) string {
	var b strings.Builder
	b.WriteString("Research Plan Created:\n\n")
	for i, ps := range plan {
		fmt.Fprintf(&b, "%d. %s - Use %s\n   └ %s\n\n", i+1, ps.Evidence, ps.Tool, ps.Input)
	}
	return b.String()
}

// planOutline renders the plan for step metadata, one line per step.
func planOutline(plan models.Plan) []string {
	out := make([]string, len(plan))
	for i, ps := range plan {
		out[i] = fmt.Sprintf("%s - %s [%s]", ps.Desc, ps.Evidence, ps.Tool)
	}
	return out
}

// solveContent renders the completed solve step: the question, a preview
// of each piece of evidence in plan order, and the synthesized answer.
func solveContent(task string, plan models.Plan, bindings map[string]string, answer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", task)
	if len(bindings) > 0 {
		fmt.Fprintf(&b, "Synthesizing from %d research steps:\n\n", len(bindings))
		n := 0
		for _, ps := range plan {
			result, ok := bindings[ps.Evidence]
			if !ok {
				continue
			}
			n++
			fmt.Fprintf(&b, "%d. %s: %s\n", n, ps.Evidence, clip(result, 100))
		}
		b.WriteString("\n")
	}
	b.WriteString("Final Answer:\n")
	b.WriteString(clip(answer, 500))
	return b.String()
}

// finalContent renders the final result step shown to the user.
func finalContent(task, answer, explanation string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", task)
	if answer != "" {
		fmt.Fprintf(&b, "**Answer:**\n%s\n\n", answer)
	}
	if explanation != "" {
		fmt.Fprintf(&b, "**Explanation:**\n%s", explanation)
	}
	return b.String()
}

// clip truncates s to at most n runes, appending an ellipsis when cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
