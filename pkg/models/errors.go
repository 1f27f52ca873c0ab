package models

// ErrorKind is the machine-readable classification of a failure. It travels
// as the wire `error_code` in HTTP error bodies and WebSocket error events,
// and records on the session why a run ended.
type ErrorKind string

const (
	// KindInvalidQuery rejects a submission before any session exists.
	KindInvalidQuery ErrorKind = "invalid_query"
	// KindCapacity rejects a submission when the scheduler is at its
	// concurrency cap.
	KindCapacity ErrorKind = "capacity"
	// KindPlanParseEmpty marks a planner response that yielded zero steps.
	KindPlanParseEmpty ErrorKind = "plan_parse_empty"
	// KindPlanUnparseable marks a replanned response that also yielded
	// zero steps, with no replan budget left.
	KindPlanUnparseable ErrorKind = "plan_unparseable_after_replan"
	// KindSearchUnsatisfactory marks a search whose summarizer could not
	// answer from the gathered context.
	KindSearchUnsatisfactory ErrorKind = "search_unsatisfactory"
	// KindCodeExecution marks a sandbox run that exited non-zero or an
	// executor failure.
	KindCodeExecution ErrorKind = "code_execution_failure"
	// KindLLMReplan marks an LLM tool response that requested a replan.
	KindLLMReplan ErrorKind = "llm_replan_request"
	// KindToolTransport marks a collaborator HTTP failure after retries.
	KindToolTransport ErrorKind = "tool_call_transport"
	// KindTimeout marks a run that hit its deadline or recursion budget.
	KindTimeout ErrorKind = "timeout"
	// KindCancelled marks a user or new-chat cancellation.
	KindCancelled ErrorKind = "cancelled"
	// KindSubscriberSend marks a WebSocket send failure. Server-side only:
	// the offending subscriber is evicted, never notified.
	KindSubscriberSend ErrorKind = "subscriber_send"
)
