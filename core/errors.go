package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error produced by the experts, tools and orchestrator
// wraps one of these sentinels so callers can branch with errors.Is.
var (
	// ErrMalformedOutput reports a structured generator response that could
	// not be parsed or lacked a required field.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrGeneratorUnavailable reports a text generation failure (transport,
	// provider or deadline) that is not a parsing problem.
	ErrGeneratorUnavailable = errors.New("generator unavailable")

	// ErrToolUnavailable reports a search or fetch failure.
	ErrToolUnavailable = errors.New("tool unavailable")

	// ErrFetchEmpty reports a fetched page without extractable content.
	ErrFetchEmpty = errors.New("fetched page is empty")

	// ErrRoutingAmbiguous reports a router response without a usable decision.
	ErrRoutingAmbiguous = errors.New("routing decision ambiguous")

	// ErrStepBudgetExceeded reports a run that needed more node invocations
	// than its configured maximum.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrRunFinished reports a mutation or re-entry attempt on a run that
	// already reached a terminal state.
	ErrRunFinished = errors.New("run already finished")

	// ErrRunInProgress reports a second concurrent execution for the same run id.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrNoDecision reports a branch attempted before the router ran.
	ErrNoDecision = errors.New("routing decision not set")

	// ErrDecisionConsumed reports a second read of the routing decision.
	ErrDecisionConsumed = errors.New("routing decision already consumed")
)

// PipelineError records which step of the tool pipeline failed.
type PipelineError struct {
	Step string
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("tool pipeline failed at %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error { return e.Err }

// RunError records the node at which a run stopped. The state returned next
// to a RunError holds whatever was recorded before the failure.
type RunError struct {
	RunID string
	Node  string
	Err   error
}

func (e *RunError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("run %s failed: %v", e.RunID, e.Err)
	}
	return fmt.Sprintf("run %s failed at node %s: %v", e.RunID, e.Node, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error { return e.Err }
