package core

import (
	"fmt"
	"time"
)

// ToolResultLabel is the fixed key under which the web lookup pipeline stages
// its output.
const ToolResultLabel = "scraper_response"

// ToolResult is the staged output of the most recent tool pipeline. The raw
// page content is kept out of the transcript.
type ToolResult struct {
	Label     string `json:"label"`
	UserInput string `json:"user_input"`
	Query     string `json:"query"`
	URL       string `json:"url"`
	Content   string `json:"content"`
}

// Messages returns the result as the user/assistant pair a downstream expert
// would feed to a model.
func (r ToolResult) Messages() []Message {
	return []Message{
		NewUserMessage(r.UserInput),
		NewAssistantMessage("system_prompt:" + r.Content),
	}
}

// State is the conversation record owned by one run. It is handed to exactly
// one node at a time and is not safe for concurrent use.
//
// Contract:
//   - the coordinator log and the transcript only grow, and only by whole
//     user/assistant pairs
//   - the routing decision is written by the router and read once
//   - once Finish or Abort has been called every mutation returns ErrRunFinished
//   - getters return copies
type State struct {
	RunID     string
	UserInput string
	Created   time.Time

	coordinatorLog []Message
	transcript     []Message
	seeded         int
	lastToolResult *ToolResult
	decision       *bool
	decisionRead   bool
	routeFallback  error
	stepCount      int
	finished       bool
	aborted        error
}

// StateOption customises a new State.
type StateOption func(s *State)

// WithHistory seeds the transcript with caller-owned prior turns. Seeded
// history is copied; an odd trailing message is dropped to keep the pairing.
func WithHistory(history []Message) StateOption {
	return func(s *State) {
		n := len(history) - len(history)%2
		s.transcript = append(s.transcript, history[:n]...)
		s.seeded = len(s.transcript)
	}
}

// WithRunID fixes the run identifier instead of leaving it to the orchestrator.
func WithRunID(id string) StateOption {
	return func(s *State) { s.RunID = id }
}

// NewState creates a fresh state for one run.
func NewState(userInput string, opts ...StateOption) *State {
	s := &State{
		UserInput:      userInput,
		Created:        time.Now().UTC(),
		coordinatorLog: []Message{},
		transcript:     []Message{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *State) checkOpen() error {
	if s.finished || s.aborted != nil {
		return ErrRunFinished
	}
	return nil
}

// AppendCoordinatorTurn records one coordinator exchange.
func (s *State) AppendCoordinatorTurn(user, assistant string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.coordinatorLog = append(s.coordinatorLog, NewUserMessage(user), NewAssistantMessage(assistant))
	return nil
}

// AppendTranscriptTurn records one resolved exchange in the transcript.
func (s *State) AppendTranscriptTurn(user, assistant string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.transcript = append(s.transcript, NewUserMessage(user), NewAssistantMessage(assistant))
	return nil
}

// CoordinatorLog returns a copy of the coordinator log.
func (s *State) CoordinatorLog() []Message {
	out := make([]Message, len(s.coordinatorLog))
	copy(out, s.coordinatorLog)
	return out
}

// Transcript returns a copy of the transcript.
func (s *State) Transcript() []Message {
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// LatestDirective returns the most recent coordinator output.
func (s *State) LatestDirective() (string, bool) {
	if len(s.coordinatorLog) == 0 {
		return "", false
	}
	return s.coordinatorLog[len(s.coordinatorLog)-1].Content, true
}

// LastAssistant returns the most recent assistant message of the transcript.
func (s *State) LastAssistant() (string, bool) {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Role == RoleAssistant {
			return s.transcript[i].Content, true
		}
	}
	return "", false
}

// RunAnswer returns the most recent assistant message appended by this run.
// Seeded history is never returned, so a run that failed before any expert
// answered has no answer.
func (s *State) RunAnswer() (string, bool) {
	for i := len(s.transcript) - 1; i >= s.seeded; i-- {
		if s.transcript[i].Role == RoleAssistant {
			return s.transcript[i].Content, true
		}
	}
	return "", false
}

// SeededTurns returns the number of messages seeded with WithHistory.
func (s *State) SeededTurns() int { return s.seeded }

// SetToolResult stages the output of the tool pipeline.
func (s *State) SetToolResult(r ToolResult) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if r.Label == "" {
		r.Label = ToolResultLabel
	}
	s.lastToolResult = &r
	return nil
}

// ToolResult returns the staged tool output, if any.
func (s *State) ToolResult() (ToolResult, bool) {
	if s.lastToolResult == nil {
		return ToolResult{}, false
	}
	return *s.lastToolResult, true
}

// SetRoutingDecision stores the router's verdict.
func (s *State) SetRoutingDecision(useTools bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.decision = &useTools
	s.decisionRead = false
	return nil
}

// RecordRoutingFallback notes that the stored decision is the fail-closed
// default rather than a parsed verdict.
func (s *State) RecordRoutingFallback(cause error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.routeFallback = cause
	return nil
}

// RoutingFallback returns the reason the router fell back, if it did.
func (s *State) RoutingFallback() error { return s.routeFallback }

// HasRoutingDecision reports whether the router stored a verdict.
func (s *State) HasRoutingDecision() bool { return s.decision != nil }

// TakeRoutingDecision reads the router verdict. It may be called once.
func (s *State) TakeRoutingDecision() (bool, error) {
	if s.decision == nil {
		return false, ErrNoDecision
	}
	if s.decisionRead {
		return false, ErrDecisionConsumed
	}
	s.decisionRead = true
	return *s.decision, nil
}

// IncrementStep advances the step counter and returns the new value.
func (s *State) IncrementStep() (int, error) {
	if err := s.checkOpen(); err != nil {
		return s.stepCount, err
	}
	s.stepCount++
	return s.stepCount, nil
}

// StepCount returns the number of node invocations so far.
func (s *State) StepCount() int { return s.stepCount }

// Finish marks the run complete. It succeeds exactly once.
func (s *State) Finish() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.finished = true
	return nil
}

// Abort freezes the state after a failed run. The first cause wins.
func (s *State) Abort(cause error) {
	if s.finished || s.aborted != nil {
		return
	}
	if cause == nil {
		cause = fmt.Errorf("aborted")
	}
	s.aborted = cause
}

// IsFinished reports whether the terminal node ran.
func (s *State) IsFinished() bool { return s.finished }

// Err returns the abort cause, if any.
func (s *State) Err() error { return s.aborted }

// Closed reports whether the state accepts no further mutation.
func (s *State) Closed() bool { return s.finished || s.aborted != nil }
