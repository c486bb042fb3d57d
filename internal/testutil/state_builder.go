package testutil

import (
	"context"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/logging"
)

// StateBuilder provides a fluent helper for constructing run state in tests.
//
//	st := NewStateBuilder("weather?").Directive("look it up").Decision(true).Build()
type StateBuilder struct {
	input      string
	runID      string
	history    []core.Message
	directives []string
	decision   *bool
}

// NewStateBuilder starts a builder for input.
func NewStateBuilder(input string) *StateBuilder {
	return &StateBuilder{input: input, runID: "run-test"}
}

// RunID overrides the default run id.
func (b *StateBuilder) RunID(id string) *StateBuilder { b.runID = id; return b }

// Turn adds one prior transcript exchange.
func (b *StateBuilder) Turn(user, assistant string) *StateBuilder {
	b.history = append(b.history, core.NewUserMessage(user), core.NewAssistantMessage(assistant))
	return b
}

// Directive records a coordinator exchange producing directive.
func (b *StateBuilder) Directive(directive string) *StateBuilder {
	b.directives = append(b.directives, directive)
	return b
}

// Decision stores a routing verdict.
func (b *StateBuilder) Decision(useTools bool) *StateBuilder { b.decision = &useTools; return b }

// Build constructs the state. Builder misuse panics since it is a test bug.
func (b *StateBuilder) Build() *core.State {
	st := core.NewState(b.input, core.WithRunID(b.runID), core.WithHistory(b.history))
	for _, d := range b.directives {
		if err := st.AppendCoordinatorTurn(b.input, d); err != nil {
			panic(err)
		}
	}
	if b.decision != nil {
		if err := st.SetRoutingDecision(*b.decision); err != nil {
			panic(err)
		}
	}
	return st
}

// RunContext wraps st in a background RunContext without logging.
func RunContext(st *core.State) *core.RunContext {
	return core.NewRunContext(context.Background(), st, logging.NoOpLogger{})
}
