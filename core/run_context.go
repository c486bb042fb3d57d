package core

import (
	"context"

	"github.com/hupe1980/metaexpert/logging"
)

// RunContext carries the execution scope handed to a node. It aggregates:
//   - the ambient cancellation Context
//   - the run identifier and the current node name
//   - the run's State, borrowed for the duration of the node call
//   - a non-nil logger scoped to the run id and node
type RunContext struct {
	Context context.Context
	RunID   string
	Node    string
	State   *State

	*loggerAdapter
}

// NewRunContext constructs a RunContext for the given state.
func NewRunContext(ctx context.Context, state *State, logger logging.Logger) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RunContext{
		Context:       ctx,
		RunID:         state.RunID,
		State:         state,
		loggerAdapter: newLoggerAdapter(logger, state.RunID, ""),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// ForNode returns a shallow copy scoped to the named node. Its log lines
// carry the node name.
func (rc *RunContext) ForNode(name string) *RunContext {
	c := *rc
	c.Node = name
	c.loggerAdapter = rc.forNode(rc.RunID, name)
	return &c
}

// WithContext returns a shallow copy bound to ctx.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	c := *rc
	c.Context = ctx
	return &c
}
