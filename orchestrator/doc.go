// Package orchestrator wires experts into a directed graph and executes it
// for one run at a time.
//
// A graph is declared with a Builder and compiled once; the compiled Graph is
// immutable and may execute many independent runs concurrently, each owning
// its own core.State. Within a run there is a single thread of control: the
// state is handed to exactly one node at a time.
//
// Each node invocation costs one step. When a run needs more steps than its
// budget allows it is aborted with core.ErrStepBudgetExceeded. Every failure
// freezes the state and is returned as a *core.RunError next to the partially
// filled state.
//
// Lifecycle callbacks (before_node, after_node, on_route, on_error, on_finish)
// make the execution observable; Metrics plugs prometheus collectors into
// them.
package orchestrator
