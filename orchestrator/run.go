package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/logging"
)

// Run outcomes reported through on_finish and metrics.
const (
	OutcomeFinished       = "finished"
	OutcomeAborted        = "aborted"
	OutcomeBudgetExceeded = "budget_exceeded"
	OutcomeCancelled      = "cancelled"
	OutcomeRejected       = "rejected"
)

// Outcome classifies a run result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeFinished
	case errors.Is(err, core.ErrStepBudgetExceeded):
		return OutcomeBudgetExceeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(err, core.ErrRunInProgress), errors.Is(err, core.ErrRunFinished):
		return OutcomeRejected
	default:
		return OutcomeAborted
	}
}

// Graph is a compiled, immutable graph. It is safe for concurrent use by
// independent runs.
type Graph struct {
	nodes    map[string]core.Expert
	edges    map[string]string
	branches map[string]branch
	entry    string
	finish   string
	opts     Options
}

// MaxSteps returns the configured step budget.
func (g *Graph) MaxSteps() int { return g.opts.MaxSteps }

// Run executes the graph on st until the finish node returned or a failure
// stopped it. The state is always returned; on failure it holds whatever was
// recorded before the failing step and the error is a *core.RunError.
//
// A state without a run id is assigned a fresh one.
func (g *Graph) Run(ctx context.Context, st *core.State) (*core.State, error) {
	if st == nil {
		return nil, errors.New("orchestrator: nil state")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}

	start := time.Now()
	logger := g.opts.Logger

	if st.Closed() {
		return st, g.reject(ctx, st, start, core.ErrRunFinished)
	}

	release, err := g.opts.Guard.Acquire(ctx, st.RunID)
	if err != nil {
		return st, g.reject(ctx, st, start, err)
	}
	defer release()

	limiter := core.NewStepLimiter(g.opts.MaxSteps)
	rc := core.NewRunContext(ctx, st, logger)

	logger.Info("orchestrator.run.start", "run_id", st.RunID, "max_steps", g.opts.MaxSteps)

	current := g.entry
	for {
		if err := ctx.Err(); err != nil {
			return st, g.abort(rc, current, start, err)
		}

		if err := limiter.Increment(); err != nil {
			return st, g.abort(rc, current, start, err)
		}
		step, err := st.IncrementStep()
		if err != nil {
			return st, g.abort(rc, current, start, err)
		}

		nrc := rc.ForNode(current)
		cc := &CallbackContext{RunID: st.RunID, Node: current, Step: step, State: st}

		if err := g.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeNode, cc); err != nil {
			return st, g.abort(rc, current, start, err)
		}

		logger.Debug("orchestrator.node.start", "run_id", st.RunID, "node", current, "step", step)

		nodeStart := time.Now()
		err = g.nodes[current].Run(nrc)
		cc.Duration = time.Since(nodeStart)

		if err != nil {
			cc.Err = err
			_ = g.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnError, cc)
			return st, g.abort(rc, current, start, err)
		}

		if err := g.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterNode, cc); err != nil {
			return st, g.abort(rc, current, start, err)
		}

		logger.Debug("orchestrator.node.complete", "run_id", st.RunID, "node", current, "duration", cc.Duration)

		if current == g.finish {
			if !st.IsFinished() {
				if err := st.Finish(); err != nil {
					return st, g.abort(rc, current, start, err)
				}
			}
			g.finishRun(ctx, st, current, start, nil)
			return st, nil
		}

		next, err := g.next(nrc, current, cc)
		if err != nil {
			return st, g.abort(rc, current, start, err)
		}
		current = next
	}
}

// next follows the outgoing edge of node.
func (g *Graph) next(rc *core.RunContext, node string, cc *CallbackContext) (string, error) {
	if to, ok := g.edges[node]; ok {
		return to, nil
	}

	br := g.branches[node]
	key, err := br.fn(rc)
	if err != nil {
		return "", fmt.Errorf("branch after %s: %w", node, err)
	}

	to, ok := br.paths[key]
	if !ok {
		return "", fmt.Errorf("branch after %s returned unknown path %q", node, key)
	}

	cc.Next = to
	cc.Fallback = rc.State.RoutingFallback()
	if err := g.opts.Callbacks.ExecuteCallbacks(rc.Context, CallbackOnRoute, cc); err != nil {
		return "", err
	}

	return to, nil
}

// abort freezes the state and wraps err.
func (g *Graph) abort(rc *core.RunContext, node string, start time.Time, err error) error {
	st := rc.State
	st.Abort(err)

	g.finishRun(rc.Context, st, node, start, err)
	return &core.RunError{RunID: st.RunID, Node: node, Err: err}
}

// reject reports a run that never started. The state is not touched since it
// belongs to another execution.
func (g *Graph) reject(ctx context.Context, st *core.State, start time.Time, err error) error {
	g.finishRun(ctx, st, "", start, err)
	return &core.RunError{RunID: st.RunID, Err: err}
}

// finishRun logs the run summary and fires on_finish.
func (g *Graph) finishRun(ctx context.Context, st *core.State, node string, start time.Time, err error) {
	logging.Run(g.opts.Logger, st.StepCount(), time.Since(start), err,
		"run_id", st.RunID,
		"node", node,
		"outcome", Outcome(err),
	)

	_ = g.opts.Callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackOnFinish, &CallbackContext{
		RunID:    st.RunID,
		Node:     node,
		Step:     st.StepCount(),
		State:    st,
		Duration: time.Since(start),
		Err:      err,
	})
}
