package expert

import (
	"errors"
	"fmt"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/model"
)

// DecisionKey is the JSON field the router asks the model for.
const DecisionKey = "tool_agent"

var routerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		DecisionKey: map[string]any{},
	},
}

// Router decides whether the latest directive needs a web lookup.
type Router struct {
	responder
	opts Options
}

var _ core.Expert = (*Router)(nil)

// NewRouter creates a Router backed by llm.
func NewRouter(llm model.Model, optFns ...func(o *Options)) *Router {
	opts := buildOptions(NodeRouter, optFns)

	return &Router{
		responder: responder{name: opts.Name, llm: llm, timeout: opts.Timeout},
		opts:      opts,
	}
}

// Name returns the node name.
func (r *Router) Name() string { return r.opts.Name }

// Decide asks the model for a verdict. Every error other than a cancelled
// run context wraps core.ErrRoutingAmbiguous.
func (r *Router) Decide(rc *core.RunContext) (bool, error) {
	directive, ok := rc.State.LatestDirective()
	if !ok {
		return false, ErrNoDirective
	}

	prompt, err := render(r.opts.Prompts.Router, map[string]any{"directive": directive})
	if err != nil {
		return false, err
	}

	var out map[string]any
	if err := r.generateJSON(rc, prompt, []core.Message{core.NewUserMessage(prompt)}, routerSchema, &out); err != nil {
		if rc.Err() != nil {
			return false, rc.Err()
		}
		return false, fmt.Errorf("%w: %w", core.ErrRoutingAmbiguous, err)
	}

	return core.ParseDecision(out[DecisionKey])
}

// Run stores the verdict in the state. An unusable verdict is stored as
// false and the cause is recorded as the routing fallback.
func (r *Router) Run(rc *core.RunContext) error {
	useTools, err := r.Decide(rc)
	if err != nil {
		if errors.Is(err, ErrNoDirective) || rc.Err() != nil {
			return err
		}

		rc.LogWarn("expert.router.fallback", "error", err.Error())

		if err := rc.State.SetRoutingDecision(false); err != nil {
			return err
		}
		return rc.State.RecordRoutingFallback(err)
	}

	rc.LogInfo("expert.router.decision", DecisionKey, useTools)
	return rc.State.SetRoutingDecision(useTools)
}

// Route consumes the stored verdict and names the next node.
func Route(rc *core.RunContext) (string, error) {
	useTools, err := rc.State.TakeRoutingDecision()
	if err != nil {
		return "", err
	}
	if useTools {
		return NodeToolExpert, nil
	}
	return NodeDirectExpert, nil
}
