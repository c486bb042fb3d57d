package expert

import "time"

// Options configure an expert. Not every expert reads every field.
type Options struct {
	// Name overrides the node name reported by Name().
	Name string
	// Timeout bounds each generator call. Zero leaves calls bounded only by
	// the run context.
	Timeout time.Duration
	// Prompts overrides the default templates; empty fields keep defaults.
	Prompts Prompts
	// Instruction overrides the Coordinator system prompt entirely.
	Instruction Instruction
}

func buildOptions(name string, optFns []func(o *Options)) Options {
	opts := Options{
		Name:    name,
		Timeout: 60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Prompts = opts.Prompts.merge()
	return opts
}

// Node names used by the default graph.
const (
	NodeCoordinator  = "coordinator"
	NodeRouter       = "router"
	NodeDirectExpert = "direct_expert"
	NodeToolExpert   = "tool_expert"
)
