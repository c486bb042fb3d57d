package expert

import (
	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/model"
)

// Coordinator turns the user input into a directive for the downstream
// expert. It sees the transcript so far but never answers the user itself.
type Coordinator struct {
	responder
	opts Options
}

var _ core.Expert = (*Coordinator)(nil)

// NewCoordinator creates a Coordinator backed by llm.
func NewCoordinator(llm model.Model, optFns ...func(o *Options)) *Coordinator {
	opts := buildOptions(NodeCoordinator, optFns)
	if opts.Instruction.IsZero() {
		opts.Instruction = NewInstructionFromText(opts.Prompts.Coordinator)
	}

	return &Coordinator{
		responder: responder{name: opts.Name, llm: llm, timeout: opts.Timeout},
		opts:      opts,
	}
}

// Name returns the node name.
func (c *Coordinator) Name() string { return c.opts.Name }

// Run generates a directive from the transcript plus the user input and
// appends the exchange to the coordinator log.
func (c *Coordinator) Run(rc *core.RunContext) error {
	raw, err := c.opts.Instruction.Resolve(rc)
	if err != nil {
		return err
	}

	instructions, err := render(raw, map[string]any{"user_input": rc.State.UserInput})
	if err != nil {
		return err
	}

	contents := append(rc.State.Transcript(), core.NewUserMessage(rc.State.UserInput))

	rc.LogDebug("expert.coordinator.start", "history", len(contents)-1)

	directive, err := c.generate(rc, instructions, contents)
	if err != nil {
		return err
	}

	if err := rc.State.AppendCoordinatorTurn(rc.State.UserInput, directive); err != nil {
		return err
	}

	rc.LogInfo("expert.coordinator.directive", "chars", len(directive))
	return nil
}
