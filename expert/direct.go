package expert

import (
	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/model"
)

// DirectResponder answers the latest directive without tools.
type DirectResponder struct {
	responder
	opts Options
}

var _ core.Expert = (*DirectResponder)(nil)

// NewDirectResponder creates a DirectResponder backed by llm.
func NewDirectResponder(llm model.Model, optFns ...func(o *Options)) *DirectResponder {
	opts := buildOptions(NodeDirectExpert, optFns)

	return &DirectResponder{
		responder: responder{name: opts.Name, llm: llm, timeout: opts.Timeout},
		opts:      opts,
	}
}

// Name returns the node name.
func (d *DirectResponder) Name() string { return d.opts.Name }

// Run appends (directive, <Ex>answer</Ex>) to the transcript.
func (d *DirectResponder) Run(rc *core.RunContext) error {
	answer, err := d.answerDirective(rc)
	if err != nil {
		return err
	}

	rc.LogInfo("expert.direct.answer", "chars", len(answer))
	return nil
}
