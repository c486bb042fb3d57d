// Package metaexpert provides a high-level façade over the meta-expert
// orchestration loop: a coordinator turns the user input into a directive, a
// router decides whether a web lookup is needed, and either a direct
// responder or a tool-using expert produces the answer.
//
// Most applications interact with this package by:
//  1. Creating a MetaExpert via New() with a model.Model and a tool.Invoker
//  2. Calling Run for a single input, or RunBatch for independent inputs
//  3. Reading the answer from the returned state (see Answer)
//
// Every run owns a fresh core.State. The state is returned even when a run
// fails, holding whatever was recorded before the failure.
package metaexpert

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/expert"
	"github.com/hupe1980/metaexpert/logging"
	"github.com/hupe1980/metaexpert/model"
	"github.com/hupe1980/metaexpert/orchestrator"
	"github.com/hupe1980/metaexpert/tool"
)

// Options configures the MetaExpert instance.
type Options struct {
	// MaxSteps bounds node invocations per run (default core.DefaultMaxSteps).
	MaxSteps int

	// MaxConcurrentRuns limits RunBatch parallelism. Zero or less means 4.
	MaxConcurrentRuns int

	// GenerateTimeout bounds every generator call.
	GenerateTimeout time.Duration

	// Prompts overrides the default templates; empty fields keep defaults.
	Prompts expert.Prompts

	// CoordinatorInstruction replaces the coordinator system prompt.
	CoordinatorInstruction expert.Instruction

	// Guard rejects concurrent runs with the same id (defaults to in-memory).
	Guard orchestrator.Guard

	// Callbacks observe the run lifecycle.
	Callbacks *orchestrator.CallbackManager

	// Metrics, when set, is updated by every run.
	Metrics *orchestrator.Metrics

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// MetaExpert is the high-level façade aggregating the experts and the graph.
type MetaExpert struct {
	opts  Options
	graph *orchestrator.Graph
}

// New creates a MetaExpert that generates with llm and looks things up with
// tools.
func New(llm model.Model, tools tool.Invoker, optFns ...func(o *Options)) (*MetaExpert, error) {
	if llm == nil {
		return nil, errors.New("metaexpert: model is required")
	}
	if tools == nil {
		return nil, errors.New("metaexpert: tool invoker is required")
	}

	opts := Options{
		MaxSteps:          core.DefaultMaxSteps,
		MaxConcurrentRuns: 4,
		GenerateTimeout:   60 * time.Second,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 4
	}

	expertOpts := func(o *expert.Options) {
		o.Timeout = opts.GenerateTimeout
		o.Prompts = opts.Prompts
		o.Instruction = opts.CoordinatorInstruction
	}

	g, err := orchestrator.NewDefault(
		expert.NewCoordinator(llm, expertOpts),
		expert.NewRouter(llm, expertOpts),
		expert.NewDirectResponder(llm, expertOpts),
		expert.NewToolUser(llm, tools, expertOpts),
		func(o *orchestrator.Options) {
			o.MaxSteps = opts.MaxSteps
			o.Logger = opts.Logger
			o.Guard = opts.Guard
			o.Callbacks = opts.Callbacks
			o.Metrics = opts.Metrics
		},
	)
	if err != nil {
		return nil, err
	}

	return &MetaExpert{opts: opts, graph: g}, nil
}

// RunOption customises the state of a single run.
type RunOption = core.StateOption

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) RunOption { return core.WithRunID(id) }

// WithHistory seeds the transcript with prior caller-owned turns.
func WithHistory(history []core.Message) RunOption { return core.WithHistory(history) }

// Run executes one run for input.
func (m *MetaExpert) Run(ctx context.Context, input string, runOpts ...RunOption) (*core.State, error) {
	return m.graph.Run(ctx, core.NewState(input, runOpts...))
}

// Result is the outcome of one batch entry.
type Result struct {
	Input string
	State *core.State
	Err   error
}

// RunBatch executes independent runs concurrently, at most MaxConcurrentRuns
// at a time. Per-run failures are reported in the results; the returned error
// is only set when ctx ended before every run started.
func (m *MetaExpert) RunBatch(ctx context.Context, inputs []string) ([]Result, error) {
	results := make([]Result, len(inputs))

	var g errgroup.Group
	g.SetLimit(m.opts.MaxConcurrentRuns)

	var skipped error
	for i, input := range inputs {
		results[i].Input = input
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			skipped = err
			continue
		}
		g.Go(func() error {
			st, err := m.Run(ctx, input)
			results[i].State = st
			results[i].Err = err
			return nil
		})
	}

	_ = g.Wait()

	return results, skipped
}

// Answer returns the answer produced by this run without its delimiters. It
// is empty when the run failed before an expert answered, even if seeded
// history holds earlier answers.
func Answer(st *core.State) string {
	if st == nil {
		return ""
	}
	last, ok := st.RunAnswer()
	if !ok {
		return ""
	}
	return core.UnwrapExpert(last)
}
