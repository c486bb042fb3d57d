package orchestrator

import (
	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/logging"
)

// Options configure a compiled Graph.
type Options struct {
	// MaxSteps bounds node invocations per run. Zero means core.DefaultMaxSteps.
	MaxSteps int

	// Logger receives orchestrator events. Defaults to a no-op logger.
	Logger logging.Logger

	// Guard rejects concurrent executions of one run id. Defaults to a
	// process-local MemoryGuard.
	Guard Guard

	// Callbacks are executed at every lifecycle point.
	Callbacks *CallbackManager

	// Metrics, when set, is fed through its own callbacks.
	Metrics *Metrics
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := Options{
		MaxSteps: core.DefaultMaxSteps,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSteps <= 0 {
		opts.MaxSteps = core.DefaultMaxSteps
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Guard == nil {
		opts.Guard = NewMemoryGuard()
	}

	cm := NewCallbackManager()
	if opts.Callbacks != nil {
		for t, cbs := range opts.Callbacks.callbacks {
			cm.callbacks[t] = append(cm.callbacks[t], cbs...)
		}
	}
	if opts.Metrics != nil {
		cm.RegisterCallback(opts.Metrics.Callbacks()...)
	}
	opts.Callbacks = cm

	return opts
}
