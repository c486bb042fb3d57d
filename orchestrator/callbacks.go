package orchestrator

import (
	"context"
	"time"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/logging"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Callbacks are executed synchronously. A callback returning an error aborts
// the run with that error.
type CallbackType string

const (
	// CallbackBeforeNode is triggered before a node runs.
	CallbackBeforeNode CallbackType = "before_node"

	// CallbackAfterNode is triggered after a node returned without error.
	CallbackAfterNode CallbackType = "after_node"

	// CallbackOnRoute is triggered after a conditional edge picked its target.
	CallbackOnRoute CallbackType = "on_route"

	// CallbackOnError is triggered when a node returns an error.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnFinish is triggered once per run, after it finished or aborted.
	CallbackOnFinish CallbackType = "on_finish"
)

// CallbackContext provides the information a callback may act on. Callbacks
// may read State but must not mutate it.
type CallbackContext struct {
	// CallbackType indicates which lifecycle point triggered this execution.
	CallbackType CallbackType

	RunID string
	Node  string
	Step  int
	State *core.State

	// Duration is the node runtime for after_node and on_error, and the
	// whole run for on_finish.
	Duration time.Duration

	// Next is the node chosen by a conditional edge (on_route).
	Next string

	// Fallback is set on on_route when the router could not produce a usable
	// verdict and the default path was taken.
	Fallback error

	// Err is the node error (on_error) or the run outcome (on_finish).
	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations should be fast, since they run on the run's thread of
// control, and must be safe for concurrent use when the graph serves
// concurrent runs.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackBeforeNode,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("entering %s", cc.Node)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager keeps registered callbacks per type and executes them in
// registration order. The first error stops execution.
//
// Registration is not synchronised; register everything before the graph
// starts serving runs. Execution is safe for concurrent use afterwards.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds callbacks to the manager.
func (cm *CallbackManager) RegisterCallback(callbacks ...Callback) {
	for _, callback := range callbacks {
		callbackType := callback.Type()
		cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
	}
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil // No callbacks registered for this type
	}

	callbackCtx.CallbackType = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a logger.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// NewLoggingCallbacks returns one LoggingCallback per lifecycle point.
func NewLoggingCallbacks(logger logging.Logger) []Callback {
	types := []CallbackType{CallbackBeforeNode, CallbackAfterNode, CallbackOnRoute, CallbackOnError, CallbackOnFinish}
	out := make([]Callback, 0, len(types))
	for _, t := range types {
		out = append(out, NewLoggingCallback(t, logger))
	}
	return out
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event. It never fails.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"run_id", cc.RunID, "node", cc.Node, "step", cc.Step}

	switch c.callbackType {
	case CallbackAfterNode:
		c.logger.Debug("orchestrator.callback.after_node", append(args, "duration", cc.Duration)...)
	case CallbackOnRoute:
		args = append(args, "next", cc.Next)
		if cc.Fallback != nil {
			c.logger.Warn("orchestrator.callback.route_fallback", append(args, "error", cc.Fallback.Error())...)
			return nil
		}
		c.logger.Info("orchestrator.callback.route", args...)
	case CallbackOnError:
		c.logger.Error("orchestrator.callback.error", append(args, "error", errString(cc.Err))...)
	case CallbackOnFinish:
		c.logger.Info("orchestrator.callback.finish", append(args, "duration", cc.Duration, "outcome", Outcome(cc.Err))...)
	default:
		c.logger.Debug("orchestrator.callback."+string(c.callbackType), args...)
	}

	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
