// Package logging provides a minimal logging interface and adapters for metaexpert.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that experts, tools and the orchestrator use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - RunLogger, a slog backed logger with run scoped context helpers
//   - ZapAdapter wrapping a zap sugared logger
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	me := metaexpert.New(m, inv, func(o *metaexpert.Options) { o.Logger = logger })
//
// Messages are dotted event names ("orchestrator.node.start") followed by
// key/value pairs.
package logging
