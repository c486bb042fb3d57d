package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration string to a LogLevel. Unknown values
// fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface for metaexpert.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// RunLogger wraps slog.Logger adding run scoped cloning helpers and
// domain convenience methods. It is cheap to copy via the With* methods.
type RunLogger struct {
	logger    *slog.Logger
	level     LogLevel
	fields    map[string]any
	component string
	runID     string
}

// LoggerConfig configures construction of a RunLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	RunID       string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr, CustomAttrs: map[string]any{}}
}

// NewLogger builds a RunLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *RunLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	fields := make(map[string]any, len(cfg.CustomAttrs))
	for k, v := range cfg.CustomAttrs {
		fields[k] = v
	}
	return &RunLogger{logger: slog.New(handler), level: cfg.Level, fields: fields, component: cfg.Component, runID: cfg.RunID}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *RunLogger) clone() *RunLogger {
	fields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &RunLogger{logger: l.logger, level: l.level, fields: fields, component: l.component, runID: l.runID}
}

// WithField adds a key/value attribute that will be attached to every log entry.
func (l *RunLogger) WithField(key string, value any) *RunLogger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

// WithComponent sets the logical component (expert, tool, orchestrator, etc.).
func (l *RunLogger) WithComponent(c string) *RunLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithRun attaches the run identifier.
func (l *RunLogger) WithRun(runID string) *RunLogger {
	nl := l.clone()
	nl.runID = runID
	return nl
}

func (l *RunLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.fields)+2)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}
	for k, v := range l.fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *RunLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := l.buildAttrs()
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.AddAttrs(attrs...)
	r.Add(args...)
	_ = l.logger.Handler().Handle(context.Background(), r)
}

// Debug logs at debug level.
func (l *RunLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *RunLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *RunLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *RunLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogToolCall records execution details for a search or fetch invocation.
func (l *RunLogger) LogToolCall(tool string, dur time.Duration, err error, args ...any) {
	fields := append([]any{"tool", tool, "duration", dur, "success", err == nil}, args...)
	if err != nil {
		l.Warn("tool.call.failed", append(fields, "error", err.Error())...)
		return
	}
	l.Info("tool.call.completed", fields...)
}

// LogModelCall records generator latency and outcome.
func (l *RunLogger) LogModelCall(model string, dur time.Duration, err error, args ...any) {
	fields := append([]any{"model", model, "duration", dur, "success", err == nil}, args...)
	if err != nil {
		l.Warn("model.call.failed", append(fields, "error", err.Error())...)
		return
	}
	l.Debug("model.call.completed", fields...)
}

// LogRun records aggregate metrics for one orchestrated run.
func (l *RunLogger) LogRun(steps int, dur time.Duration, err error, args ...any) {
	fields := append([]any{"step_count", steps, "duration", dur, "success", err == nil}, args...)
	if err != nil {
		l.Error("run.failed", append(fields, "error", err.Error())...)
		return
	}
	l.Info("run.completed", fields...)
}

// ToolCallLogger is implemented by loggers with a dedicated tool call record.
type ToolCallLogger interface {
	LogToolCall(tool string, dur time.Duration, err error, args ...any)
}

// ModelCallLogger is implemented by loggers with a dedicated generator call record.
type ModelCallLogger interface {
	LogModelCall(model string, dur time.Duration, err error, args ...any)
}

// RunOutcomeLogger is implemented by loggers with a dedicated run summary record.
type RunOutcomeLogger interface {
	LogRun(steps int, dur time.Duration, err error, args ...any)
}

// ToolCall reports a tool call on l, using LogToolCall when l provides it.
func ToolCall(l Logger, tool string, dur time.Duration, err error, args ...any) {
	if tl, ok := l.(ToolCallLogger); ok {
		tl.LogToolCall(tool, dur, err, args...)
		return
	}
	fields := append([]any{"tool", tool, "duration", dur, "success", err == nil}, args...)
	if err != nil {
		l.Warn("tool.call.failed", append(fields, "error", err.Error())...)
		return
	}
	l.Info("tool.call.completed", fields...)
}

// ModelCall reports a generator call on l, using LogModelCall when l provides it.
func ModelCall(l Logger, model string, dur time.Duration, err error, args ...any) {
	if ml, ok := l.(ModelCallLogger); ok {
		ml.LogModelCall(model, dur, err, args...)
		return
	}
	fields := append([]any{"model", model, "duration", dur, "success", err == nil}, args...)
	if err != nil {
		l.Warn("model.call.failed", append(fields, "error", err.Error())...)
		return
	}
	l.Debug("model.call.completed", fields...)
}

// Run reports the outcome of a run on l, using LogRun when l provides it.
func Run(l Logger, steps int, dur time.Duration, err error, args ...any) {
	if rl, ok := l.(RunOutcomeLogger); ok {
		rl.LogRun(steps, dur, err, args...)
		return
	}
	fields := append([]any{"step_count", steps, "duration", dur, "success", err == nil}, args...)
	if err != nil {
		l.Error("run.failed", append(fields, "error", err.Error())...)
		return
	}
	l.Info("run.completed", fields...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// NewSlogLogger creates a new RunLogger with the specified configuration.
func NewSlogLogger(level LogLevel, format string, addSource bool) *RunLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}
