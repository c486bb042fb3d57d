package core

import "github.com/hupe1980/metaexpert/logging"

// loggerAdapter exposes LogDebug/LogInfo/LogWarn/LogError on a RunContext.
// Every line carries the run id and, inside a node, the node name, so logs of
// concurrent runs can be told apart.
type loggerAdapter struct {
	base   logging.Logger
	scoped logging.Logger
}

// newLoggerAdapter scopes l to runID and node. A nil logger becomes a
// NoOpLogger. A *logging.RunLogger is scoped through its own fields so its
// call helpers keep working on the result.
func newLoggerAdapter(l logging.Logger, runID, node string) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &loggerAdapter{base: l, scoped: scope(l, runID, node)}
}

func scope(l logging.Logger, runID, node string) logging.Logger {
	switch v := l.(type) {
	case logging.NoOpLogger:
		return v
	case *logging.RunLogger:
		scoped := v.WithRun(runID)
		if node != "" {
			scoped = scoped.WithField("node", node)
		}
		return scoped
	}

	fields := make([]any, 0, 4)
	if runID != "" {
		fields = append(fields, "run_id", runID)
	}
	if node != "" {
		fields = append(fields, "node", node)
	}
	if len(fields) == 0 {
		return l
	}
	return &fieldLogger{next: l, fields: fields}
}

// forNode rescopes the adapter to another node of the same run.
func (l *loggerAdapter) forNode(runID, node string) *loggerAdapter {
	return newLoggerAdapter(l.base, runID, node)
}

// Logger returns the run scoped logger.
func (l *loggerAdapter) Logger() logging.Logger {
	return l.scoped
}

// LogDebug logs a debug message.
func (l *loggerAdapter) LogDebug(msg string, args ...any) {
	l.scoped.Debug(msg, args...)
}

// LogInfo logs an info message.
func (l *loggerAdapter) LogInfo(msg string, args ...any) {
	l.scoped.Info(msg, args...)
}

// LogWarn logs a warning message.
func (l *loggerAdapter) LogWarn(msg string, args ...any) {
	l.scoped.Warn(msg, args...)
}

// LogError logs an error message.
func (l *loggerAdapter) LogError(msg string, args ...any) {
	l.scoped.Error(msg, args...)
}

// fieldLogger prepends fixed key/value pairs to every call.
type fieldLogger struct {
	next   logging.Logger
	fields []any
}

func (f *fieldLogger) with(args []any) []any {
	out := make([]any, 0, len(f.fields)+len(args))
	return append(append(out, f.fields...), args...)
}

func (f *fieldLogger) Debug(msg string, args ...any) { f.next.Debug(msg, f.with(args)...) }
func (f *fieldLogger) Info(msg string, args ...any)  { f.next.Info(msg, f.with(args)...) }
func (f *fieldLogger) Warn(msg string, args ...any)  { f.next.Warn(msg, f.with(args)...) }
func (f *fieldLogger) Error(msg string, args ...any) { f.next.Error(msg, f.with(args)...) }
