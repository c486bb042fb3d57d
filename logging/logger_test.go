package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestRunLogger_KeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("orchestrator").
		WithRun("r1").
		WithField("graph", "default")

	l.Info("orchestrator.node.start", "node", "coordinator", "step", 1)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "orchestrator.node.start", lines[0]["msg"])
	assert.Equal(t, "orchestrator", lines[0]["component"])
	assert.Equal(t, "r1", lines[0]["run_id"])
	assert.Equal(t, "default", lines[0]["graph"])
	assert.Equal(t, "coordinator", lines[0]["node"])
	assert.EqualValues(t, 1, lines[0]["step"])
}

func TestRunLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: &buf})

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
}

func TestRunLogger_LogToolCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})

	l.LogToolCall("search", 10*time.Millisecond, nil)
	l.LogToolCall("fetch", time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "tool.call.completed", lines[0]["msg"])
	assert.Equal(t, true, lines[0]["success"])
	assert.Equal(t, "tool.call.failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestCallReports_UseRunLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf}).WithRun("r7")

	ToolCall(l, "serper", time.Millisecond, nil, "query", "go")
	ModelCall(l, "gpt-4o", time.Millisecond, errors.New("down"))
	Run(l, 4, time.Second, nil, "outcome", "finished")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "tool.call.completed", lines[0]["msg"])
	assert.Equal(t, "go", lines[0]["query"])
	assert.Equal(t, "model.call.failed", lines[1]["msg"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "run.completed", lines[2]["msg"])
	assert.EqualValues(t, 4, lines[2]["step_count"])
	for _, line := range lines {
		assert.Equal(t, "r7", line["run_id"])
	}
}

func TestCallReports_FallBackToPlainLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	ToolCall(l, "scraper", time.Millisecond, errors.New("boom"), "url", "https://a.example")
	ModelCall(l, "gemini", time.Millisecond, nil)
	Run(l, 2, time.Second, errors.New("budget"))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "tool.call.failed", entries[0].Message)
	assert.Equal(t, "https://a.example", entries[0].ContextMap()["url"])
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	assert.Equal(t, "model.call.completed", entries[1].Message)
	assert.Equal(t, "run.failed", entries[2].Message)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}

func TestWithField_DoesNotLeak(t *testing.T) {
	base := NewLogger(&LoggerConfig{Output: &bytes.Buffer{}})
	_ = base.WithField("k", "v")
	assert.Empty(t, base.fields)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.Info("tool.call.completed", "tool", "search")
	l.Error("tool.call.failed", "tool", "fetch")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "tool.call.completed", entries[0].Message)
	assert.Equal(t, "search", entries[0].ContextMap()["tool"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Info("anything", "k", "v")
}
