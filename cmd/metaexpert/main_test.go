package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metaexpert/logging"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SERPER_API_KEY", "")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	isolate(t)
	t.Setenv("METAEXPERT_MODEL_API_KEY", "sk-abcdefghijkl")

	out, err := execute(t, "", "config", "--provider", "anthropic", "--max-steps", "7")
	require.NoError(t, err)

	assert.Contains(t, out, "provider: anthropic")
	assert.Contains(t, out, "max_steps: 7")
	assert.Contains(t, out, "sk-a****")
	assert.NotContains(t, out, "sk-abcdefghijkl")
}

func TestConfigCommandRejectsUnknownProvider(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "config", "--provider", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.provider")
}

func TestAskWithMockProvider(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "ask", "--provider", "mock", "--search", "duckduckgo", "--plain", "what", "is", "go")
	require.NoError(t, err)

	assert.Contains(t, out, "Mock response to:")
	assert.Contains(t, out, "what is go")
	assert.Contains(t, out, "routing fell back to the direct expert")
}

func TestAskReadsQuestionFromStdin(t *testing.T) {
	isolate(t)

	out, err := execute(t, "hello there\n", "ask", "--provider", "mock", "--search", "duckduckgo", "--plain")
	require.NoError(t, err)

	assert.Contains(t, out, "Enter your query: ")
	assert.Contains(t, out, "hello there")
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	isolate(t)

	_, err := execute(t, "\n", "ask", "--provider", "mock", "--search", "duckduckgo")
	require.Error(t, err)
}

func TestChatCarriesHistory(t *testing.T) {
	isolate(t)

	out, err := execute(t, "first\n\nsecond\nexit\n", "chat", "--provider", "mock", "--search", "duckduckgo", "--plain")
	require.NoError(t, err)

	assert.Equal(t, 4, strings.Count(out, "Enter your query: "))
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
}

func TestBuildSearcherNeedsSerperKey(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "ask", "--provider", "mock", "--search", "serper", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERPER_API_KEY")
}

func TestComponentTagsRunLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})

	component(base, "tool").Info("tool.call.completed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tool", line["component"])

	noop := logging.NoOpLogger{}
	assert.Equal(t, logging.Logger(noop), component(noop, "tool"))
}
