package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/model"
)

const message = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [{"type": "text", "text": "{\"search_query\": \"london weather\"}"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestGenerate_JSONBySystemPrompt(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(message))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.RequestOptions = []option.RequestOption{option.WithBaseURL(srv.URL), option.WithMaxRetries(0)}
	})

	var out struct {
		SearchQuery string `json:"search_query"`
	}
	err := model.GenerateJSON(context.Background(), m, model.Request{
		Instructions: "refine the query",
		Contents: []core.Message{
			core.NewUserMessage("weather?"),
			core.NewAssistantMessage("let me check"),
			core.NewUserMessage("go on"),
		},
	}, 5*time.Second, &out)
	require.NoError(t, err)
	assert.Equal(t, "london weather", out.SearchQuery)

	system := body["system"].([]any)
	require.Len(t, system, 1)
	assert.Contains(t, system[0].(map[string]any)["text"], "refine the query")
	assert.Contains(t, system[0].(map[string]any)["text"], model.JSONInstruction)
	assert.Len(t, body["messages"].([]any), 3)
}

func TestBedrockModel(t *testing.T) {
	assert.Equal(t, "us.anthropic.claude-sonnet-4-20250514-v1:0", string(bedrockModel(defaultOptions().Model)))
	assert.Equal(t, "custom", string(bedrockModel("custom")))
}

func TestInfo(t *testing.T) {
	m := NewModelFromClient(nil)
	assert.Equal(t, "anthropic", m.Info().Provider)
	assert.False(t, m.Info().SupportsJSON)
}
