package expert_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/expert"
	"github.com/hupe1980/metaexpert/internal/testutil"
	"github.com/hupe1980/metaexpert/tool"
)

var weatherResults = []tool.SearchResult{
	{Title: "Forecast", URL: "https://weather.example/paris", Snippet: "Paris forecast"},
	{Title: "News", URL: "https://news.example/paris", Snippet: "Paris news"},
}

func weatherInvoker() *testutil.FakeInvoker {
	return testutil.NewFakeInvoker(weatherResults, map[string]string{
		"https://weather.example/paris": "Light rain in the afternoon.",
	})
}

func TestCoordinator_AppendsDirective(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Coordinator: "Look up the weather in Paris."})
	st := testutil.NewStateBuilder("weather in Paris?").Turn("hi", "<Ex>hello</Ex>").Build()

	c := expert.NewCoordinator(llm)
	require.NoError(t, c.Run(testutil.RunContext(st)))

	assert.Equal(t, expert.NodeCoordinator, c.Name())
	assert.Equal(t, []core.Message{
		core.NewUserMessage("weather in Paris?"),
		core.NewAssistantMessage("Look up the weather in Paris."),
	}, st.CoordinatorLog())

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, expert.DefaultPrompts().Coordinator, reqs[0].Instructions)
	require.Len(t, reqs[0].Contents, 3)
	assert.Equal(t, "weather in Paris?", reqs[0].Contents[2].Content)
	assert.Len(t, st.Transcript(), 2, "coordinator must not touch the transcript")
}

func TestCoordinator_InstructionProvider(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Coordinator: "directive"})
	st := testutil.NewStateBuilder("q").Build()

	c := expert.NewCoordinator(llm, func(o *expert.Options) {
		o.Instruction = expert.NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
			return "Manage the request: {{ .user_input }}", nil
		})
	})
	require.NoError(t, c.Run(testutil.RunContext(st)))
	assert.Equal(t, "Manage the request: q", llm.Requests()[0].Instructions)

	failing := expert.NewCoordinator(llm, func(o *expert.Options) {
		o.Instruction = expert.NewInstructionFromFunc(func(*core.RunContext) (string, error) {
			return "", errors.New("no prompt")
		})
	})
	st2 := testutil.NewStateBuilder("q").Build()
	require.Error(t, failing.Run(testutil.RunContext(st2)))
	assert.Empty(t, st2.CoordinatorLog())
}

func TestCoordinator_GeneratorFailureLeavesStateUntouched(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Errs: map[string]error{
		testutil.StageCoordinator: errors.New("connection refused"),
	}})
	st := testutil.NewStateBuilder("q").Build()

	err := expert.NewCoordinator(llm).Run(testutil.RunContext(st))
	require.ErrorIs(t, err, core.ErrGeneratorUnavailable)
	assert.Empty(t, st.CoordinatorLog())
}

func TestDirectResponder(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Answer: "Paris is the capital of France."})
	st := testutil.NewStateBuilder("capital of France?").Directive("Answer: capital of France?").Build()

	d := expert.NewDirectResponder(llm)
	require.NoError(t, d.Run(testutil.RunContext(st)))

	assert.Equal(t, []core.Message{
		core.NewUserMessage("Answer: capital of France?"),
		core.NewAssistantMessage("<Ex>Paris is the capital of France.</Ex>"),
	}, st.Transcript())

	req := llm.Requests()[0]
	assert.Equal(t, "Answer: capital of France?", req.Instructions)
	assert.Equal(t, []core.Message{core.NewUserMessage("Answer: capital of France?")}, req.Contents)
}

func TestDirectResponder_NoDirective(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Answer: "x"})
	st := testutil.NewStateBuilder("q").Build()

	err := expert.NewDirectResponder(llm).Run(testutil.RunContext(st))
	require.ErrorIs(t, err, expert.ErrNoDirective)
	assert.Zero(t, llm.Calls())
}

func TestRouter_DecisionGrid(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		err       error
		want      bool
		ambiguous bool
	}{
		{name: "bool true", reply: `{"tool_agent": true}`, want: true},
		{name: "string True", reply: `{"tool_agent": "True"}`, want: true},
		{name: "string true", reply: `{"tool_agent": "true"}`, want: true},
		{name: "bool false", reply: `{"tool_agent": false}`, want: false},
		{name: "string False", reply: `{"tool_agent": "False"}`, want: false},
		{name: "string false", reply: `{"tool_agent": "false"}`, want: false},
		{name: "fenced", reply: "```json\n{\"tool_agent\": true}\n```", want: true},
		{name: "yes", reply: `{"tool_agent": "yes"}`, ambiguous: true},
		{name: "number", reply: `{"tool_agent": 1}`, ambiguous: true},
		{name: "missing key", reply: `{"use_tools": true}`, ambiguous: true},
		{name: "not json", reply: `I think a tool is needed`, ambiguous: true},
		{name: "generator down", err: errors.New("503"), ambiguous: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := testutil.Script{Router: tt.reply}
			if tt.err != nil {
				script.Errs = map[string]error{testutil.StageRouter: tt.err}
			}
			llm := testutil.NewScriptedModel(script)
			st := testutil.NewStateBuilder("q").Directive("what now").Build()

			require.NoError(t, expert.NewRouter(llm).Run(testutil.RunContext(st)))

			got, err := st.TakeRoutingDecision()
			require.NoError(t, err)

			if tt.ambiguous {
				assert.False(t, got)
				assert.ErrorIs(t, st.RoutingFallback(), core.ErrRoutingAmbiguous)
				return
			}
			assert.Equal(t, tt.want, got)
			assert.NoError(t, st.RoutingFallback())
			assert.Empty(t, st.Transcript())
		})
	}
}

func TestRouter_DecideReportsAmbiguity(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Router: `{"tool_agent": "maybe"}`})
	st := testutil.NewStateBuilder("q").Directive("d").Build()

	_, err := expert.NewRouter(llm).Decide(testutil.RunContext(st))
	assert.ErrorIs(t, err, core.ErrRoutingAmbiguous)
	assert.Contains(t, llm.Requests()[0].Instructions, "d")
}

func TestRouter_CancelledContextPropagates(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Router: `{"tool_agent": true}`})
	st := testutil.NewStateBuilder("q").Directive("d").Build()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := testutil.RunContext(st).WithContext(ctx)
	err := expert.NewRouter(llm).Run(rc)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, st.HasRoutingDecision())
}

func TestRoute(t *testing.T) {
	st := testutil.NewStateBuilder("q").Decision(true).Build()
	rc := testutil.RunContext(st)

	next, err := expert.Route(rc)
	require.NoError(t, err)
	assert.Equal(t, expert.NodeToolExpert, next)

	_, err = expert.Route(rc)
	assert.ErrorIs(t, err, core.ErrDecisionConsumed)

	st = testutil.NewStateBuilder("q").Decision(false).Build()
	next, err = expert.Route(testutil.RunContext(st))
	require.NoError(t, err)
	assert.Equal(t, expert.NodeDirectExpert, next)

	_, err = expert.Route(testutil.RunContext(testutil.NewStateBuilder("q").Build()))
	assert.ErrorIs(t, err, core.ErrNoDecision)
}

func TestValidateSelection(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
		ok   bool
	}{
		{name: "exact", url: "https://weather.example/paris", want: "https://weather.example/paris", ok: true},
		{name: "padded", url: "  https://news.example/paris\n", want: "https://news.example/paris", ok: true},
		{name: "invented", url: "https://other.example/", ok: false},
		{name: "prefix only", url: "https://weather.example", ok: false},
		{name: "empty", url: " ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expert.ValidateSelection(tt.url, weatherResults)
			if !tt.ok {
				assert.ErrorIs(t, err, core.ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolUser_Success(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{
		Answer: "I believe it will rain.",
		Refine: `{"search_query": "Paris weather today"}`,
		Select: `{"best_url": "https://weather.example/paris"}`,
	})
	tools := weatherInvoker()
	st := testutil.NewStateBuilder("weather in Paris?").Directive("Look up the weather in Paris.").Build()

	tu := expert.NewToolUser(llm, tools)
	require.NoError(t, tu.Run(testutil.RunContext(st)))

	assert.Equal(t, []core.Message{
		core.NewUserMessage("Look up the weather in Paris."),
		core.NewAssistantMessage("<Ex>I believe it will rain.</Ex>"),
	}, st.Transcript())

	res, ok := st.ToolResult()
	require.True(t, ok)
	assert.Equal(t, core.ToolResult{
		Label:     "scraper_response",
		UserInput: "weather in Paris?",
		Query:     "Paris weather today",
		URL:       "https://weather.example/paris",
		Content:   "Light rain in the afternoon.",
	}, res)

	assert.Equal(t, []string{"Paris weather today"}, tools.Queries())
	assert.Equal(t, []string{"https://weather.example/paris"}, tools.URLs())
	assert.Equal(t, []string{testutil.StageAnswer, testutil.StageRefine, testutil.StageSelect}, llm.Stages())

	// The refine prompt sees the unwrapped answer.
	refine := llm.Requests()[1]
	assert.Contains(t, refine.Instructions, "I believe it will rain.")
	assert.NotContains(t, refine.Instructions, core.ExpertOpen)

	// The select prompt lists the candidates.
	assert.Contains(t, llm.Requests()[2].Instructions, "https://news.example/paris")
}

func TestToolUser_Failures(t *testing.T) {
	good := testutil.Script{
		Answer: "guess",
		Refine: `{"search_query": "q"}`,
		Select: `{"best_url": "https://weather.example/paris"}`,
	}

	tests := []struct {
		name    string
		mutate  func(s *testutil.Script, f *testutil.FakeInvoker)
		step    string
		wantErr error
	}{
		{
			name:    "blank query",
			mutate:  func(s *testutil.Script, _ *testutil.FakeInvoker) { s.Refine = `{"search_query": "  "}` },
			step:    expert.StepRefineQuery,
			wantErr: core.ErrMalformedOutput,
		},
		{
			name:    "missing query",
			mutate:  func(s *testutil.Script, _ *testutil.FakeInvoker) { s.Refine = `{"query": "x"}` },
			step:    expert.StepRefineQuery,
			wantErr: core.ErrMalformedOutput,
		},
		{
			name:    "search down",
			mutate:  func(_ *testutil.Script, f *testutil.FakeInvoker) { f.SearchErr = errors.New("quota") },
			step:    expert.StepSearch,
			wantErr: core.ErrToolUnavailable,
		},
		{
			name:    "no results",
			mutate:  func(_ *testutil.Script, f *testutil.FakeInvoker) { f.Results = nil },
			step:    expert.StepSearch,
			wantErr: core.ErrToolUnavailable,
		},
		{
			name:    "invented url",
			mutate:  func(s *testutil.Script, _ *testutil.FakeInvoker) { s.Select = `{"best_url": "https://elsewhere.example/"}` },
			step:    expert.StepSelectURL,
			wantErr: core.ErrMalformedOutput,
		},
		{
			name:    "empty page",
			mutate:  func(_ *testutil.Script, f *testutil.FakeInvoker) { f.Pages = map[string]string{} },
			step:    expert.StepFetch,
			wantErr: core.ErrFetchEmpty,
		},
		{
			name:    "fetch down",
			mutate:  func(_ *testutil.Script, f *testutil.FakeInvoker) { f.FetchErr = errors.New("timeout") },
			step:    expert.StepFetch,
			wantErr: core.ErrToolUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := good
			tools := weatherInvoker()
			tt.mutate(&script, tools)

			llm := testutil.NewScriptedModel(script)
			st := testutil.NewStateBuilder("q").Directive("look it up").Build()

			err := expert.NewToolUser(llm, tools).Run(testutil.RunContext(st))
			require.ErrorIs(t, err, tt.wantErr)

			var pe *core.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.step, pe.Step)

			assert.Len(t, st.Transcript(), 2, "direct attempt stays recorded")
			_, ok := st.ToolResult()
			assert.False(t, ok)
		})
	}
}

func TestToolUser_DirectAttemptFailure(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Errs: map[string]error{
		testutil.StageAnswer: errors.New("down"),
	}})
	tools := weatherInvoker()
	st := testutil.NewStateBuilder("q").Directive("look it up").Build()

	err := expert.NewToolUser(llm, tools).Run(testutil.RunContext(st))
	require.ErrorIs(t, err, core.ErrGeneratorUnavailable)

	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, expert.StepDirectAttempt, pe.Step)
	assert.Empty(t, st.Transcript())
	assert.Empty(t, tools.Queries())
}

func TestPrompts_EmptyFieldsKeepDefaults(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{Router: `{"tool_agent": true}`})
	st := testutil.NewStateBuilder("q").Directive("d").Build()

	r := expert.NewRouter(llm, func(o *expert.Options) {
		o.Prompts = expert.Prompts{Coordinator: "custom"}
	})
	ok, err := r.Decide(testutil.RunContext(st))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, llm.Requests()[0].Instructions, `"tool_agent"`)
}
