package metaexpert_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/metaexpert"
	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/internal/testutil"
	"github.com/hupe1980/metaexpert/model"
	"github.com/hupe1980/metaexpert/tool"
)

func directModel() *testutil.ScriptedModel {
	return testutil.NewScriptedModel(testutil.Script{
		Coordinator: "Answer directly.",
		Router:      `{"tool_agent": false}`,
		Answer:      "42",
	})
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := metaexpert.New(nil, testutil.NewFakeInvoker(nil, nil))
	assert.Error(t, err)

	_, err = metaexpert.New(model.NewMockModel("m", "test"), nil)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	me, err := metaexpert.New(directModel(), testutil.NewFakeInvoker(nil, nil))
	require.NoError(t, err)

	st, err := me.Run(context.Background(), "meaning of life?", metaexpert.WithRunID("run-42"))
	require.NoError(t, err)

	assert.Equal(t, "run-42", st.RunID)
	assert.True(t, st.IsFinished())
	assert.Equal(t, "42", metaexpert.Answer(st))
}

func TestRun_WithHistory(t *testing.T) {
	llm := directModel()
	me, err := metaexpert.New(llm, testutil.NewFakeInvoker(nil, nil))
	require.NoError(t, err)

	history := []core.Message{core.NewUserMessage("hi"), core.NewAssistantMessage("<Ex>hello</Ex>")}
	st, err := me.Run(context.Background(), "and now?", metaexpert.WithHistory(history))
	require.NoError(t, err)

	assert.Len(t, st.Transcript(), 4)
	assert.Len(t, llm.Requests()[0].Contents, 3, "coordinator sees the history")
	assert.Len(t, history, 2, "caller history is not modified")
	assert.Equal(t, "42", metaexpert.Answer(st))
}

func TestRun_FailedRunHasNoAnswerFromHistory(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Script{
		Errs: map[string]error{testutil.StageCoordinator: errors.New("down")},
	})
	me, err := metaexpert.New(llm, testutil.NewFakeInvoker(nil, nil))
	require.NoError(t, err)

	history := []core.Message{core.NewUserMessage("old q"), core.NewAssistantMessage("<Ex>OLD ANSWER</Ex>")}
	st, err := me.Run(context.Background(), "new q", metaexpert.WithHistory(history))
	require.ErrorIs(t, err, core.ErrGeneratorUnavailable)

	assert.Equal(t, "", metaexpert.Answer(st))
	assert.Len(t, st.Transcript(), 2, "seeded history is still visible")
}

func TestRun_StepBudgetFromOptions(t *testing.T) {
	me, err := metaexpert.New(directModel(), testutil.NewFakeInvoker(nil, nil), func(o *metaexpert.Options) {
		o.MaxSteps = 2
	})
	require.NoError(t, err)

	st, err := me.Run(context.Background(), "q")
	require.ErrorIs(t, err, core.ErrStepBudgetExceeded)
	assert.False(t, st.IsFinished())
	assert.Equal(t, "", metaexpert.Answer(st))
}

func TestRunBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	llm := testutil.NewScriptedModel(testutil.Script{
		Coordinator: "Look it up.",
		Router:      `{"tool_agent": true}`,
		Answer:      "guess",
		Refine:      `{"search_query": "q"}`,
		Select:      `{"best_url": "https://a.example/"}`,
	})
	tools := testutil.NewFakeInvoker(
		[]tool.SearchResult{{Title: "A", URL: "https://a.example/"}},
		map[string]string{"https://a.example/": "page"},
	)

	me, err := metaexpert.New(llm, tools, func(o *metaexpert.Options) { o.MaxConcurrentRuns = 2 })
	require.NoError(t, err)

	inputs := []string{"one", "two", "three", "four", "five"}
	results, err := me.RunBatch(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))

	ids := map[string]bool{}
	for i, r := range results {
		assert.Equal(t, inputs[i], r.Input)
		require.NoError(t, r.Err)
		assert.True(t, r.State.IsFinished())
		assert.Equal(t, inputs[i], r.State.UserInput)

		res, ok := r.State.ToolResult()
		require.True(t, ok)
		assert.Equal(t, inputs[i], res.UserInput)

		assert.False(t, ids[r.State.RunID])
		ids[r.State.RunID] = true
	}
}

func TestRunBatch_PartialFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	llm := directModel()
	llm.SetHandler(nil)
	llm.Enqueue(model.MockReply{Err: errors.New("down")})

	me, err := metaexpert.New(llm, testutil.NewFakeInvoker(nil, nil), func(o *metaexpert.Options) { o.MaxConcurrentRuns = 1 })
	require.NoError(t, err)

	results, err := me.RunBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.ErrorIs(t, results[0].Err, core.ErrGeneratorUnavailable)
	assert.NotNil(t, results[0].State)
	// Without a script the mock echoes: the router falls back to the direct path.
	require.NoError(t, results[1].Err)
	assert.Equal(t, "Mock response to: Mock response to: b", metaexpert.Answer(results[1].State))
	assert.Error(t, results[1].State.RoutingFallback())
}

func TestRunBatch_CancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	me, err := metaexpert.New(directModel(), testutil.NewFakeInvoker(nil, nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := me.RunBatch(ctx, []string{"a", "b"})
	require.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		assert.Nil(t, r.State, "no run starts on a cancelled context")
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestRunBatch_CancelAfterAllStarted(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llm := model.NewMockModel("m", "test")
	llm.SetHandler(func(model.Request) (string, error) {
		cancel()
		return "directive", nil
	})

	me, err := metaexpert.New(llm, testutil.NewFakeInvoker(nil, nil))
	require.NoError(t, err)

	results, err := me.RunBatch(ctx, []string{"only"})
	require.NoError(t, err, "every input started, failures are per run")
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.NotNil(t, results[0].State)
}

func TestAnswer(t *testing.T) {
	assert.Equal(t, "", metaexpert.Answer(nil))
	assert.Equal(t, "", metaexpert.Answer(core.NewState("q")))
}
