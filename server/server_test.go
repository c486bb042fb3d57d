package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metaexpert"
	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/internal/testutil"
	"github.com/hupe1980/metaexpert/orchestrator"
	"github.com/hupe1980/metaexpert/server"
	"github.com/hupe1980/metaexpert/tool"
)

type runnerFunc func(ctx context.Context, input string, opts ...core.StateOption) (*core.State, error)

func (f runnerFunc) Run(ctx context.Context, input string, opts ...core.StateOption) (*core.State, error) {
	return f(ctx, input, opts...)
}

func post(t *testing.T, h http.Handler, body string) (*http.Response, server.RunResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body)))

	res := rec.Result()
	var out server.RunResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res, out
}

func newMetaExpert(t *testing.T, s testutil.Script, tools tool.Invoker, m *orchestrator.Metrics) *metaexpert.MetaExpert {
	t.Helper()
	me, err := metaexpert.New(testutil.NewScriptedModel(s), tools, func(o *metaexpert.Options) { o.Metrics = m })
	require.NoError(t, err)
	return me
}

func TestCreateRun_Direct(t *testing.T) {
	me := newMetaExpert(t, testutil.Script{
		Coordinator: "Answer directly.",
		Router:      `{"tool_agent": false}`,
		Answer:      "4",
	}, testutil.NewFakeInvoker(nil, nil), nil)

	res, out := post(t, server.NewHandler(me), `{"input": "What is 2+2?", "run_id": "r-1"}`)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "r-1", out.RunID)
	assert.True(t, out.Finished)
	assert.Equal(t, "4", out.Answer)
	assert.Equal(t, 4, out.Steps)
	assert.Nil(t, out.ToolResult)
	assert.Nil(t, out.Error)
}

func TestCreateRun_PartialFailure(t *testing.T) {
	tools := testutil.NewFakeInvoker(nil, nil)
	me := newMetaExpert(t, testutil.Script{
		Coordinator: "Look it up.",
		Router:      `{"tool_agent": true}`,
		Answer:      "guess",
		Refine:      `{"search_query": "q"}`,
	}, tools, nil)

	res, out := post(t, server.NewHandler(me), `{"input": "weather?"}`)

	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	require.NotNil(t, out.Error)
	assert.Equal(t, "tool_unavailable", out.Error.Code)
	assert.Equal(t, "tool_expert", out.Error.Node)
	assert.Equal(t, "search", out.Error.Step)
	assert.False(t, out.Finished)
	assert.Len(t, out.Transcript, 2)
	assert.Equal(t, "guess", out.Answer)
}

func TestCreateRun_History(t *testing.T) {
	var seen *core.State
	h := server.NewHandler(runnerFunc(func(_ context.Context, input string, opts ...core.StateOption) (*core.State, error) {
		seen = core.NewState(input, opts...)
		return seen, nil
	}))

	res, out := post(t, h, `{"input": "and now?", "history": [{"role":"user","content":"hi"},{"role":"assistant","content":"<Ex>hello</Ex>"}]}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, seen.Transcript(), 2)
	assert.Len(t, out.Transcript, 2)
	assert.Empty(t, out.Answer, "seeded turns are not this run's answer")
}

func TestCreateRun_FailedRunWithHistory(t *testing.T) {
	me := newMetaExpert(t, testutil.Script{
		Errs: map[string]error{testutil.StageCoordinator: errors.New("down")},
	}, testutil.NewFakeInvoker(nil, nil), nil)

	res, out := post(t, server.NewHandler(me), `{"input": "new q", "history": [{"role":"user","content":"old q"},{"role":"assistant","content":"<Ex>OLD ANSWER</Ex>"}]}`)

	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	require.NotNil(t, out.Error)
	assert.Equal(t, "generator_unavailable", out.Error.Code)
	assert.Equal(t, "coordinator", out.Error.Node)
	assert.Empty(t, out.Answer)
}

func TestCreateRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "in progress", err: core.ErrRunInProgress, status: http.StatusConflict, code: "run_in_progress"},
		{name: "budget", err: core.ErrStepBudgetExceeded, status: http.StatusInternalServerError, code: "step_budget_exceeded"},
		{name: "malformed", err: &core.PipelineError{Step: "select_url", Err: core.ErrMalformedOutput}, status: http.StatusBadGateway, code: "malformed_output"},
		{name: "timeout", err: context.DeadlineExceeded, status: http.StatusGatewayTimeout, code: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := server.NewHandler(runnerFunc(func(_ context.Context, input string, _ ...core.StateOption) (*core.State, error) {
				st := core.NewState(input, core.WithRunID("r"))
				return st, &core.RunError{RunID: "r", Node: "n", Err: tt.err}
			}))

			res, out := post(t, h, `{"input": "x"}`)
			assert.Equal(t, tt.status, res.StatusCode)
			require.NotNil(t, out.Error)
			assert.Equal(t, tt.code, out.Error.Code)
			assert.Equal(t, "n", out.Error.Node)
		})
	}
}

func TestCreateRun_BadRequest(t *testing.T) {
	h := server.NewHandler(runnerFunc(func(context.Context, string, ...core.StateOption) (*core.State, error) {
		t.Fatal("runner must not be called")
		return nil, nil
	}))

	for _, body := range []string{`not json`, `{"input": "   "}`} {
		res, out := post(t, h, body)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		require.NotNil(t, out.Error)
		assert.Equal(t, "bad_request", out.Error.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := orchestrator.NewMetrics(reg)
	require.NoError(t, err)

	me := newMetaExpert(t, testutil.Script{
		Coordinator: "Answer directly.",
		Router:      `{"tool_agent": false}`,
		Answer:      "4",
	}, testutil.NewFakeInvoker(nil, nil), m)

	srv := httptest.NewServer(server.NewHandler(me, func(o *server.Options) { o.Gatherer = reg }))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, "ok", string(body))

	res, err = http.Post(srv.URL+"/v1/runs", "application/json", strings.NewReader(`{"input": "2+2?"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(body), `metaexpert_runs_total{outcome="finished"} 1`)
	assert.Contains(t, string(body), `metaexpert_node_visits_total{node="coordinator"} 1`)
}
