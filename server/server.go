// Package server exposes runs over HTTP.
//
//	POST /v1/runs   {"input": "...", "run_id": "...", "history": [...]}
//	GET  /healthz
//	GET  /metrics   (when a prometheus gatherer is configured)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/logging"
)

// Runner executes one run.
type Runner interface {
	Run(ctx context.Context, input string, opts ...core.StateOption) (*core.State, error)
}

// Options configure the handler.
type Options struct {
	Logger logging.Logger
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// MaxBodyBytes bounds request bodies (default 1 MiB).
	MaxBodyBytes int64
}

// RunRequest is the body of POST /v1/runs.
type RunRequest struct {
	Input   string         `json:"input"`
	RunID   string         `json:"run_id,omitempty"`
	History []core.Message `json:"history,omitempty"`
}

// ErrorBody describes a failed run.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Node    string `json:"node,omitempty"`
	Step    string `json:"step,omitempty"`
}

// RunResponse carries the state of a run, complete or partial.
type RunResponse struct {
	RunID          string           `json:"run_id"`
	Finished       bool             `json:"finished"`
	Answer         string           `json:"answer,omitempty"`
	Steps          int              `json:"steps"`
	Transcript     []core.Message   `json:"transcript"`
	CoordinatorLog []core.Message   `json:"coordinator_log"`
	ToolResult     *core.ToolResult `json:"tool_result,omitempty"`
	RouteFallback  string           `json:"route_fallback,omitempty"`
	Error          *ErrorBody       `json:"error,omitempty"`
}

type handler struct {
	runner Runner
	opts   Options
}

// NewHandler creates the HTTP handler.
func NewHandler(runner Runner, optFns ...func(o *Options)) http.Handler {
	opts := Options{
		Logger:       logging.NoOpLogger{},
		MaxBodyBytes: 1 << 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{runner: runner, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/v1/runs", h.createRun)

	return r
}

func (h *handler) createRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.opts.Logger.Warn("server.run.bad_request", "error", err.Error())
		writeJSON(w, http.StatusBadRequest, RunResponse{Error: &ErrorBody{Code: "bad_request", Message: "invalid request body"}})
		return
	}
	if strings.TrimSpace(body.Input) == "" {
		writeJSON(w, http.StatusBadRequest, RunResponse{Error: &ErrorBody{Code: "bad_request", Message: "input must not be empty"}})
		return
	}

	var runOpts []core.StateOption
	if body.RunID != "" {
		runOpts = append(runOpts, core.WithRunID(body.RunID))
	}
	if len(body.History) > 0 {
		runOpts = append(runOpts, core.WithHistory(body.History))
	}

	st, err := h.runner.Run(r.Context(), body.Input, runOpts...)

	resp := toResponse(st)
	status := http.StatusOK
	if err != nil {
		status, resp.Error = classify(err)
		h.opts.Logger.Warn("server.run.failed", "run_id", resp.RunID, "status", status, "error", err.Error())
	} else {
		h.opts.Logger.Info("server.run.completed", "run_id", resp.RunID, "steps", resp.Steps)
	}

	writeJSON(w, status, resp)
}

func toResponse(st *core.State) RunResponse {
	if st == nil {
		return RunResponse{Transcript: []core.Message{}, CoordinatorLog: []core.Message{}}
	}

	resp := RunResponse{
		RunID:          st.RunID,
		Finished:       st.IsFinished(),
		Steps:          st.StepCount(),
		Transcript:     st.Transcript(),
		CoordinatorLog: st.CoordinatorLog(),
	}
	if last, ok := st.RunAnswer(); ok {
		resp.Answer = core.UnwrapExpert(last)
	}
	if tr, ok := st.ToolResult(); ok {
		resp.ToolResult = &tr
	}
	if fb := st.RoutingFallback(); fb != nil {
		resp.RouteFallback = fb.Error()
	}
	return resp
}

// classify maps a run error onto an HTTP status and error body.
func classify(err error) (int, *ErrorBody) {
	body := &ErrorBody{Message: err.Error()}

	var runErr *core.RunError
	if errors.As(err, &runErr) {
		body.Node = runErr.Node
	}
	var pipeErr *core.PipelineError
	if errors.As(err, &pipeErr) {
		body.Step = pipeErr.Step
	}

	switch {
	case errors.Is(err, core.ErrRunInProgress):
		body.Code = "run_in_progress"
		return http.StatusConflict, body
	case errors.Is(err, core.ErrRunFinished):
		body.Code = "run_finished"
		return http.StatusConflict, body
	case errors.Is(err, core.ErrStepBudgetExceeded):
		body.Code = "step_budget_exceeded"
		return http.StatusInternalServerError, body
	case errors.Is(err, core.ErrMalformedOutput):
		body.Code = "malformed_output"
		return http.StatusBadGateway, body
	case errors.Is(err, core.ErrFetchEmpty):
		body.Code = "fetch_empty"
		return http.StatusBadGateway, body
	case errors.Is(err, core.ErrToolUnavailable):
		body.Code = "tool_unavailable"
		return http.StatusBadGateway, body
	case errors.Is(err, core.ErrGeneratorUnavailable):
		body.Code = "generator_unavailable"
		return http.StatusBadGateway, body
	case errors.Is(err, context.DeadlineExceeded):
		body.Code = "timeout"
		return http.StatusGatewayTimeout, body
	case errors.Is(err, context.Canceled):
		body.Code = "cancelled"
		return http.StatusServiceUnavailable, body
	default:
		body.Code = "internal"
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
