package expert

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/internal/util"
	"github.com/hupe1980/metaexpert/model"
	"github.com/hupe1980/metaexpert/tool"
)

// Pipeline step names reported in core.PipelineError.
const (
	StepDirectAttempt = "direct_attempt"
	StepRefineQuery   = "refine_query"
	StepSearch        = "search"
	StepSelectURL     = "select_url"
	StepFetch         = "fetch"
	StepStageResult   = "stage_result"
)

type refinedQuery struct {
	SearchQuery string `json:"search_query" minLength:"1" description:"keywords for a web search"`
}

type selectedURL struct {
	BestURL string `json:"best_url" minLength:"1" description:"one of the candidate URLs, verbatim"`
}

var (
	refineSchema = util.CreateSchema(refinedQuery{})
	selectSchema = util.CreateSchema(selectedURL{})
)

// ToolUser answers the directive and then looks up supporting material on
// the web. The steps run strictly in order:
//
//  1. direct attempt, recorded in the transcript
//  2. refine a search query from the attempt
//  3. search
//  4. pick the best URL among the results
//  5. fetch the page
//  6. stage the page as the run's tool result
//
// A failure at step 2 or later leaves the step 1 exchange in the transcript
// and no tool result.
type ToolUser struct {
	responder
	tools tool.Invoker
	opts  Options
}

var _ core.Expert = (*ToolUser)(nil)

// NewToolUser creates a ToolUser backed by llm and tools.
func NewToolUser(llm model.Model, tools tool.Invoker, optFns ...func(o *Options)) *ToolUser {
	opts := buildOptions(NodeToolExpert, optFns)

	return &ToolUser{
		responder: responder{name: opts.Name, llm: llm, timeout: opts.Timeout},
		tools:     tools,
		opts:      opts,
	}
}

// Name returns the node name.
func (t *ToolUser) Name() string { return t.opts.Name }

// Run executes the pipeline.
func (t *ToolUser) Run(rc *core.RunContext) error {
	start := time.Now()

	managerResponse, err := t.answerDirective(rc)
	if err != nil {
		return t.fail(rc, StepDirectAttempt, err)
	}

	query, err := t.refineQuery(rc, managerResponse)
	if err != nil {
		return t.fail(rc, StepRefineQuery, err)
	}

	rc.LogInfo("expert.tool_user.search", "query", query)

	results, err := t.tools.Search(rc.Context, query)
	if err != nil {
		return t.fail(rc, StepSearch, err)
	}
	if len(results) == 0 {
		return t.fail(rc, StepSearch, tool.Unavailable("search", errors.New("no results")))
	}

	bestURL, err := t.selectURL(rc, managerResponse, results)
	if err != nil {
		return t.fail(rc, StepSelectURL, err)
	}

	rc.LogInfo("expert.tool_user.fetch", "url", bestURL)

	content, err := t.tools.Fetch(rc.Context, bestURL)
	if err != nil {
		return t.fail(rc, StepFetch, err)
	}
	if strings.TrimSpace(content) == "" {
		return t.fail(rc, StepFetch, tool.Empty("fetch", bestURL))
	}

	if err := rc.State.SetToolResult(core.ToolResult{
		Label:     core.ToolResultLabel,
		UserInput: rc.State.UserInput,
		Query:     query,
		URL:       bestURL,
		Content:   content,
	}); err != nil {
		return t.fail(rc, StepStageResult, err)
	}

	rc.LogInfo("expert.tool_user.complete", "url", bestURL, "chars", len(content), "duration", time.Since(start))
	return nil
}

func (t *ToolUser) refineQuery(rc *core.RunContext, managerResponse string) (string, error) {
	prompt, err := render(t.opts.Prompts.RefineQuery, map[string]any{"manager_response": managerResponse})
	if err != nil {
		return "", err
	}

	var out refinedQuery
	if err := t.generateJSON(rc, prompt, []core.Message{core.NewUserMessage(prompt)}, refineSchema, &out); err != nil {
		return "", err
	}

	query := strings.TrimSpace(out.SearchQuery)
	if query == "" {
		return "", fmt.Errorf("%w: search_query is empty", core.ErrMalformedOutput)
	}
	return query, nil
}

func (t *ToolUser) selectURL(rc *core.RunContext, managerResponse string, results []tool.SearchResult) (string, error) {
	prompt, err := render(t.opts.Prompts.SelectURL, map[string]any{
		"manager_response": managerResponse,
		"results":          results,
	})
	if err != nil {
		return "", err
	}

	var out selectedURL
	if err := t.generateJSON(rc, prompt, []core.Message{core.NewUserMessage(prompt)}, selectSchema, &out); err != nil {
		return "", err
	}

	return ValidateSelection(out.BestURL, results)
}

// ValidateSelection checks that url names one of the candidates. Surrounding
// whitespace is ignored; otherwise the match is exact.
func ValidateSelection(url string, candidates []tool.SearchResult) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("%w: best_url is empty", core.ErrMalformedOutput)
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.URL) == url {
			return url, nil
		}
	}
	return "", fmt.Errorf("%w: best_url %q is not among the %d search results", core.ErrMalformedOutput, url, len(candidates))
}

func (t *ToolUser) fail(rc *core.RunContext, step string, err error) error {
	rc.LogWarn("expert.tool_user.failed", "step", step, "error", err.Error())
	return &core.PipelineError{Step: step, Err: err}
}
