package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/metaexpert/logging"
)

// InvokerOptions configure a DefaultInvoker.
type InvokerOptions struct {
	// Timeout bounds every search and fetch call. Zero disables the bound.
	Timeout time.Duration
	Logger  logging.Logger
}

// DefaultInvoker composes one Searcher and one Fetcher.
type DefaultInvoker struct {
	searcher Searcher
	fetcher  Fetcher
	opts     InvokerOptions
}

// NewInvoker creates an Invoker from a search provider and a fetcher.
func NewInvoker(searcher Searcher, fetcher Fetcher, optFns ...func(o *InvokerOptions)) *DefaultInvoker {
	opts := InvokerOptions{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &DefaultInvoker{searcher: searcher, fetcher: fetcher, opts: opts}
}

func (i *DefaultInvoker) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, i.opts.Timeout)
}

// Search runs the query. An empty result list is reported as unavailable.
func (i *DefaultInvoker) Search(ctx context.Context, query string) ([]SearchResult, error) {
	name := i.searcher.Name()
	if strings.TrimSpace(query) == "" {
		return nil, NewToolError(name, "empty query", CodeUnavailable)
	}

	callCtx, cancel := i.bound(ctx)
	defer cancel()

	start := time.Now()
	results, err := i.searcher.Search(callCtx, query)
	if err == nil && len(results) == 0 {
		err = NewToolError(name, fmt.Sprintf("no results for %q", query), CodeUnavailable)
	}
	if err != nil {
		te := Unavailable(name, err)
		logging.ToolCall(i.opts.Logger, name, time.Since(start), te, "op", "search", "query", query)
		return nil, te
	}

	logging.ToolCall(i.opts.Logger, name, time.Since(start), nil, "op", "search", "query", query, "results", len(results))
	return results, nil
}

// Fetch retrieves url. Blank content is reported as FETCH_EMPTY.
func (i *DefaultInvoker) Fetch(ctx context.Context, url string) (string, error) {
	name := i.fetcher.Name()

	callCtx, cancel := i.bound(ctx)
	defer cancel()

	start := time.Now()
	content, err := i.fetcher.Fetch(callCtx, url)
	if err == nil && strings.TrimSpace(content) == "" {
		err = Empty(name, url)
	}
	if err != nil {
		te := Unavailable(name, err)
		logging.ToolCall(i.opts.Logger, name, time.Since(start), te, "op", "fetch", "url", url)
		return "", te
	}

	logging.ToolCall(i.opts.Logger, name, time.Since(start), nil, "op", "fetch", "url", url, "chars", len(content))
	return content, nil
}
