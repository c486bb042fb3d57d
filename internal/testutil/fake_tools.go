package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/metaexpert/tool"
)

// FakeInvoker is an in-memory tool.Invoker.
type FakeInvoker struct {
	mu sync.Mutex

	Results   []tool.SearchResult
	SearchErr error
	Pages     map[string]string
	FetchErr  error

	queries []string
	urls    []string
}

var _ tool.Invoker = (*FakeInvoker)(nil)

// NewFakeInvoker returns an invoker serving results and pages.
func NewFakeInvoker(results []tool.SearchResult, pages map[string]string) *FakeInvoker {
	return &FakeInvoker{Results: results, Pages: pages}
}

// Search records the query and returns the configured results.
func (f *FakeInvoker) Search(ctx context.Context, query string) ([]tool.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)

	if err := ctx.Err(); err != nil {
		return nil, tool.Unavailable("fake_search", err)
	}
	if f.SearchErr != nil {
		return nil, tool.Unavailable("fake_search", f.SearchErr)
	}
	if len(f.Results) == 0 {
		return nil, tool.Unavailable("fake_search", errors.New("no results"))
	}

	out := make([]tool.SearchResult, len(f.Results))
	copy(out, f.Results)
	return out, nil
}

// Fetch records the URL and returns the configured page.
func (f *FakeInvoker) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.urls = append(f.urls, url)

	if err := ctx.Err(); err != nil {
		return "", tool.Unavailable("fake_fetch", err)
	}
	if f.FetchErr != nil {
		return "", tool.Unavailable("fake_fetch", f.FetchErr)
	}
	page, ok := f.Pages[url]
	if !ok || page == "" {
		return "", tool.Empty("fake_fetch", url)
	}
	return page, nil
}

// Queries returns the search queries seen so far.
func (f *FakeInvoker) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// URLs returns the fetched URLs seen so far.
func (f *FakeInvoker) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}
