package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/metaexpert/core"
)

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) Name() string { return "mock_search" }

func (m *mockSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	args := m.Called(ctx, query)
	res, _ := args.Get(0).([]SearchResult)
	return res, args.Error(1)
}

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) Name() string { return "mock_fetch" }

func (m *mockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

type slowFetcher struct{}

func (slowFetcher) Name() string { return "slow" }

func (slowFetcher) Fetch(ctx context.Context, _ string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Second):
		return "late", nil
	}
}

var hits = []SearchResult{{Title: "BBC Weather", URL: "https://bbc.co.uk/weather/london", Snippet: "Rain"}}

func TestToolError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	te := Unavailable("serper", cause)

	assert.ErrorIs(t, te, core.ErrToolUnavailable)
	assert.ErrorIs(t, te, cause)
	assert.NotErrorIs(t, te, core.ErrFetchEmpty)
	assert.Equal(t, "tool error [TOOL_UNAVAILABLE] in serper: dial tcp: refused", te.Error())

	empty := Empty("scraper", "https://x.example")
	assert.ErrorIs(t, empty, core.ErrFetchEmpty)
	assert.NotErrorIs(t, empty, core.ErrToolUnavailable)

	assert.Same(t, empty, Unavailable("other", empty))
}

func TestInvoker_Search(t *testing.T) {
	s := &mockSearcher{}
	s.On("Search", mock.Anything, "london weather").Return(hits, nil).Once()

	inv := NewInvoker(s, &mockFetcher{})
	res, err := inv.Search(context.Background(), "london weather")
	require.NoError(t, err)
	assert.Equal(t, hits, res)
	s.AssertExpectations(t)
}

func TestInvoker_SearchFailures(t *testing.T) {
	s := &mockSearcher{}
	s.On("Search", mock.Anything, "down").Return(nil, errors.New("503"))
	s.On("Search", mock.Anything, "nothing").Return([]SearchResult{}, nil)

	inv := NewInvoker(s, &mockFetcher{})

	_, err := inv.Search(context.Background(), "down")
	assert.ErrorIs(t, err, core.ErrToolUnavailable)

	_, err = inv.Search(context.Background(), "nothing")
	assert.ErrorIs(t, err, core.ErrToolUnavailable)
	assert.ErrorContains(t, err, "no results")

	_, err = inv.Search(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrToolUnavailable)
	s.AssertNotCalled(t, "Search", mock.Anything, "  ")
}

func TestInvoker_Fetch(t *testing.T) {
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "https://ok.example").Return("page text", nil)
	f.On("Fetch", mock.Anything, "https://blank.example").Return(" \n ", nil)

	inv := NewInvoker(&mockSearcher{}, f)

	content, err := inv.Fetch(context.Background(), "https://ok.example")
	require.NoError(t, err)
	assert.Equal(t, "page text", content)

	_, err = inv.Fetch(context.Background(), "https://blank.example")
	assert.ErrorIs(t, err, core.ErrFetchEmpty)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeFetchEmpty, te.Code)
}

func TestInvoker_Timeout(t *testing.T) {
	inv := NewInvoker(&mockSearcher{}, slowFetcher{}, func(o *InvokerOptions) {
		o.Timeout = 10 * time.Millisecond
	})

	_, err := inv.Fetch(context.Background(), "https://slow.example")
	assert.ErrorIs(t, err, core.ErrToolUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(2, time.Minute)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	assert.Equal(t, 2, c.Size())
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, ok, _ = c.Get(ctx, "short")
	assert.False(t, ok, "expired entry should miss")
}

func TestInMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(10, 0)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	time.Sleep(time.Millisecond)

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)
}

func TestCachedInvoker(t *testing.T) {
	s := &mockSearcher{}
	s.On("Search", mock.Anything, "q").Return(hits, nil).Once()
	s.On("Search", mock.Anything, "bad").Return(nil, errors.New("boom")).Twice()
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "https://bbc.co.uk/weather/london").Return("rainy", nil).Once()

	inv := NewCachedInvoker(NewInvoker(s, f), NewInMemoryCache(10, time.Minute), time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := inv.Search(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, hits, res)

		content, err := inv.Fetch(ctx, hits[0].URL)
		require.NoError(t, err)
		assert.Equal(t, "rainy", content)

		_, err = inv.Search(ctx, "bad")
		assert.ErrorIs(t, err, core.ErrToolUnavailable)
	}

	s.AssertExpectations(t)
	f.AssertExpectations(t)
}

func TestCacheKey(t *testing.T) {
	assert.NotEqual(t, CacheKey("search", "x"), CacheKey("fetch", "x"))
	assert.Equal(t, CacheKey("search", "x"), CacheKey("search", "x"))
}
