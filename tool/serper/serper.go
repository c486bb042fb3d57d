// Package serper implements tool.Searcher on the Google Serper API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hupe1980/metaexpert/tool"
)

// DefaultEndpoint is the Serper search endpoint.
const DefaultEndpoint = "https://google.serper.dev/search"

// Options configure the Serper client.
type Options struct {
	APIKey     string
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
}

// Searcher queries Serper.
type Searcher struct {
	opts Options
}

// New creates a Serper searcher.
func New(apiKey string, optFns ...func(o *Options)) *Searcher {
	opts := Options{
		APIKey:     apiKey,
		Endpoint:   DefaultEndpoint,
		MaxResults: 10,
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Searcher{opts: opts}
}

// Name implements tool.Searcher.
func (s *Searcher) Name() string { return "serper" }

type request struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type response struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search implements tool.Searcher.
func (s *Searcher) Search(ctx context.Context, query string) ([]tool.SearchResult, error) {
	if s.opts.APIKey == "" {
		return nil, tool.NewToolError(s.Name(), "SERPER_API_KEY is not set", tool.CodeUnavailable)
	}

	body, err := json.Marshal(request{Q: query, Num: s.opts.MaxResults})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]tool.SearchResult, 0, len(decoded.Organic))
	for _, o := range decoded.Organic {
		if o.Link == "" {
			continue
		}
		results = append(results, tool.SearchResult{Title: o.Title, URL: o.Link, Snippet: o.Snippet})
		if s.opts.MaxResults > 0 && len(results) >= s.opts.MaxResults {
			break
		}
	}

	return results, nil
}
