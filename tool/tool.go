// Package tool implements the web lookup capabilities used by the tool
// pipeline: keyword search and page fetch, with bounded calls, consistent
// error classification and optional result caching.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/internal/util"
)

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a keyword search and returns results in provider order.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Fetcher retrieves a page and returns its extracted text.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, url string) (string, error)
}

// Invoker is the uniform tool surface consumed by experts.
//
// Implementations must:
//   - return a *ToolError for every failure
//   - never return an empty result list or empty content without an error
//   - be safe for concurrent use by independent runs
type Invoker interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
	Fetch(ctx context.Context, url string) (string, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeUnavailable = "TOOL_UNAVAILABLE"
	CodeFetchEmpty  = "FETCH_EMPTY"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Cause   error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes both the taxonomy sentinel for the code and the cause.
func (e *ToolError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Code {
	case CodeFetchEmpty:
		errs = append(errs, core.ErrFetchEmpty)
	default:
		errs = append(errs, core.ErrToolUnavailable)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Unavailable wraps cause as a TOOL_UNAVAILABLE error. An existing ToolError
// is returned unchanged.
func Unavailable(tool string, cause error) *ToolError {
	var te *ToolError
	if errors.As(cause, &te) {
		return te
	}
	msg := "unavailable"
	if cause != nil {
		msg = cause.Error()
	}
	return &ToolError{Tool: tool, Message: msg, Code: CodeUnavailable, Cause: cause}
}

// Empty returns a FETCH_EMPTY error for url.
func Empty(tool, url string) *ToolError {
	return &ToolError{Tool: tool, Message: "no extractable content", Code: CodeFetchEmpty, Details: map[string]any{"url": url}}
}
