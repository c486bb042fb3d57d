package model

import (
	"context"

	"github.com/hupe1980/metaexpert/core"
)

// Format selects the response mode requested from a generator.
type Format string

const (
	// FormatText asks for free text.
	FormatText Format = "text"
	// FormatJSON asks for a single JSON object.
	FormatJSON Format = "json"
)

// Request captures the normalized model input produced by experts.
type Request struct {
	Instructions string         `json:"instructions"` // system prompt
	Contents     []core.Message `json:"contents"`     // conversation history, oldest first
	Format       Format         `json:"format,omitempty"`
	Schema       map[string]any `json:"schema,omitempty"` // expected JSON shape when Format is FormatJSON
	Stream       bool           `json:"stream,omitempty"`
}

// WantsJSON reports whether the request asks for a JSON object.
func (r Request) WantsJSON() bool { return r.Format == FormatJSON }

// LastUserText returns the content of the most recent user message.
func (r Request) LastUserText() string {
	for i := len(r.Contents) - 1; i >= 0; i-- {
		if r.Contents[i].Role == core.RoleUser {
			return r.Contents[i].Content
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Message `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name         string `json:"name"`
	Provider     string `json:"provider"` // "openai", "anthropic", "gemini", "mock", etc.
	SupportsJSON bool   `json:"supports_json"`
}

// Model is the minimal interface required by experts to drive generation.
//
// Implementations close both channels when done. At most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// JSONInstruction is appended to the system prompt of providers without a
// native JSON response mode.
const JSONInstruction = "Respond with a single valid JSON object and nothing else."

func assistant(text string) core.Message { return core.NewAssistantMessage(text) }
