package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/internal/util"
)

// errEmptyResponse is returned when a generator closes without output.
var errEmptyResponse = errors.New("empty response")

// Generate runs a free text request and returns the final text. A timeout of
// zero leaves the call bounded only by ctx.
//
// Failures wrap core.ErrGeneratorUnavailable unless ctx itself was cancelled,
// in which case ctx.Err() is returned.
func Generate(ctx context.Context, m Model, req Request, timeout time.Duration) (string, error) {
	if req.Format == "" {
		req.Format = FormatText
	}

	text, err := collect(ctx, m, req, timeout)
	if err != nil {
		return "", classify(ctx, m, err, core.ErrGeneratorUnavailable, core.ErrGeneratorUnavailable)
	}

	return text, nil
}

// GenerateJSON runs a structured request and decodes the returned object into
// out. out is either a *map[string]any or a pointer to a struct whose fields
// carry json tags.
//
// Parse and validation failures, as well as an expired per-call deadline,
// wrap core.ErrMalformedOutput. Transport failures wrap
// core.ErrGeneratorUnavailable.
func GenerateJSON(ctx context.Context, m Model, req Request, timeout time.Duration, out any) error {
	req.Format = FormatJSON

	text, err := collect(ctx, m, req, timeout)
	if err != nil {
		return classify(ctx, m, err, core.ErrMalformedOutput, core.ErrGeneratorUnavailable)
	}

	payload, err := ParseJSONObject(text)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedOutput, err)
	}

	if req.Schema != nil {
		if err := util.ValidateParameters(payload, req.Schema); err != nil {
			return fmt.Errorf("%w: %v", core.ErrMalformedOutput, err)
		}
	}

	if target, ok := out.(*map[string]any); ok {
		*target = payload
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}

	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedOutput, err)
	}

	return nil
}

// ParseJSONObject extracts a JSON object from model output. It tolerates
// markdown code fences and prose around the object.
func ParseJSONObject(text string) (map[string]any, error) {
	raw := StripFences(text)

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err == nil && payload != nil {
		return payload, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response %q", truncate(text, 80))
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("decode JSON object: %w", err)
	}

	if payload == nil {
		return nil, fmt.Errorf("null JSON object")
	}

	return payload, nil
}

// StripFences removes a surrounding ``` or ```json code fence.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// collect drains the model channels. Partial chunks are concatenated only when
// no final response arrives.
func collect(ctx context.Context, m Model, req Request, timeout time.Duration) (string, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	respCh, errCh := m.Generate(callCtx, req)

	var (
		final   *Response
		partial strings.Builder
	)

	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Content.Content)
				continue
			}
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		case <-callCtx.Done():
			return "", callCtx.Err()
		}
	}

	switch {
	case final != nil:
		return final.Content.Content, nil
	case partial.Len() > 0:
		return partial.String(), nil
	default:
		return "", errEmptyResponse
	}
}

// classify maps a raw generator error onto the taxonomy. An expired inner
// deadline uses onTimeout, everything else onFailure. Cancellation of the
// parent context is passed through untouched.
func classify(ctx context.Context, m Model, err error, onTimeout, onFailure error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	name := m.Info().Name
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out", onTimeout, name)
	}

	return fmt.Errorf("%w: %s: %v", onFailure, name, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
