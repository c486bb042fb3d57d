package expert

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/internal/util"
	"github.com/hupe1980/metaexpert/logging"
	"github.com/hupe1980/metaexpert/model"
)

// ErrNoDirective is returned when an expert that works from the coordinator's
// directive runs before the coordinator.
var ErrNoDirective = errors.New("no coordinator directive")

// responder is the shared generate-and-record helper.
type responder struct {
	name    string
	llm     model.Model
	timeout time.Duration
}

// generate issues one free text request.
func (r responder) generate(rc *core.RunContext, instructions string, contents []core.Message) (string, error) {
	start := time.Now()
	text, err := model.Generate(rc.Context, r.llm, model.Request{
		Instructions: instructions,
		Contents:     contents,
		Format:       model.FormatText,
	}, r.timeout)
	logging.ModelCall(rc.Logger(), r.llm.Info().Name, time.Since(start), err, "expert", r.name, "format", model.FormatText, "chars", len(text))
	if err != nil {
		return "", err
	}
	return text, nil
}

// generateJSON issues one structured request.
func (r responder) generateJSON(rc *core.RunContext, instructions string, contents []core.Message, schema map[string]any, out any) error {
	start := time.Now()
	err := model.GenerateJSON(rc.Context, r.llm, model.Request{
		Instructions: instructions,
		Contents:     contents,
		Schema:       schema,
	}, r.timeout, out)
	logging.ModelCall(rc.Logger(), r.llm.Info().Name, time.Since(start), err, "expert", r.name, "format", model.FormatJSON)
	return err
}

// answerDirective answers the latest coordinator directive and records the
// exchange in the transcript. It returns the unwrapped answer.
func (r responder) answerDirective(rc *core.RunContext) (string, error) {
	directive, ok := rc.State.LatestDirective()
	if !ok {
		return "", ErrNoDirective
	}

	answer, err := r.generate(rc, directive, []core.Message{core.NewUserMessage(directive)})
	if err != nil {
		return "", err
	}

	if err := rc.State.AppendTranscriptTurn(directive, core.WrapExpert(answer)); err != nil {
		return "", err
	}

	return answer, nil
}

func render(tmpl string, data map[string]any) (string, error) {
	out, err := util.RenderTemplate(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}
