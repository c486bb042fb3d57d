package testutil

import (
	"strings"
	"sync"

	"github.com/hupe1980/metaexpert/model"
)

// Stages a ScriptedModel distinguishes.
const (
	StageCoordinator = "coordinator"
	StageRouter      = "router"
	StageAnswer      = "answer"
	StageRefine      = "refine"
	StageSelect      = "select"
)

// Script holds one reply per stage. JSON stages take the raw text the model
// would return, so malformed replies can be scripted as well.
type Script struct {
	Coordinator string
	Router      string
	Answer      string
	Refine      string
	Select      string

	// Errs makes the named stage fail with the given error.
	Errs map[string]error
}

// ScriptedModel is a MockModel whose replies are chosen by stage.
type ScriptedModel struct {
	*model.MockModel

	mu     sync.Mutex
	script Script
	stages []string
}

// NewScriptedModel creates a ScriptedModel for s.
func NewScriptedModel(s Script) *ScriptedModel {
	m := &ScriptedModel{
		MockModel: model.NewMockModel("scripted", "test"),
		script:    s,
	}
	m.SetHandler(m.reply)
	return m
}

// Stages returns the stages seen so far in call order.
func (m *ScriptedModel) Stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.stages))
	copy(out, m.stages)
	return out
}

func (m *ScriptedModel) reply(req model.Request) (string, error) {
	stage := StageOf(req)

	m.mu.Lock()
	m.stages = append(m.stages, stage)
	s := m.script
	m.mu.Unlock()

	if err, ok := s.Errs[stage]; ok {
		return "", err
	}

	switch stage {
	case StageRouter:
		return s.Router, nil
	case StageRefine:
		return s.Refine, nil
	case StageSelect:
		return s.Select, nil
	case StageAnswer:
		return s.Answer, nil
	default:
		return s.Coordinator, nil
	}
}

// StageOf classifies a request issued by the default experts.
func StageOf(req model.Request) string {
	if req.WantsJSON() {
		switch {
		case strings.Contains(req.Instructions, `"tool_agent"`):
			return StageRouter
		case strings.Contains(req.Instructions, `"search_query"`):
			return StageRefine
		case strings.Contains(req.Instructions, `"best_url"`):
			return StageSelect
		}
	}

	// Answering experts send the directive both as instructions and as the
	// only user message.
	if len(req.Contents) == 1 && req.Contents[0].Content == req.Instructions {
		return StageAnswer
	}
	return StageCoordinator
}
