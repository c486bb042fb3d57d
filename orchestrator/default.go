package orchestrator

import (
	"github.com/hupe1980/metaexpert/core"
	"github.com/hupe1980/metaexpert/expert"
)

// NodeEndChat is the terminal node of the default graph.
const NodeEndChat = "end_chat"

// EndChat returns the terminal node. It marks the state finished.
func EndChat() core.Expert {
	return core.ExpertFunc{
		ExpertName: NodeEndChat,
		Fn: func(rc *core.RunContext) error {
			rc.LogDebug("orchestrator.end_chat")
			return rc.State.Finish()
		},
	}
}

// NewDefault compiles the standard graph:
//
//	coordinator -> router -> direct_expert | tool_expert -> end_chat
//
// A full pass costs four steps.
func NewDefault(coordinator, router, direct, toolUser core.Expert, optFns ...func(o *Options)) (*Graph, error) {
	return NewBuilder().
		AddNode(expert.NodeCoordinator, coordinator).
		AddNode(expert.NodeRouter, router).
		AddNode(expert.NodeDirectExpert, direct).
		AddNode(expert.NodeToolExpert, toolUser).
		AddNode(NodeEndChat, EndChat()).
		SetEntryPoint(expert.NodeCoordinator).
		AddEdge(expert.NodeCoordinator, expert.NodeRouter).
		AddConditionalEdges(expert.NodeRouter, expert.Route, map[string]string{
			expert.NodeToolExpert:   expert.NodeToolExpert,
			expert.NodeDirectExpert: expert.NodeDirectExpert,
		}).
		AddEdge(expert.NodeDirectExpert, NodeEndChat).
		AddEdge(expert.NodeToolExpert, NodeEndChat).
		SetFinishPoint(NodeEndChat).
		Compile(optFns...)
}
