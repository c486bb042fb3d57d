package orchestrator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/metaexpert/core"
)

// BranchFunc picks the key of the next path after a node ran.
type BranchFunc func(rc *core.RunContext) (string, error)

type branch struct {
	fn    BranchFunc
	paths map[string]string
}

// Builder declares a graph. Mistakes are collected and reported by Compile.
//
// Example:
//
//	b := NewBuilder()
//	b.AddNode("coordinator", coordinator)
//	b.AddNode("router", router)
//	b.AddNode("direct_expert", direct)
//	b.AddNode("end_chat", EndChat())
//	b.SetEntryPoint("coordinator")
//	b.AddEdge("coordinator", "router")
//	b.AddConditionalEdges("router", expert.Route, map[string]string{
//	    "direct_expert": "direct_expert",
//	})
//	b.AddEdge("direct_expert", "end_chat")
//	b.SetFinishPoint("end_chat")
//	g, err := b.Compile()
type Builder struct {
	nodes    map[string]core.Expert
	edges    map[string]string
	branches map[string]branch
	entry    string
	finish   string
	errs     []error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:    make(map[string]core.Expert),
		edges:    make(map[string]string),
		branches: make(map[string]branch),
	}
}

// AddNode registers node under name.
func (b *Builder) AddNode(name string, node core.Expert) *Builder {
	switch {
	case name == "":
		b.errs = append(b.errs, errors.New("node name must not be empty"))
	case node == nil:
		b.errs = append(b.errs, fmt.Errorf("node %q is nil", name))
	default:
		if _, dup := b.nodes[name]; dup {
			b.errs = append(b.errs, fmt.Errorf("node %q registered twice", name))
			break
		}
		b.nodes[name] = node
	}
	return b
}

// AddEdge adds an unconditional edge.
func (b *Builder) AddEdge(from, to string) *Builder {
	if b.hasOutgoing(from) {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an outgoing edge", from))
		return b
	}
	b.edges[from] = to
	return b
}

// AddConditionalEdges routes from a node through fn. The key fn returns is
// looked up in paths to find the next node.
func (b *Builder) AddConditionalEdges(from string, fn BranchFunc, paths map[string]string) *Builder {
	if b.hasOutgoing(from) {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an outgoing edge", from))
		return b
	}
	if fn == nil || len(paths) == 0 {
		b.errs = append(b.errs, fmt.Errorf("conditional edge from %q needs a branch function and paths", from))
		return b
	}

	cp := make(map[string]string, len(paths))
	for k, v := range paths {
		cp[k] = v
	}
	b.branches[from] = branch{fn: fn, paths: cp}
	return b
}

// SetEntryPoint names the first node.
func (b *Builder) SetEntryPoint(name string) *Builder { b.entry = name; return b }

// SetFinishPoint names the terminal node. The run is marked finished once it
// returns.
func (b *Builder) SetFinishPoint(name string) *Builder { b.finish = name; return b }

func (b *Builder) hasOutgoing(name string) bool {
	_, e := b.edges[name]
	_, c := b.branches[name]
	return e || c
}

// Compile validates the declaration and returns an executable Graph.
func (b *Builder) Compile(optFns ...func(o *Options)) (*Graph, error) {
	errs := append([]error(nil), b.errs...)

	if b.entry == "" {
		errs = append(errs, errors.New("entry point not set"))
	} else if _, ok := b.nodes[b.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry point %q is not a node", b.entry))
	}

	if b.finish == "" {
		errs = append(errs, errors.New("finish point not set"))
	} else {
		if _, ok := b.nodes[b.finish]; !ok {
			errs = append(errs, fmt.Errorf("finish point %q is not a node", b.finish))
		}
		if b.hasOutgoing(b.finish) {
			errs = append(errs, fmt.Errorf("finish point %q must not have outgoing edges", b.finish))
		}
	}

	for _, name := range sortedKeys(b.nodes) {
		if name != b.finish && !b.hasOutgoing(name) {
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
		}
	}

	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		if _, ok := b.nodes[to]; !ok {
			errs = append(errs, fmt.Errorf("edge from %q to unknown node %q", from, to))
		}
	}

	for from, br := range b.branches {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("conditional edge from unknown node %q", from))
		}
		for key, to := range br.paths {
			if _, ok := b.nodes[to]; !ok {
				errs = append(errs, fmt.Errorf("conditional edge from %q path %q targets unknown node %q", from, key, to))
			}
		}
	}

	if len(errs) == 0 && !b.reachable(b.entry, b.finish) {
		errs = append(errs, fmt.Errorf("finish point %q is unreachable from %q", b.finish, b.entry))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("compile graph: %w", errors.Join(errs...))
	}

	g := &Graph{
		nodes:    make(map[string]core.Expert, len(b.nodes)),
		edges:    make(map[string]string, len(b.edges)),
		branches: make(map[string]branch, len(b.branches)),
		entry:    b.entry,
		finish:   b.finish,
		opts:     buildOptions(optFns),
	}
	for k, v := range b.nodes {
		g.nodes[k] = v
	}
	for k, v := range b.edges {
		g.edges[k] = v
	}
	for k, v := range b.branches {
		g.branches[k] = v
	}

	return g, nil
}

func (b *Builder) reachable(from, to string) bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == to {
			return true
		}

		var next []string
		if e, ok := b.edges[n]; ok {
			next = append(next, e)
		}
		if br, ok := b.branches[n]; ok {
			for _, t := range br.paths {
				next = append(next, t)
			}
		}
		for _, t := range next {
			if !seen[t] {
				seen[t] = true
				queue = append(queue, t)
			}
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
