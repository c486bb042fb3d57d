package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/metaexpert/core"
)

// Guard rejects a second concurrent execution for the same run id.
//
// Acquire returns a release function on success and an error wrapping
// core.ErrRunInProgress when the id is already held. Release must be safe to
// call after ctx was cancelled.
type Guard interface {
	Acquire(ctx context.Context, runID string) (func(), error)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

var _ Guard = (*MemoryGuard)(nil)

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{active: make(map[string]struct{})}
}

// Acquire claims runID.
func (g *MemoryGuard) Acquire(_ context.Context, runID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.active[runID]; held {
		return nil, fmt.Errorf("%w: %s", core.ErrRunInProgress, runID)
	}
	g.active[runID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, runID)
			g.mu.Unlock()
		})
	}, nil
}

// Active returns the number of held run ids.
func (g *MemoryGuard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
