package core

// Expert is a node that contributes to a run's state.
//
// Implementations must:
//   - respect cancellation of rc.Context
//   - mutate the state only through its append/set methods
//   - leave the state untouched when returning an error before any model call
type Expert interface {
	Name() string
	Run(rc *RunContext) error
}

// ExpertFunc adapts a function to the Expert interface.
type ExpertFunc struct {
	ExpertName string
	Fn         func(rc *RunContext) error
}

// Name returns the expert name.
func (f ExpertFunc) Name() string { return f.ExpertName }

// Run invokes the wrapped function.
func (f ExpertFunc) Run(rc *RunContext) error { return f.Fn(rc) }
