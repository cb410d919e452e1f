package swarm

import "context"

// Assignment is one agent's work order for a batch. Files holds the claim
// paths the agent may touch; Amend requests an additional file mid-batch
// and returns an error if the amendment is denied.
type Assignment struct {
	AgentID string
	Batch   int
	Task    string
	Files   []string
	Amend   func(path string) error
}

// Result is what an agent reports on completion. FilesTouched feeds the
// violation monitor alongside any filesystem observations.
type Result struct {
	FilesTouched []string
	Summary      string
}

// AgentRunner executes one agent's batch work. Implementations run
// concurrently with other agents in the same batch and must respect ctx.
type AgentRunner interface {
	Run(ctx context.Context, a Assignment) (Result, error)
}

// RunnerFunc adapts a function to the AgentRunner interface.
type RunnerFunc func(ctx context.Context, a Assignment) (Result, error)

// Run implements AgentRunner.
func (f RunnerFunc) Run(ctx context.Context, a Assignment) (Result, error) {
	return f(ctx, a)
}
