package resolve

import (
	"fmt"
	"sort"

	"github.com/Iron-Ham/swarmcoord/internal/conflict"
	"github.com/Iron-Ham/swarmcoord/internal/logging"
	"github.com/Iron-Ham/swarmcoord/internal/swarmerr"
)

// Engine resolves conflicts into a batch schedule.
type Engine struct {
	logger *logging.Logger
}

// NewEngine creates an Engine. A nil logger disables logging.
func NewEngine(logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{logger: logger}
}

// builder holds the working state strategies mutate: each agent's claim
// paths and the ordering constraints between agents.
type builder struct {
	files map[string]map[string]bool // agentID -> set of claim paths
	after map[string][]string        // agentID -> agents that must run strictly earlier
}

func newBuilder(result conflict.Result) *builder {
	b := &builder{
		files: make(map[string]map[string]bool),
		after: make(map[string][]string),
	}
	for path, agent := range result.Assignments {
		b.add(agent, path)
	}
	// Contested files start in every claimant's working set; strategies
	// rewrite them.
	for _, c := range result.Conflicts {
		for _, f := range c.Files {
			for _, agent := range c.Agents {
				b.add(agent, f)
			}
		}
	}
	return b
}

func (b *builder) add(agent, path string) {
	if b.files[agent] == nil {
		b.files[agent] = make(map[string]bool)
	}
	b.files[agent][path] = true
}

func (b *builder) drop(agent, path string)      { delete(b.files[agent], path) }
func (b *builder) owns(agent, path string) bool { return b.files[agent][path] }
func (b *builder) fileCount(agent string) int   { return len(b.files[agent]) }

func (b *builder) swap(agent, oldPath, newPath string) {
	if b.owns(agent, oldPath) {
		b.drop(agent, oldPath)
		b.add(agent, newPath)
	}
}

// order records that earlier must complete before later starts.
func (b *builder) order(earlier, later string) {
	b.after[later] = append(b.after[later], earlier)
}

// Resolve applies the chosen strategy to every conflict and assembles the
// batch schedule. A conflict without a choice, or a strategy that cannot
// apply, is fatal: resolution is never guessed.
func (e *Engine) Resolve(result conflict.Result, choose ChoiceFunc) (*Schedule, error) {
	b := newBuilder(result)
	schedule := &Schedule{}

	for _, c := range result.Conflicts {
		choice, ok := choose(c)
		if !ok {
			return nil, swarmerr.NewConflictError(c.Files, c.Agents, swarmerr.ErrNoStrategy)
		}
		strategy, known := strategies[choice.Kind]
		if !known {
			return nil, swarmerr.NewConflictError(c.Files, c.Agents,
				fmt.Errorf("%w: %q", swarmerr.ErrUnknownStrategy, choice.Kind))
		}

		resolution, err := strategy.Apply(c, choice, b)
		if err != nil {
			return nil, swarmerr.NewConflictError(c.Files, c.Agents, err)
		}
		schedule.Resolutions = append(schedule.Resolutions, resolution)

		e.logger.Info("conflict resolved",
			"files", c.Files,
			"agents", c.Agents,
			"strategy", string(choice.Kind),
		)
	}

	if err := e.assignBatches(b, schedule); err != nil {
		return nil, err
	}
	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("resolve: schedule validation: %w", err)
	}
	return schedule, nil
}

// assignBatches places every agent with a non-empty claim set into the
// earliest batch satisfying its ordering constraints and sharing no path
// with agents already placed there.
func (e *Engine) assignBatches(b *builder, schedule *Schedule) error {
	agents := make([]string, 0, len(b.files))
	for agent, files := range b.files {
		if len(files) > 0 {
			agents = append(agents, agent)
		}
	}
	sort.Strings(agents)

	assigned := make(map[string]int) // agentID -> batch number
	// batchPaths[n] is the set of paths claimed in batch n+1.
	var batchPaths []map[string]bool

	var place func(agent string, visiting map[string]bool) (int, error)
	place = func(agent string, visiting map[string]bool) (int, error) {
		if n, ok := assigned[agent]; ok {
			return n, nil
		}
		if visiting[agent] {
			return 0, fmt.Errorf("resolve: ordering cycle involving agent %s", agent)
		}
		visiting[agent] = true
		defer delete(visiting, agent)

		// Ordering constraints: strictly after every predecessor.
		minBatch := 1
		preds := append([]string(nil), b.after[agent]...)
		sort.Strings(preds)
		for _, pred := range preds {
			if len(b.files[pred]) == 0 {
				continue // predecessor lost all files (merge); no ordering needed
			}
			n, err := place(pred, visiting)
			if err != nil {
				return 0, err
			}
			if n+1 > minBatch {
				minBatch = n + 1
			}
		}

		// Path-disjointness: advance past batches already claiming a path
		// this agent needs.
		n := minBatch
		for {
			for len(batchPaths) < n {
				batchPaths = append(batchPaths, make(map[string]bool))
			}
			collision := false
			for path := range b.files[agent] {
				if batchPaths[n-1][path] {
					collision = true
					break
				}
			}
			if !collision {
				break
			}
			n++
		}

		for path := range b.files[agent] {
			batchPaths[n-1][path] = true
		}
		assigned[agent] = n
		return n, nil
	}

	for _, agent := range agents {
		if _, err := place(agent, make(map[string]bool)); err != nil {
			return err
		}
	}

	// Materialize batches in order, skipping any empty rungs.
	count := 0
	for _, n := range assigned {
		if n > count {
			count = n
		}
	}
	number := 0
	for n := 1; n <= count; n++ {
		files := make(map[string][]string)
		for _, agent := range agents {
			if assigned[agent] != n {
				continue
			}
			paths := make([]string, 0, len(b.files[agent]))
			for path := range b.files[agent] {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			files[agent] = paths
		}
		if len(files) == 0 {
			continue
		}
		number++
		schedule.Batches = append(schedule.Batches, Batch{Number: number, Files: files})
	}
	return nil
}
