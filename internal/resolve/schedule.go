package resolve

import (
	"fmt"
	"sort"

	"github.com/Iron-Ham/swarmcoord/internal/conflict"
)

// Batch is one rung of the schedule: the agents that may run concurrently
// and the registry paths each will claim.
type Batch struct {
	// Number is the 1-based position of the batch in execution order.
	Number int `json:"number"`

	// Files maps each agent in the batch to the registry paths it claims.
	Files map[string][]string `json:"files"`
}

// Agents returns the batch's agent IDs, sorted.
func (b Batch) Agents() []string {
	agents := make([]string, 0, len(b.Files))
	for id := range b.Files {
		agents = append(agents, id)
	}
	sort.Strings(agents)
	return agents
}

// Resolution records how one conflict was resolved, for the final report.
type Resolution struct {
	Conflict conflict.Conflict `json:"conflict"`

	// ManualMerge marks section-based resolutions whose ranges must be
	// merged by hand after the session.
	ManualMerge bool `json:"manual_merge,omitempty"`
}

// Schedule is an ordered list of batches plus the resolutions that shaped it.
type Schedule struct {
	Batches     []Batch      `json:"batches"`
	Resolutions []Resolution `json:"resolutions,omitempty"`
}

// ManualMergeFiles returns the files needing manual merging after the
// session, sorted. Non-empty only when section strategies were used.
func (s *Schedule) ManualMergeFiles() []string {
	var files []string
	for _, res := range s.Resolutions {
		if res.ManualMerge {
			files = append(files, res.Conflict.Files...)
		}
	}
	sort.Strings(files)
	return files
}

// AgentBatch returns the batch number the agent runs in, or 0 if the agent
// has no slot.
func (s *Schedule) AgentBatch(agentID string) int {
	for _, b := range s.Batches {
		if _, ok := b.Files[agentID]; ok {
			return b.Number
		}
	}
	return 0
}

// Validate checks the schedule's two output guarantees: within a batch every
// path has exactly one claimant, and no path is claimed by two batches that
// could run concurrently (batches are strictly ordered by construction, so
// only intra-batch duplication can violate this).
func (s *Schedule) Validate() error {
	for _, b := range s.Batches {
		claimants := make(map[string]string)
		for agent, files := range b.Files {
			for _, f := range files {
				if other, ok := claimants[f]; ok {
					return fmt.Errorf("batch %d: path %s claimed by both %s and %s",
						b.Number, f, other, agent)
				}
				claimants[f] = agent
			}
		}
	}
	return nil
}
