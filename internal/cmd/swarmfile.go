package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/swarmcoord/internal/plan"
)

// SwarmFile is the YAML definition of one coordination run: the overall
// task plus each agent's declared plan.
type SwarmFile struct {
	Task   string      `yaml:"task"`
	Agents []AgentSpec `yaml:"agents"`
}

// AgentSpec declares one agent. Command, when set, is executed through the
// shell for the agent's batch; Worktree is where it runs and what the
// filesystem tracker watches.
type AgentSpec struct {
	ID       string   `yaml:"id"`
	Worktree string   `yaml:"worktree,omitempty"`
	Command  string   `yaml:"command,omitempty"`
	Plan     PlanSpec `yaml:"plan"`
}

// PlanSpec mirrors the plan submission fields.
type PlanSpec struct {
	TaskSummary   string   `yaml:"task_summary,omitempty"`
	FilesToModify []string `yaml:"files_to_modify,omitempty"`
	FilesToCreate []string `yaml:"files_to_create,omitempty"`
	FilesToRead   []string `yaml:"files_to_read,omitempty"`
	Dependencies  []string `yaml:"dependencies,omitempty"`
	Steps         []string `yaml:"steps,omitempty"`
}

// LoadSwarmFile reads and validates a swarm definition.
func LoadSwarmFile(path string) (*SwarmFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read swarm file: %w", err)
	}

	var sf SwarmFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse swarm file: %w", err)
	}

	if sf.Task == "" {
		return nil, fmt.Errorf("swarm file: task is required")
	}
	if len(sf.Agents) == 0 {
		return nil, fmt.Errorf("swarm file: at least one agent is required")
	}
	seen := make(map[string]bool)
	for i, a := range sf.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("swarm file: agents[%d]: id is required", i)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("swarm file: duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return &sf, nil
}

// AgentIDs returns the declared agent IDs in file order.
func (sf *SwarmFile) AgentIDs() []string {
	ids := make([]string, 0, len(sf.Agents))
	for _, a := range sf.Agents {
		ids = append(ids, a.ID)
	}
	return ids
}

// ToPlan converts the agent's declared plan into a submission.
func (a AgentSpec) ToPlan() plan.Plan {
	return plan.Plan{
		AgentID:       a.ID,
		TaskSummary:   a.Plan.TaskSummary,
		FilesToModify: a.Plan.FilesToModify,
		FilesToCreate: a.Plan.FilesToCreate,
		FilesToRead:   a.Plan.FilesToRead,
		Dependencies:  a.Plan.Dependencies,
		Steps:         a.Plan.Steps,
	}
}
