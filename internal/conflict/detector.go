// Package conflict detects file-level overlaps between submitted agent plans.
// A conflict exists when two or more agents declare the same path under their
// files to modify or create; read-only references never conflict. Detection
// is purely a function of the input plans: identical plans always produce
// identical output, with all agent and file sets sorted.
package conflict

import (
	"sort"
	"strings"

	"github.com/Iron-Ham/swarmcoord/internal/plan"
)

// Conflict records a detected overlap: the contested files and every agent
// whose plan references any of them. Strategy and Detail are filled in by the
// resolution engine and carried through to the final report.
type Conflict struct {
	Files  []string `json:"files"`
	Agents []string `json:"agents"`

	// Strategy is the chosen resolution strategy name, set during resolution.
	Strategy string `json:"strategy,omitempty"`
	// Detail is a human-readable resolution note, set during resolution.
	Detail string `json:"resolution_detail,omitempty"`
}

// Key returns a stable identifier for the conflict: its sorted file set
// joined with commas. Strategy choices in configuration are keyed by this.
func (c Conflict) Key() string {
	return strings.Join(c.Files, ",")
}

// Result is the outcome of a detection pass.
type Result struct {
	// Assignments maps each uncontested write path to its sole claimant.
	Assignments map[string]string

	// Conflicts lists every contested overlap. Conflicts sharing the same
	// agent set are merged into one entry, so each contested path appears in
	// exactly one conflict.
	Conflicts []Conflict
}

// HasConflicts reports whether any path is contested.
func (r Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Detect scans the plans and splits their write paths into uncontested
// assignments and conflicts.
func Detect(plans []plan.Plan) Result {
	// path -> sorted set of agents that declared it writable
	claimants := make(map[string][]string)
	for _, p := range plans {
		for _, f := range p.WriteFiles() {
			claimants[f] = append(claimants[f], p.AgentID)
		}
	}

	result := Result{Assignments: make(map[string]string)}

	// Group contested paths by their claimant set so one conflict entry
	// covers every path the same agents fight over.
	grouped := make(map[string]*Conflict)
	for path, agents := range claimants {
		sort.Strings(agents)
		if len(agents) == 1 {
			result.Assignments[path] = agents[0]
			continue
		}

		sig := strings.Join(agents, "\x00")
		c, ok := grouped[sig]
		if !ok {
			c = &Conflict{Agents: agents}
			grouped[sig] = c
		}
		c.Files = append(c.Files, path)
	}

	for _, c := range grouped {
		sort.Strings(c.Files)
		result.Conflicts = append(result.Conflicts, *c)
	}
	sort.Slice(result.Conflicts, func(i, j int) bool {
		return result.Conflicts[i].Key() < result.Conflicts[j].Key()
	})

	return result
}
