// Package plan defines the per-agent work declaration and the Collector that
// gathers declarations at swarm start. A plan lists the files an agent
// intends to modify, create, and read; it is immutable once submitted and is
// consumed as a unit by the conflict detector. Plans never grant edit rights
// by themselves; only registry claims do.
package plan

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// Plan declares one agent's intended work for a swarm session.
type Plan struct {
	AgentID       string   `json:"agent_id"`
	TaskSummary   string   `json:"task_summary,omitempty"`
	FilesToModify []string `json:"files_to_modify"`
	FilesToCreate []string `json:"files_to_create"`
	FilesToRead   []string `json:"files_to_read,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"`
	Steps         []string `json:"steps,omitempty"`

	// extra holds unknown fields from deserialized plans. They are preserved
	// on re-serialization but never interpreted by the core.
	extra map[string]json.RawMessage
}

// knownFields are the JSON keys the core interprets; everything else is
// carried through extra.
var knownFields = []string{
	"agent_id", "task_summary", "files_to_modify", "files_to_create",
	"files_to_read", "dependencies", "steps",
}

// WriteFiles returns the union of files the plan will modify or create,
// sorted and deduplicated. Read-only files are excluded: they can never
// conflict.
func (p *Plan) WriteFiles() []string {
	files := make([]string, 0, len(p.FilesToModify)+len(p.FilesToCreate))
	files = append(files, p.FilesToModify...)
	files = append(files, p.FilesToCreate...)
	sort.Strings(files)
	return slices.Compact(files)
}

// Validate checks the structural requirements for submission: a non-empty
// agent ID and at least one file to modify or create.
func (p *Plan) Validate() error {
	if p.AgentID == "" {
		return fmt.Errorf("plan has empty agent_id")
	}
	if len(p.FilesToModify) == 0 && len(p.FilesToCreate) == 0 {
		return fmt.Errorf("plan for %s lists no files to modify or create", p.AgentID)
	}
	return nil
}

// UnmarshalJSON decodes a plan, stashing unknown fields for round-tripping.
func (p *Plan) UnmarshalJSON(data []byte) error {
	type alias Plan
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownFields {
		delete(raw, k)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*p = Plan(a)
	p.extra = raw
	return nil
}

// MarshalJSON encodes the plan, re-emitting any preserved unknown fields.
func (p Plan) MarshalJSON() ([]byte, error) {
	type alias Plan
	data, err := json.Marshal(alias(p))
	if err != nil {
		return nil, err
	}
	if len(p.extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range p.extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
